package correlation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownID is returned when reply refers to id nobody waits for: never issued,
	// already resolved or abandoned.
	ErrUnknownID = errors.New("no request waits for the id")

	// ErrIDsExhausted is returned when allocator keeps producing ids which are in use.
	ErrIDsExhausted = errors.New("no free correlation id")

	// ErrTableClosed is returned when table has been closed.
	ErrTableClosed = errors.New("correlation table closed")
)

// Counter allocates increasing uint64 ids scoped to one connection.
type Counter struct {
	last atomic.Uint64
}

// Next returns next id.
func (c *Counter) Next() uint64 {
	return c.last.Add(1)
}

// NewTable creates table of waiters allocating ids by calling next.
func NewTable[ID comparable](next func() ID) *Table[ID] {
	return &Table[ID]{
		next:    next,
		waiters: map[ID]*Waiter[ID]{},
		closed:  make(chan struct{}),
	}
}

// Table maps ids of the outstanding requests to their waiters.
type Table[ID comparable] struct {
	next func() ID

	mu      sync.Mutex
	waiters map[ID]*Waiter[ID]
	closed  chan struct{}
	err     error
}

// Register allocates id unique among outstanding requests and returns its waiter.
// Caller must release the waiter once it is no longer interested in the reply.
func (t *Table[ID]) Register() (*Waiter[ID], error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}

	for range len(t.waiters) + 1 {
		id := t.next()
		if _, exists := t.waiters[id]; exists {
			continue
		}

		w := &Waiter[ID]{
			table: t,
			id:    id,
			ch:    make(chan Envelope[ID], 1),
		}
		t.waiters[id] = w
		return w, nil
	}

	return nil, errors.WithStack(ErrIDsExhausted)
}

// Resolve delivers reply to the waiter of the id it responds to. Each id is resolved at most once,
// subsequent replies for the same id fail with ErrUnknownID.
func (t *Table[ID]) Resolve(env Envelope[ID]) error {
	id, ok := env.RespondsTo()
	if !ok {
		return errors.WithStack(ErrUncorrelated)
	}

	t.mu.Lock()
	w, exists := t.waiters[id]
	if exists {
		delete(t.waiters, id)
	}
	t.mu.Unlock()

	if !exists {
		return errors.Wrapf(ErrUnknownID, "id %v", id)
	}

	w.ch <- env
	return nil
}

// Close fails all the outstanding and future waiters with err.
func (t *Table[ID]) Close(err error) {
	if err == nil {
		err = ErrTableClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return
	}
	t.err = err
	clear(t.waiters)
	close(t.closed)
}

// Len returns number of outstanding requests.
func (t *Table[ID]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.waiters)
}

func (t *Table[ID]) release(w *Waiter[ID]) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.waiters[w.id] == w {
		delete(t.waiters, w.id)
	}
}

func (t *Table[ID]) closeErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.err
}

// Waiter waits for the reply to one request.
type Waiter[ID comparable] struct {
	table *Table[ID]
	id    ID
	ch    chan Envelope[ID]
}

// ID returns id allocated for the request.
func (w *Waiter[ID]) ID() ID {
	return w.id
}

// Wait suspends until reply arrives, context is done or table is closed.
// Waiter is released when context is done, so late reply is discarded by the table.
func (w *Waiter[ID]) Wait(ctx context.Context) (Envelope[ID], error) {
	select {
	case env := <-w.ch:
		return env, nil
	case <-ctx.Done():
		w.Release()
		return Envelope[ID]{}, errors.WithStack(ctx.Err())
	case <-w.table.closed:
		// Reply might have been delivered just before closing.
		select {
		case env := <-w.ch:
			return env, nil
		default:
			return Envelope[ID]{}, w.table.closeErr()
		}
	}
}

// Release abandons the request and frees its id.
func (w *Waiter[ID]) Release() {
	w.table.release(w)
}
