package zeropeer

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/zeropeer/correlation"
	"github.com/outofforest/zeropeer/wire"
)

const (
	requestQueueSize      = 16
	maxConcurrentRequests = 64
	unknownCmdReason      = "Unknown cmd"
)

var (
	// ErrClosed is returned by requests issued on or interrupted by closed connection.
	ErrClosed = errors.New("peer connection closed")

	// ErrUnexpectedReply is returned when reply does not match the shape expected for the command.
	ErrUnexpectedReply = errors.New("unexpected reply")

	// ErrRemote is returned when peer replies with error to the command which has no error variant.
	ErrRemote = errors.New("peer replied with error")

	// ErrMessageTooLarge is returned when received data exceed configured message size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrStreamMismatch is returned when stream length differs from the announced one.
	ErrStreamMismatch = errors.New("stream length does not match stream_bytes")
)

var _ Requester = &Peer{}

// Peer exchanges requests and replies with the remote peer over single connection.
type Peer struct {
	config  PeerConfig
	conn    Conn
	handler Handler

	ids   correlation.Counter
	table *correlation.Table[uint64]

	sendMu sync.Mutex

	mu     sync.Mutex
	local  wire.Handshake
	remote *wire.Handshake
}

// NewPeer creates peer communicating over the connection. Handler might be nil,
// then requests other than handshake and ping are refused.
func NewPeer(conn Conn, config PeerConfig, handler Handler) *Peer {
	p := &Peer{
		config:  config,
		conn:    conn,
		handler: handler,
		local:   config.Handshake,
	}
	p.table = correlation.NewTable(p.ids.Next)
	return p
}

// Responder returns responder sending replies to this peer.
func (p *Peer) Responder() Responder[uint64] {
	return responder{peer: p}
}

// RemoteHandshake returns handshake received from the peer, if any.
func (p *Peer) RemoteHandshake() (wire.Handshake, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.remote == nil {
		return wire.Handshake{}, false
	}
	return *p.remote, true
}

// Run receives envelopes until connection is broken or context is canceled.
// Requests issued after Run returns fail with ErrClosed.
func (p *Peer) Run(ctx context.Context) error {
	defer p.table.Close(errors.WithStack(ErrClosed))

	log := logger.Get(ctx)
	requests := make(chan *IncomingRequest, requestQueueSize)

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			defer close(requests)

			for {
				env, err := p.receive()
				if err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return err
				}

				if to, ok := env.RespondsTo(); ok {
					if err := p.table.Resolve(env); err != nil {
						log.Warn("Discarding reply", zap.Uint64("to", to), zap.Error(err))
					}
				}

				if id, ok := env.RequestID(); ok {
					select {
					case <-ctx.Done():
						return errors.WithStack(ctx.Err())
					case requests <- &IncomingRequest{
						ID:       id,
						Cmd:      wire.Command(env.Cmd),
						envelope: env,
					}:
					}
				}
			}
		})
		spawn("dispatcher", parallel.Fail, func(ctx context.Context) error {
			slots := make(chan struct{}, maxConcurrentRequests)
			for req := range requests {
				select {
				case <-ctx.Done():
					return errors.WithStack(ctx.Err())
				case slots <- struct{}{}:
				}

				spawn("request", parallel.Fail, func(ctx context.Context) error {
					defer func() { <-slots }()
					return p.dispatch(ctx, req)
				})
			}

			<-ctx.Done()
			return errors.WithStack(ctx.Err())
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			if err := p.conn.Close(); err != nil {
				log.Debug("Closing connection failed", zap.Error(err))
			}
			return errors.WithStack(ctx.Err())
		})

		return nil
	})
}

func (p *Peer) receive() (correlation.Envelope[uint64], error) {
	msg, err := p.conn.Receive()
	if err != nil {
		return correlation.Envelope[uint64]{}, err
	}

	env, err := correlation.Unmarshal[uint64](msg)
	if err != nil {
		return correlation.Envelope[uint64]{}, err
	}
	if err := correlation.Validate[uint64](env); err != nil {
		return correlation.Envelope[uint64]{}, errors.Wrapf(err, "command %q", env.Cmd)
	}
	if !env.IsResponse() {
		return env, nil
	}

	var head struct {
		Error       *string `msgpack:"error"`
		StreamBytes uint64  `msgpack:"stream_bytes"`
	}
	if err := env.Decode(&head); err != nil {
		return correlation.Envelope[uint64]{}, errors.Wrap(ErrUnexpectedReply, err.Error())
	}
	if head.Error != nil || head.StreamBytes == 0 {
		return env, nil
	}
	if head.StreamBytes > p.config.maxMessageSize() {
		return correlation.Envelope[uint64]{}, errors.Wrapf(ErrMessageTooLarge, "stream of %d bytes announced",
			head.StreamBytes)
	}

	env.Attachment, err = p.conn.ReceiveRaw(head.StreamBytes)
	if err != nil {
		return correlation.Envelope[uint64]{}, err
	}
	return env, nil
}

func (p *Peer) send(env correlation.Envelope[uint64]) error {
	msg, err := env.Marshal()
	if err != nil {
		return err
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if err := p.conn.Send(msg); err != nil {
		return err
	}
	if len(env.Attachment) > 0 {
		return p.conn.SendRaw(env.Attachment)
	}
	return nil
}

func (p *Peer) dispatch(ctx context.Context, req *IncomingRequest) error {
	r := p.Responder()

	switch req.Cmd {
	case wire.CmdHandshake:
		var h wire.Handshake
		if err := req.Decode(&h); err != nil {
			return err
		}
		p.setRemote(h)

		local, err := p.localHandshake()
		if err != nil {
			return err
		}
		_, err = r.Handshake(ctx, req.ID, local)
		return err
	case wire.CmdPing:
		_, err := r.Ping(ctx, req.ID)
		return err
	}

	if _, err := wire.Lookup(req.Cmd); err != nil || p.handler == nil {
		_, err := r.Fail(ctx, req.ID, unknownCmdReason)
		return err
	}

	err := p.handler.HandleRequest(ctx, r, req)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return errors.WithStack(ctx.Err())
	case errors.Is(err, wire.ErrUnknownCommand):
		_, err := r.Fail(ctx, req.ID, unknownCmdReason)
		return err
	default:
		logger.Get(ctx).Warn("Request failed",
			zap.String("cmd", string(req.Cmd)), zap.Uint64("reqID", req.ID), zap.Error(err))
		_, err := r.Fail(ctx, req.ID, err.Error())
		return err
	}
}

// exchange sends request and waits for the reply.
func (p *Peer) exchange(ctx context.Context, cmd wire.Command, params any) (correlation.Envelope[uint64], error) {
	w, err := p.table.Register()
	if err != nil {
		return correlation.Envelope[uint64]{}, err
	}
	defer w.Release()

	env, err := correlation.NewRequest(string(cmd), w.ID(), params)
	if err != nil {
		return correlation.Envelope[uint64]{}, err
	}
	if err := p.send(env); err != nil {
		return correlation.Envelope[uint64]{}, err
	}

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	return w.Wait(ctx)
}

// call sends request and decodes the reply into T.
func call[T any](ctx context.Context, p *Peer, cmd wire.Command, params any) (T, error) {
	var resp T

	env, err := p.exchange(ctx, cmd, params)
	if err != nil {
		return resp, err
	}

	// Results having error variant decode the error reply themselves.
	if _, variant := any(&resp).(interface{ IsError() bool }); !variant {
		var failure struct {
			Error *string `msgpack:"error"`
		}
		if err := env.Decode(&failure); err == nil && failure.Error != nil {
			return resp, errors.Wrapf(ErrRemote, "%s: %s", cmd, *failure.Error)
		}
	}

	if err := env.Decode(&resp); err != nil {
		return resp, errors.Wrapf(ErrUnexpectedReply, "%s: %s", cmd, err)
	}
	return resp, nil
}

func (p *Peer) reply(ctx context.Context, to uint64, payload any, attachment []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.WithStack(err)
	}

	env, err := correlation.NewResponse(to, payload)
	if err != nil {
		return false, err
	}
	env.Attachment = attachment

	if err := p.send(env); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Peer) localHandshake() (wire.Handshake, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.local.PeerID == "" {
		id, err := peerID()
		if err != nil {
			return wire.Handshake{}, err
		}
		p.local.PeerID = id
	}
	if p.local.Protocol == "" {
		p.local.Protocol = handshakeProtocol
	}

	h := p.local
	h.Time = uint64(time.Now().Unix())
	return h, nil
}

func (p *Peer) setRemote(h wire.Handshake) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.remote = &h
}
