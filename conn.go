package zeropeer

import (
	"bufio"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/outofforest/resonance"
)

// Conn transmits encoded envelopes and the raw bytes following some of them.
type Conn interface {
	Send(msg []byte) error
	Receive() ([]byte, error)
	SendRaw(data []byte) error
	ReceiveRaw(size uint64) ([]byte, error)
	Close() error
}

// NewStreamConn returns connection exchanging msgpack values back to back, without any framing,
// the way the existing peers of the network do. Zero maxMessageSize means no limit.
func NewStreamConn(conn net.Conn, maxMessageSize uint64) Conn {
	r := &limitedReader{
		r:     bufio.NewReader(conn),
		limit: maxMessageSize,
	}
	return &streamConn{
		conn: conn,
		r:    r,
		dec:  msgpack.NewDecoder(r),
	}
}

type streamConn struct {
	conn net.Conn
	r    *limitedReader
	dec  *msgpack.Decoder
}

func (c *streamConn) Send(msg []byte) error {
	_, err := c.conn.Write(msg)
	return errors.WithStack(err)
}

func (c *streamConn) Receive() ([]byte, error) {
	c.r.reset()
	msg, err := c.dec.DecodeRaw()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return msg, nil
}

func (c *streamConn) SendRaw(data []byte) error {
	_, err := c.conn.Write(data)
	return errors.WithStack(err)
}

func (c *streamConn) ReceiveRaw(size uint64) ([]byte, error) {
	c.r.reset()
	if c.r.limit > 0 && size > c.r.limit {
		return nil, errors.Wrapf(ErrMessageTooLarge, "%d bytes announced", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(c.r, data); err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

func (c *streamConn) Close() error {
	return errors.WithStack(c.conn.Close())
}

// limitedReader fails once more than limit bytes have been read since the last reset.
type limitedReader struct {
	r     *bufio.Reader
	limit uint64
	read  uint64
}

func (l *limitedReader) reset() {
	l.read = 0
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.limit > 0 {
		if l.read >= l.limit {
			return 0, errors.WithStack(ErrMessageTooLarge)
		}
		if rem := l.limit - l.read; uint64(len(p)) > rem {
			p = p[:rem]
		}
	}
	n, err := l.r.Read(p)
	l.read += uint64(n)
	return n, err
}

func (l *limitedReader) ReadByte() (byte, error) {
	if l.limit > 0 && l.read >= l.limit {
		return 0, errors.WithStack(ErrMessageTooLarge)
	}
	b, err := l.r.ReadByte()
	if err == nil {
		l.read++
	}
	return b, err
}

func (l *limitedReader) UnreadByte() error {
	if err := l.r.UnreadByte(); err != nil {
		return err
	}
	l.read--
	return nil
}

// NewResonanceConn returns connection transmitting every message and every raw attachment
// as a separate resonance frame.
func NewResonanceConn(c *resonance.Connection) Conn {
	return resonanceConn{c: c}
}

type resonanceConn struct {
	c *resonance.Connection
}

func (r resonanceConn) Send(msg []byte) error {
	return r.c.SendBytes(msg)
}

func (r resonanceConn) Receive() ([]byte, error) {
	return r.c.ReceiveBytes()
}

func (r resonanceConn) SendRaw(data []byte) error {
	return r.c.SendBytes(data)
}

func (r resonanceConn) ReceiveRaw(size uint64) ([]byte, error) {
	data, err := r.c.ReceiveBytes()
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != size {
		return nil, errors.Wrapf(ErrStreamMismatch, "expected %d raw bytes, received %d", size, len(data))
	}
	return data, nil
}

func (r resonanceConn) Close() error {
	r.c.Close()
	return nil
}
