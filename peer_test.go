package zeropeer_test

import (
	"context"
	"fmt"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/zeropeer"
	"github.com/outofforest/zeropeer/correlation"
	"github.com/outofforest/zeropeer/response"
	"github.com/outofforest/zeropeer/wire"
)

// remote plays the other side of the connection by hand.
type remote struct {
	requireT *require.Assertions
	conn     net.Conn
	dec      *msgpack.Decoder
}

func newRemote(requireT *require.Assertions, conn net.Conn) *remote {
	return &remote{
		requireT: requireT,
		conn:     conn,
		dec:      msgpack.NewDecoder(conn),
	}
}

func (r *remote) receive() correlation.Envelope[uint64] {
	raw, err := r.dec.DecodeRaw()
	r.requireT.NoError(err)
	env, err := correlation.Unmarshal[uint64](raw)
	r.requireT.NoError(err)
	return env
}

func (r *remote) send(env correlation.Envelope[uint64]) {
	data, err := env.Marshal()
	r.requireT.NoError(err)
	r.write(data)
}

func (r *remote) sendMap(fields map[string]any) {
	data, err := msgpack.Marshal(fields)
	r.requireT.NoError(err)
	r.write(data)
}

func (r *remote) write(data []byte) {
	_, err := r.conn.Write(data)
	r.requireT.NoError(err)
}

func (r *remote) reply(to uint64, payload any) {
	env, err := correlation.NewResponse(to, payload)
	r.requireT.NoError(err)
	r.send(env)
}

func pipePeer(
	requireT *require.Assertions,
	config zeropeer.PeerConfig,
	handler zeropeer.Handler,
) (*zeropeer.Peer, *remote) {
	local, other := net.Pipe()
	return zeropeer.NewPeer(zeropeer.NewStreamConn(local, config.MaxMessageSize), config, handler),
		newRemote(requireT, other)
}

type result[T any] struct {
	Value T
	Err   error
}

func async[T any](fn func() (T, error)) <-chan result[T] {
	ch := make(chan result[T], 1)
	go func() {
		v, err := fn()
		ch <- result[T]{Value: v, Err: err}
	}()
	return ch
}

func TestOutOfOrderReplies(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	const n = 20

	results := make([]<-chan result[wire.CheckportResponse], 0, n)
	for i := range n {
		results = append(results, async(func() (wire.CheckportResponse, error) {
			return p.Checkport(ctx, uint16(1000+i))
		}))
	}

	requests := make([]correlation.Envelope[uint64], 0, n)
	for range n {
		env := r.receive()
		requireT.Equal(string(wire.CmdCheckport), env.Cmd)
		requireT.True(env.IsRequest())
		requests = append(requests, env)
	}

	ids := lo.Map(requests, func(env correlation.Envelope[uint64], _ int) uint64 {
		return *env.ReqID
	})
	requireT.Len(lo.Uniq(ids), n)

	// Reply in reverse order, each reply tells which port was asked about.
	slices.Reverse(requests)
	for _, env := range requests {
		var req wire.Checkport
		requireT.NoError(env.Decode(&req))
		r.reply(*env.ReqID, response.Checkport("open", fmt.Sprintf("port-%d", req.Port)))
	}

	for i, ch := range results {
		res := <-ch
		requireT.NoError(res.Err)
		requireT.Equal(fmt.Sprintf("port-%d", 1000+i), res.Value.IPExternal)
	}
}

func TestLateReplyIsDiscarded(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{
		MaxMessageSize: maxMsgSize,
		RequestTimeout: 50 * time.Millisecond,
	}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	pingCh := async(func() (bool, error) {
		return p.Ping(ctx)
	})
	late := r.receive()

	res := <-pingCh
	requireT.ErrorIs(res.Err, context.DeadlineExceeded)

	// Nobody waits for this reply anymore.
	r.reply(*late.ReqID, response.Ping())

	pingCh = async(func() (bool, error) {
		return p.Ping(ctx)
	})
	env := r.receive()
	requireT.NotEqual(*late.ReqID, *env.ReqID)
	r.reply(*env.ReqID, response.Ping())

	res = <-pingCh
	requireT.NoError(res.Err)
	requireT.True(res.Value)
}

func TestPingWithUnexpectedBody(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	pingCh := async(func() (bool, error) {
		return p.Ping(ctx)
	})
	env := r.receive()
	r.reply(*env.ReqID, wire.PingResponse{Body: "Ping?"})

	res := <-pingCh
	requireT.NoError(res.Err)
	requireT.False(res.Value)
}

func TestPiggybackedEnvelope(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	pingCh := async(func() (bool, error) {
		return p.Ping(ctx)
	})
	ourPing := r.receive()

	// Remote pings us inside the envelope replying to our ping.
	r.sendMap(map[string]any{
		"cmd":    "ping",
		"req_id": 77,
		"to":     *ourPing.ReqID,
		"params": map[string]any{},
	})

	res := <-pingCh
	requireT.NoError(res.Err)
	requireT.False(res.Value)

	pong := r.receive()
	requireT.True(pong.IsResponse())
	requireT.EqualValues(77, *pong.To)
	var body wire.PingResponse
	requireT.NoError(pong.Decode(&body))
	requireT.Equal(wire.PongBody, body.Body)
}

func TestInboundHandshake(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{
		MaxMessageSize: maxMsgSize,
		Handshake: wire.Handshake{
			FileserverPort: 15441,
			Version:        "0.7.6",
		},
	}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	env, err := correlation.NewRequest(string(wire.CmdHandshake), uint64(1), wire.Handshake{
		PeerID:   "-ZN0076-remote",
		Version:  "0.8.0",
		Protocol: "v2",
	})
	requireT.NoError(err)
	r.send(env)

	reply := r.receive()
	requireT.EqualValues(1, *reply.To)

	var h wire.Handshake
	requireT.NoError(reply.Decode(&h))
	requireT.Equal("0.7.6", h.Version)
	requireT.EqualValues(15441, h.FileserverPort)
	requireT.Equal("v2", h.Protocol)
	requireT.Contains(h.PeerID, "-ZP0100-")
	requireT.Len(h.PeerID, 20)

	remoteHandshake, exists := p.RemoteHandshake()
	requireT.True(exists)
	requireT.Equal("0.8.0", remoteHandshake.Version)

	// Peer id stays the same for the whole connection.
	env, err = correlation.NewRequest(string(wire.CmdHandshake), uint64(2), wire.Handshake{})
	requireT.NoError(err)
	r.send(env)

	reply = r.receive()
	var h2 wire.Handshake
	requireT.NoError(reply.Decode(&h2))
	requireT.Equal(h.PeerID, h2.PeerID)
}

func TestUnknownCommand(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	handlerCalled := false
	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, zeropeer.HandlerFunc(
		func(ctx context.Context, r zeropeer.Responder[uint64], req *zeropeer.IncomingRequest) error {
			handlerCalled = true
			return nil
		}))
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	r.sendMap(map[string]any{
		"cmd":    "actionUnknown",
		"req_id": 5,
		"params": map[string]any{},
	})

	reply := r.receive()
	requireT.EqualValues(5, *reply.To)
	var failure wire.ErrorResponse
	requireT.NoError(reply.Decode(&failure))
	requireT.Equal("Unknown cmd", failure.Error)
	requireT.False(handlerCalled)
}

func TestHandlerError(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, zeropeer.HandlerFunc(
		func(ctx context.Context, r zeropeer.Responder[uint64], req *zeropeer.IncomingRequest) error {
			var pex wire.Pex
			if err := req.Decode(&pex); err != nil {
				return err
			}
			return errors.Errorf("site %s not served", pex.Site)
		}))
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	env, err := correlation.NewRequest(string(wire.CmdPex), uint64(3), wire.Pex{Site: "1Site", Need: 5})
	requireT.NoError(err)
	r.send(env)

	reply := r.receive()
	var failure wire.ErrorResponse
	requireT.NoError(reply.Decode(&failure))
	requireT.Equal("site 1Site not served", failure.Error)
}

func TestSlowRequestDoesNotBlockPing(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	release := make(chan struct{})
	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, zeropeer.HandlerFunc(
		func(ctx context.Context, r zeropeer.Responder[uint64], req *zeropeer.IncomingRequest) error {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-release:
			}
			_, err := r.GetFile(ctx, req.ID, response.GetFile([]byte("body"), 4, 0))
			return err
		}))
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	env, err := correlation.NewRequest(string(wire.CmdGetFile), uint64(1), wire.GetFile{
		Site:      "1Site",
		InnerPath: "content.json",
	})
	requireT.NoError(err)
	r.send(env)

	env, err = correlation.NewRequest(string(wire.CmdPing), uint64(2), wire.Ping{})
	requireT.NoError(err)
	r.send(env)

	// Ping is answered while getFile is still being served.
	pong := r.receive()
	requireT.EqualValues(2, *pong.To)

	close(release)

	reply := r.receive()
	requireT.EqualValues(1, *reply.To)
	var file wire.GetFileResponse
	requireT.NoError(reply.Decode(&file))
	requireT.Equal([]byte("body"), file.Body)
}

func TestUncorrelatedEnvelopeTerminatesConnection(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	runCh := async(func() (struct{}, error) {
		return struct{}{}, p.Run(ctx)
	})

	r.sendMap(map[string]any{
		"cmd":    "ping",
		"params": map[string]any{},
	})

	res := <-runCh
	requireT.ErrorIs(res.Err, correlation.ErrUncorrelated)

	_, err := p.Ping(ctx)
	requireT.ErrorIs(err, zeropeer.ErrClosed)
}

func TestOversizedStreamTerminatesConnection(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: 64}, nil)
	defer r.conn.Close()

	runCh := async(func() (struct{}, error) {
		return struct{}{}, p.Run(ctx)
	})

	streamCh := async(func() (wire.StreamFileResult, error) {
		return p.StreamFile(ctx, "1Site", "content.json", 0, 0, 1000)
	})

	env := r.receive()
	r.reply(*env.ReqID, wire.StreamFileResponse{StreamBytes: 1000})

	res := <-runCh
	requireT.ErrorIs(res.Err, zeropeer.ErrMessageTooLarge)

	stream := <-streamCh
	requireT.ErrorIs(stream.Err, zeropeer.ErrClosed)
}

func TestStreamMismatchIsRefused(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	stream := response.StreamFile([]byte("abc"), 3, 3)
	stream.Response.StreamBytes = 5

	sent, err := p.Responder().StreamFile(ctx, 1, stream)
	requireT.ErrorIs(err, zeropeer.ErrStreamMismatch)
	requireT.False(sent)
}

func TestReplyAfterCancellation(t *testing.T) {
	requireT := require.New(t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	ctx, cancel := context.WithCancel(qa.NewContext(t))
	cancel()

	sent, err := p.Responder().Ping(ctx, 1)
	requireT.ErrorIs(err, context.Canceled)
	requireT.False(sent)
}

func TestRemoteErrorForSingleShapeCommand(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	p, r := pipePeer(requireT, zeropeer.PeerConfig{MaxMessageSize: maxMsgSize}, nil)
	defer r.conn.Close()

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("peer", parallel.Fail, p.Run)

	listCh := async(func() (wire.ListModifiedResponse, error) {
		return p.ListModified(ctx, "1Site", 0)
	})
	env := r.receive()
	r.reply(*env.ReqID, wire.ErrorResponse{Error: "Unknown site"})

	res := <-listCh
	requireT.ErrorIs(res.Err, zeropeer.ErrRemote)
	requireT.ErrorContains(res.Err, "Unknown site")
}
