package zeropeer

import (
	"context"
	"io"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/zeropeer/response"
	"github.com/outofforest/zeropeer/wire"
)

// RunServer accepts raw msgpack stream connections and serves each of them by separate peer.
func RunServer(ctx context.Context, ls net.Listener, config PeerConfig, handler Handler) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("listener", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			_ = ls.Close()
			return errors.WithStack(ctx.Err())
		})
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			log := logger.Get(ctx)

			for {
				conn, err := ls.Accept()
				if err != nil {
					if ctx.Err() != nil {
						return errors.WithStack(ctx.Err())
					}
					return errors.WithStack(err)
				}

				spawn("conn", parallel.Continue, func(ctx context.Context) error {
					p := NewPeer(NewStreamConn(conn, config.maxMessageSize()), config, handler)
					err := p.Run(ctx)

					switch {
					case ctx.Err() != nil:
					case isDisconnect(err):
						log.Debug("Peer disconnected", zap.Stringer("peer", conn.RemoteAddr()))
					default:
						log.Error("Peer connection failed", zap.Stringer("peer", conn.RemoteAddr()), zap.Error(err))
					}
					return nil
				})
			}
		})

		return nil
	})
}

// RunResonanceServer accepts resonance connections and serves each of them by separate peer.
func RunResonanceServer(ctx context.Context, ls net.Listener, config PeerConfig, handler Handler) error {
	return resonance.RunServer(ctx, ls, resonanceConfig(config),
		func(ctx context.Context, c *resonance.Connection) error {
			return NewPeer(NewResonanceConn(c), config, handler).Run(ctx)
		})
}

var _ Responder[uint64] = responder{}

type responder struct {
	peer *Peer
}

func (r responder) Handshake(ctx context.Context, to uint64, h wire.Handshake) (bool, error) {
	return r.peer.reply(ctx, to, h, nil)
}

func (r responder) Ping(ctx context.Context, to uint64) (bool, error) {
	return r.peer.reply(ctx, to, response.Ping(), nil)
}

func (r responder) GetFile(ctx context.Context, to uint64, result wire.GetFileResult) (bool, error) {
	return r.peer.reply(ctx, to, result, nil)
}

func (r responder) StreamFile(ctx context.Context, to uint64, result wire.StreamFileResult) (bool, error) {
	var stream []byte
	if !result.IsError() && result.Response != nil {
		stream = result.Response.Stream
		if uint64(len(stream)) != result.Response.StreamBytes {
			return false, errors.Wrapf(ErrStreamMismatch, "%d bytes announced, %d provided",
				result.Response.StreamBytes, len(stream))
		}
	}
	return r.peer.reply(ctx, to, result, stream)
}

func (r responder) ListModified(ctx context.Context, to uint64, resp wire.ListModifiedResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) Pex(ctx context.Context, to uint64, resp wire.PexResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) Update(ctx context.Context, to uint64, resp wire.UpdateResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) GetHashfield(ctx context.Context, to uint64, resp wire.GetHashfieldResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) SetHashfield(ctx context.Context, to uint64, resp wire.SetHashfieldResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) FindHashIDs(ctx context.Context, to uint64, resp wire.FindHashIDsResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) Checkport(ctx context.Context, to uint64, resp wire.CheckportResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) GetPieceFields(ctx context.Context, to uint64, resp wire.GetPieceFieldsResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) SetPieceFields(ctx context.Context, to uint64, resp wire.SetPieceFieldsResponse) (bool, error) {
	return r.peer.reply(ctx, to, resp, nil)
}

func (r responder) Fail(ctx context.Context, to uint64, reason string) (bool, error) {
	return r.peer.reply(ctx, to, wire.ErrorResponse{Error: reason}, nil)
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
