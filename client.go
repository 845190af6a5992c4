package zeropeer

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
	"github.com/outofforest/zeropeer/request"
	"github.com/outofforest/zeropeer/value"
	"github.com/outofforest/zeropeer/wire"
)

// SessionFunc uses the connected peer. Connection is closed once it returns.
type SessionFunc func(ctx context.Context, p *Peer) error

// RunClient connects to the peer speaking raw msgpack stream and runs fn using the connection.
func RunClient(ctx context.Context, addr string, config PeerConfig, handler Handler, fn SessionFunc) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.WithStack(err)
	}

	return runSession(ctx, NewPeer(NewStreamConn(conn, config.maxMessageSize()), config, handler), fn)
}

// RunResonanceClient connects to the peer over resonance and runs fn using the connection.
func RunResonanceClient(ctx context.Context, addr string, config PeerConfig, handler Handler, fn SessionFunc) error {
	return resonance.RunClient(ctx, addr, resonanceConfig(config),
		func(ctx context.Context, c *resonance.Connection) error {
			return runSession(ctx, NewPeer(NewResonanceConn(c), config, handler), fn)
		})
}

func runSession(ctx context.Context, p *Peer, fn SessionFunc) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("peer", parallel.Fail, p.Run)
		spawn("session", parallel.Exit, func(ctx context.Context) error {
			return fn(ctx, p)
		})

		return nil
	})
}

func resonanceConfig(config PeerConfig) resonance.Config {
	return resonance.Config{
		MaxMessageSize: config.maxMessageSize(),
	}
}

// Handshake exchanges handshake records with the peer.
func (p *Peer) Handshake(ctx context.Context) (wire.Handshake, error) {
	local, err := p.localHandshake()
	if err != nil {
		return wire.Handshake{}, err
	}

	cmd, params := request.Handshake(local)
	h, err := call[wire.Handshake](ctx, p, cmd, params)
	if err != nil {
		return wire.Handshake{}, err
	}
	p.setRemote(h)
	return h, nil
}

// Ping reports whether peer answers with pong.
func (p *Peer) Ping(ctx context.Context) (bool, error) {
	cmd, params := request.Ping()
	resp, err := call[wire.PingResponse](ctx, p, cmd, params)
	if err != nil {
		return false, err
	}
	return resp.Body == wire.PongBody, nil
}

// GetFile requests part of the file sent inside the reply.
func (p *Peer) GetFile(
	ctx context.Context,
	site, innerPath string,
	fileSize, location uint64,
	readBytes *uint64,
) (wire.GetFileResult, error) {
	cmd, params := request.GetFile(site, innerPath, fileSize, location, readBytes)
	return call[wire.GetFileResult](ctx, p, cmd, params)
}

// StreamFile requests part of the file sent as raw bytes after the reply.
func (p *Peer) StreamFile(
	ctx context.Context,
	site, innerPath string,
	fileSize, location, readBytes uint64,
) (wire.StreamFileResult, error) {
	cmd, params := request.StreamFile(site, innerPath, fileSize, location, readBytes)
	env, err := p.exchange(ctx, cmd, params)
	if err != nil {
		return wire.StreamFileResult{}, err
	}

	var result wire.StreamFileResult
	if err := env.Decode(&result); err != nil {
		return wire.StreamFileResult{}, errors.Wrapf(ErrUnexpectedReply, "%s: %s", cmd, err)
	}
	if result.Response != nil {
		result.Response.Stream = env.Attachment
		if result.Response.Stream == nil {
			result.Response.Stream = []byte{}
		}
	}
	return result, nil
}

// ListModified requests files modified since the timestamp.
func (p *Peer) ListModified(ctx context.Context, site string, since uint64) (wire.ListModifiedResponse, error) {
	cmd, params := request.ListModified(site, since)
	return call[wire.ListModifiedResponse](ctx, p, cmd, params)
}

// Pex requests peers of the site.
func (p *Peer) Pex(ctx context.Context, site string, need uint64) (wire.PexResponse, error) {
	cmd, params := request.Pex(site, need)
	return call[wire.PexResponse](ctx, p, cmd, params)
}

// Update notifies peer about the new version of the file.
func (p *Peer) Update(
	ctx context.Context,
	site, innerPath string,
	body []byte,
	diffs map[string][]value.Value,
	modified uint64,
) (wire.UpdateResponse, error) {
	cmd, params := request.Update(site, innerPath, body, diffs, modified)
	return call[wire.UpdateResponse](ctx, p, cmd, params)
}

// GetHashfield requests hashfield of the site.
func (p *Peer) GetHashfield(ctx context.Context, site string) (wire.GetHashfieldResponse, error) {
	cmd, params := request.GetHashfield(site)
	return call[wire.GetHashfieldResponse](ctx, p, cmd, params)
}

// SetHashfield sends our hashfield of the site.
func (p *Peer) SetHashfield(ctx context.Context, site string, hashfieldRaw []byte) (wire.SetHashfieldResponse, error) {
	cmd, params := request.SetHashfield(site, hashfieldRaw)
	return call[wire.SetHashfieldResponse](ctx, p, cmd, params)
}

// FindHashIDs asks for peers having the optional files.
func (p *Peer) FindHashIDs(ctx context.Context, site string, hashIDs []uint64) (wire.FindHashIDsResponse, error) {
	cmd, params := request.FindHashIDs(site, hashIDs)
	return call[wire.FindHashIDsResponse](ctx, p, cmd, params)
}

// Checkport asks peer to check if our port is reachable.
func (p *Peer) Checkport(ctx context.Context, port uint16) (wire.CheckportResponse, error) {
	cmd, params := request.Checkport(port)
	return call[wire.CheckportResponse](ctx, p, cmd, params)
}

// GetPieceFields requests piecefields of the site.
func (p *Peer) GetPieceFields(ctx context.Context, site string) (wire.GetPieceFieldsResponse, error) {
	cmd, params := request.GetPieceFields(site)
	return call[wire.GetPieceFieldsResponse](ctx, p, cmd, params)
}

// SetPieceFields sends our piecefields of the site.
func (p *Peer) SetPieceFields(
	ctx context.Context,
	site string,
	piecefieldsPacked []byte,
) (wire.SetPieceFieldsResponse, error) {
	cmd, params := request.SetPieceFields(site, piecefieldsPacked)
	return call[wire.SetPieceFieldsResponse](ctx, p, cmd, params)
}
