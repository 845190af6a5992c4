package zeropeer

import (
	"context"

	"github.com/outofforest/zeropeer/value"
	"github.com/outofforest/zeropeer/wire"
)

// Requester issues protocol operations and waits for the matching replies.
//
// Errors report transport failures only. Peer refusing to serve a file is reported by the result variant.
type Requester interface {
	Handshake(ctx context.Context) (wire.Handshake, error)
	Ping(ctx context.Context) (bool, error)
	GetFile(
		ctx context.Context,
		site, innerPath string,
		fileSize, location uint64,
		readBytes *uint64,
	) (wire.GetFileResult, error)
	StreamFile(
		ctx context.Context,
		site, innerPath string,
		fileSize, location, readBytes uint64,
	) (wire.StreamFileResult, error)
	ListModified(ctx context.Context, site string, since uint64) (wire.ListModifiedResponse, error)
	Pex(ctx context.Context, site string, need uint64) (wire.PexResponse, error)
	Update(
		ctx context.Context,
		site, innerPath string,
		body []byte,
		diffs map[string][]value.Value,
		modified uint64,
	) (wire.UpdateResponse, error)
	GetHashfield(ctx context.Context, site string) (wire.GetHashfieldResponse, error)
	SetHashfield(ctx context.Context, site string, hashfieldRaw []byte) (wire.SetHashfieldResponse, error)
	FindHashIDs(ctx context.Context, site string, hashIDs []uint64) (wire.FindHashIDsResponse, error)
	Checkport(ctx context.Context, port uint16) (wire.CheckportResponse, error)
	GetPieceFields(ctx context.Context, site string) (wire.GetPieceFieldsResponse, error)
	SetPieceFields(ctx context.Context, site string, piecefieldsPacked []byte) (wire.SetPieceFieldsResponse, error)
}

// Responder sends replies to the requests received from the peer.
// Each method returns true once the reply identified by `to` has been dispatched.
type Responder[ID comparable] interface {
	Handshake(ctx context.Context, to ID, h wire.Handshake) (bool, error)
	Ping(ctx context.Context, to ID) (bool, error)
	GetFile(ctx context.Context, to ID, result wire.GetFileResult) (bool, error)
	StreamFile(ctx context.Context, to ID, result wire.StreamFileResult) (bool, error)
	ListModified(ctx context.Context, to ID, resp wire.ListModifiedResponse) (bool, error)
	Pex(ctx context.Context, to ID, resp wire.PexResponse) (bool, error)
	Update(ctx context.Context, to ID, resp wire.UpdateResponse) (bool, error)
	GetHashfield(ctx context.Context, to ID, resp wire.GetHashfieldResponse) (bool, error)
	SetHashfield(ctx context.Context, to ID, resp wire.SetHashfieldResponse) (bool, error)
	FindHashIDs(ctx context.Context, to ID, resp wire.FindHashIDsResponse) (bool, error)
	Checkport(ctx context.Context, to ID, resp wire.CheckportResponse) (bool, error)
	GetPieceFields(ctx context.Context, to ID, resp wire.GetPieceFieldsResponse) (bool, error)
	SetPieceFields(ctx context.Context, to ID, resp wire.SetPieceFieldsResponse) (bool, error)

	// Fail replies with the error message. Used for requests which cannot be served.
	Fail(ctx context.Context, to ID, reason string) (bool, error)
}
