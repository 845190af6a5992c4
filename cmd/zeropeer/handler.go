package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/outofforest/zeropeer"
	"github.com/outofforest/zeropeer/response"
	"github.com/outofforest/zeropeer/wire"
)

const unknownSite = "Unknown site"

// handle answers requests of peers without having any site stored.
func handle(ctx context.Context, r zeropeer.Responder[uint64], req *zeropeer.IncomingRequest) error {
	params, err := req.Params()
	if err != nil {
		return err
	}

	switch params.(type) {
	case *wire.GetFile:
		_, err = r.GetFile(ctx, req.ID, response.GetFileError(unknownSite))
	case *wire.StreamFile:
		_, err = r.StreamFile(ctx, req.ID, response.StreamFileError(unknownSite))
	case *wire.Pex:
		_, err = r.Pex(ctx, req.ID, response.Pex(nil, nil, nil))
	case *wire.ListModified:
		_, err = r.ListModified(ctx, req.ID, response.ListModified(nil))
	case *wire.GetHashfield:
		_, err = r.GetHashfield(ctx, req.ID, response.GetHashfield(nil))
	case *wire.FindHashIDs:
		_, err = r.FindHashIDs(ctx, req.ID, response.FindHashIDs(nil, nil, nil, nil))
	case *wire.GetPieceFields:
		_, err = r.GetPieceFields(ctx, req.ID, response.GetPieceFields(nil))
	case *wire.Update, *wire.SetHashfield, *wire.SetPieceFields:
		_, err = r.Fail(ctx, req.ID, unknownSite)
	default:
		return errors.Wrapf(wire.ErrUnknownCommand, "command %q", req.Cmd)
	}
	return err
}
