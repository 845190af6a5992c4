package zeropeer

import (
	"context"

	"github.com/outofforest/zeropeer/correlation"
	"github.com/outofforest/zeropeer/wire"
)

// Handler serves requests received from the peer. Handshake and ping are answered by the peer itself.
//
// Returning wire.ErrUnknownCommand makes the peer reply with the unknown command error.
// Any other error is sent to the peer as the error message.
// Requests are served concurrently, so a slow request does not hold back the others.
type Handler interface {
	HandleRequest(ctx context.Context, r Responder[uint64], req *IncomingRequest) error
}

// HandlerFunc adapts function to Handler.
type HandlerFunc func(ctx context.Context, r Responder[uint64], req *IncomingRequest) error

// HandleRequest calls f.
func (f HandlerFunc) HandleRequest(ctx context.Context, r Responder[uint64], req *IncomingRequest) error {
	return f(ctx, r, req)
}

// IncomingRequest is the request received from the peer.
type IncomingRequest struct {
	ID  uint64
	Cmd wire.Command

	envelope correlation.Envelope[uint64]
}

// Decode decodes request params into msg.
func (r *IncomingRequest) Decode(msg any) error {
	return r.envelope.Decode(msg)
}

// Params decodes request params into the type registered for the command.
func (r *IncomingRequest) Params() (any, error) {
	return wire.DecodeRequest(r.Cmd, r.envelope.Payload)
}
