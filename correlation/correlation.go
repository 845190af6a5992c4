// Package correlation pairs requests with responses travelling over one multiplexed connection.
//
// Every transmitted unit carries up to two identifiers: the request id, present when the
// sender expects a reply, and the responds-to id, present when the unit replies to an
// earlier request. Both may be present at once, so a unit is classified by two independent
// flags instead of one request/response enum.
package correlation

import (
	"github.com/pkg/errors"
)

// ErrUncorrelated is returned for units carrying neither request nor responds-to id.
var ErrUncorrelated = errors.New("unit is neither request nor response")

// Correlated is implemented by everything carrying correlation identifiers.
type Correlated[ID comparable] interface {
	// RequestID returns the id the sender expects the reply to refer to.
	RequestID() (ID, bool)

	// RespondsTo returns the id of the request this unit replies to.
	RespondsTo() (ID, bool)
}

// IsRequest reports whether unit awaits a reply.
func IsRequest[ID comparable](c Correlated[ID]) bool {
	_, ok := c.RequestID()
	return ok
}

// IsResponse reports whether unit replies to an earlier request.
func IsResponse[ID comparable](c Correlated[ID]) bool {
	_, ok := c.RespondsTo()
	return ok
}

// Validate rejects units carrying neither of the identifiers.
func Validate[ID comparable](c Correlated[ID]) error {
	if !IsRequest(c) && !IsResponse(c) {
		return errors.WithStack(ErrUncorrelated)
	}
	return nil
}
