package zeropeer

import (
	"time"

	"github.com/outofforest/zeropeer/wire"
)

// DefaultMaxMessageSize is used when config does not specify the limit.
const DefaultMaxMessageSize = 16 * 1024 * 1024

// PeerConfig is the config of peer connection.
type PeerConfig struct {
	// MaxMessageSize limits the size of a single envelope and of the raw bytes following it.
	MaxMessageSize uint64

	// RequestTimeout limits the time spent waiting for each reply. Zero means no limit
	// other than the one set by the context.
	RequestTimeout time.Duration

	// Handshake is the local handshake record. Peer id and time are filled in when empty.
	Handshake wire.Handshake
}

func (c PeerConfig) maxMessageSize() uint64 {
	if c.MaxMessageSize == 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}
