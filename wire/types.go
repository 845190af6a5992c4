package wire

import (
	"github.com/outofforest/zeropeer/value"
)

// PongBody is the body of the reply to ping.
const PongBody = "Pong!"

// ErrorResponse is sent instead of the regular response when peer cannot serve the request.
type ErrorResponse struct {
	Error string `msgpack:"error"`
}

// OkResponse is the generic acknowledgement.
type OkResponse struct {
	Ok string `msgpack:"ok"`
}

// Handshake is exchanged by peers when connection is established.
type Handshake struct {
	PeerID         string   `msgpack:"peer_id"`
	FileserverPort uint64   `msgpack:"fileserver_port"`
	Time           uint64   `msgpack:"time"`
	Crypt          *string  `msgpack:"crypt,omitempty"`
	CryptSupported []string `msgpack:"crypt_supported,omitempty"`
	UseBinType     bool     `msgpack:"use_bin_type,omitempty"`
	Onion          *string  `msgpack:"onion,omitempty"`
	Protocol       string   `msgpack:"protocol,omitempty"`
	PortOpened     *bool    `msgpack:"port_opened,omitempty"`
	Rev            uint64   `msgpack:"rev,omitempty"`
	TargetAddress  *string  `msgpack:"target_ip,omitempty"`
	Version        string   `msgpack:"version,omitempty"`
}

// Ping checks if peer is alive.
type Ping struct{}

// PingResponse is the reply to ping.
type PingResponse struct {
	Body string `msgpack:"body"`
}

// GetFile requests file content.
type GetFile struct {
	Site      string  `msgpack:"site"`
	InnerPath string  `msgpack:"inner_path"`
	Location  uint64  `msgpack:"location"`
	ReadBytes *uint64 `msgpack:"read_bytes,omitempty"`
	FileSize  uint64  `msgpack:"file_size,omitempty"`
}

// GetFileResponse carries requested part of the file.
type GetFileResponse struct {
	Body     []byte `msgpack:"body"`
	Location uint64 `msgpack:"location"`
	Size     uint64 `msgpack:"size"`
}

// StreamFile requests file content sent as raw bytes following the response.
type StreamFile struct {
	Site      string `msgpack:"site"`
	InnerPath string `msgpack:"inner_path"`
	Location  uint64 `msgpack:"location"`
	ReadBytes uint64 `msgpack:"read_bytes,omitempty"`
	FileSize  uint64 `msgpack:"file_size,omitempty"`
}

// StreamFileResponse announces the number of raw bytes following the response.
type StreamFileResponse struct {
	Location    uint64 `msgpack:"location"`
	Size        uint64 `msgpack:"size"`
	StreamBytes uint64 `msgpack:"stream_bytes"`

	// Stream holds the raw bytes transmitted after the response.
	Stream []byte `msgpack:"-"`
}

// Pex exchanges peers of the site.
type Pex struct {
	Site       string    `msgpack:"site"`
	Peers      [][]byte  `msgpack:"peers"`
	PeersOnion *[][]byte `msgpack:"peers_onion,omitempty"`
	PeersIPv6  *[][]byte `msgpack:"peers_ipv6,omitempty"`
	Need       uint64    `msgpack:"need"`
}

// PexResponse carries packed addresses of peers.
type PexResponse struct {
	Peers      [][]byte `msgpack:"peers"`
	PeersIPv6  [][]byte `msgpack:"peers_ipv6"`
	PeersOnion [][]byte `msgpack:"peers_onion"`
}

// Update notifies peer about new version of the file.
type Update struct {
	Site      string                   `msgpack:"site"`
	InnerPath string                   `msgpack:"inner_path"`
	Body      []byte                   `msgpack:"body"`
	Modified  uint64                   `msgpack:"modified"`
	Diffs     map[string][]value.Value `msgpack:"diffs"`
}

// UpdateResponse acknowledges update.
type UpdateResponse struct {
	Ok string `msgpack:"ok"`
}

// ListModified requests files modified since the timestamp.
type ListModified struct {
	Site  string `msgpack:"site"`
	Since uint64 `msgpack:"since"`
}

// ListModifiedResponse maps inner paths to modification timestamps.
type ListModifiedResponse struct {
	ModifiedFiles map[string]uint64 `msgpack:"modified_files"`
}

// GetHashfield requests hashfield of the site.
type GetHashfield struct {
	Site string `msgpack:"site"`
}

// GetHashfieldResponse carries the hashfield.
type GetHashfieldResponse struct {
	HashfieldRaw []byte `msgpack:"hashfield_raw"`
}

// SetHashfield announces hashfield of the site.
type SetHashfield struct {
	Site         string `msgpack:"site"`
	HashfieldRaw []byte `msgpack:"hashfield_raw"`
}

// SetHashfieldResponse acknowledges hashfield.
type SetHashfieldResponse struct {
	Ok string `msgpack:"ok"`
}

// FindHashIDs asks which peers hold the hash ids.
type FindHashIDs struct {
	Site    string   `msgpack:"site"`
	HashIDs []uint64 `msgpack:"hash_ids"`
}

// FindHashIDsResponse maps hash ids to packed addresses of peers holding them.
type FindHashIDsResponse struct {
	Peers      map[uint64][][]byte `msgpack:"peers"`
	PeersIPv6  map[uint64][][]byte `msgpack:"peers_ipv6"`
	PeersOnion map[uint64][][]byte `msgpack:"peers_onion"`
	My         []uint64            `msgpack:"my"`
}

// Checkport asks peer to check if our port is reachable.
type Checkport struct {
	Port uint16 `msgpack:"port"`
}

// CheckportResponse reports reachability of the port.
type CheckportResponse struct {
	Status     string `msgpack:"status"`
	IPExternal string `msgpack:"ip_external"`
}

// GetPieceFields requests piece fields of the site.
type GetPieceFields struct {
	Site string `msgpack:"site"`
}

// GetPieceFieldsResponse carries packed piece fields.
type GetPieceFieldsResponse struct {
	PiecefieldsPacked []byte `msgpack:"piecefields_packed"`
}

// SetPieceFields announces piece fields of the site.
type SetPieceFields struct {
	Site              string `msgpack:"site"`
	PiecefieldsPacked []byte `msgpack:"piecefields_packed"`
}

// SetPieceFieldsResponse acknowledges piece fields.
type SetPieceFieldsResponse struct {
	Ok bool `msgpack:"ok"`
}
