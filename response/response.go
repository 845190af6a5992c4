// Package response builds the payloads sent back to peers.
package response

import (
	"github.com/outofforest/zeropeer/wire"
)

// OkBody is the acknowledgement sent by most of the commands.
const OkBody = "Updated"

// Ping returns reply to ping.
func Ping() wire.PingResponse {
	return wire.PingResponse{Body: wire.PongBody}
}

// GetFile returns file chunk.
func GetFile(body []byte, size, location uint64) wire.GetFileResult {
	if body == nil {
		body = []byte{}
	}
	return wire.GetFileResult{Response: &wire.GetFileResponse{
		Body:     body,
		Location: location,
		Size:     size,
	}}
}

// GetFileError returns refusal to serve the file.
func GetFileError(reason string) wire.GetFileResult {
	return wire.GetFileResult{Error: &wire.ErrorResponse{Error: reason}}
}

// StreamFile returns announcement of the streamed bytes.
func StreamFile(stream []byte, location, size uint64) wire.StreamFileResult {
	return wire.StreamFileResult{Response: &wire.StreamFileResponse{
		Location:    location,
		Size:        size,
		StreamBytes: uint64(len(stream)),
		Stream:      stream,
	}}
}

// StreamFileError returns refusal to stream the file.
func StreamFileError(reason string) wire.StreamFileResult {
	return wire.StreamFileResult{Error: &wire.ErrorResponse{Error: reason}}
}

// Pex returns packed addresses of peers.
func Pex(peers, peersIPv6, peersOnion [][]byte) wire.PexResponse {
	return wire.PexResponse{
		Peers:      nonNil(peers),
		PeersIPv6:  nonNil(peersIPv6),
		PeersOnion: nonNil(peersOnion),
	}
}

// Update acknowledges site update.
func Update(ok string) wire.UpdateResponse {
	return wire.UpdateResponse{Ok: ok}
}

// ListModified returns modification timestamps of files.
func ListModified(modifiedFiles map[string]uint64) wire.ListModifiedResponse {
	if modifiedFiles == nil {
		modifiedFiles = map[string]uint64{}
	}
	return wire.ListModifiedResponse{ModifiedFiles: modifiedFiles}
}

// GetHashfield returns hashfield.
func GetHashfield(hashfieldRaw []byte) wire.GetHashfieldResponse {
	return wire.GetHashfieldResponse{HashfieldRaw: hashfieldRaw}
}

// SetHashfield acknowledges hashfield.
func SetHashfield(ok string) wire.SetHashfieldResponse {
	return wire.SetHashfieldResponse{Ok: ok}
}

// FindHashIDs returns peers holding the hash ids and the ids held locally.
func FindHashIDs(peers, peersIPv6, peersOnion map[uint64][][]byte, my []uint64) wire.FindHashIDsResponse {
	if my == nil {
		my = []uint64{}
	}
	return wire.FindHashIDsResponse{
		Peers:      nonNilMap(peers),
		PeersIPv6:  nonNilMap(peersIPv6),
		PeersOnion: nonNilMap(peersOnion),
		My:         my,
	}
}

// Checkport returns result of the port check.
func Checkport(status, ipExternal string) wire.CheckportResponse {
	return wire.CheckportResponse{Status: status, IPExternal: ipExternal}
}

// GetPieceFields returns packed piece fields.
func GetPieceFields(piecefieldsPacked []byte) wire.GetPieceFieldsResponse {
	return wire.GetPieceFieldsResponse{PiecefieldsPacked: piecefieldsPacked}
}

// SetPieceFields acknowledges piece fields.
func SetPieceFields(ok bool) wire.SetPieceFieldsResponse {
	return wire.SetPieceFieldsResponse{Ok: ok}
}

func nonNil(addrs [][]byte) [][]byte {
	if addrs == nil {
		return [][]byte{}
	}
	return addrs
}

func nonNilMap(addrs map[uint64][][]byte) map[uint64][][]byte {
	if addrs == nil {
		return map[uint64][][]byte{}
	}
	return addrs
}
