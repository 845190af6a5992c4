// Package request builds the (command, payload) pairs sent to peers.
package request

import (
	"github.com/outofforest/zeropeer/value"
	"github.com/outofforest/zeropeer/wire"
)

// Handshake returns handshake request carrying our handshake record.
func Handshake(h wire.Handshake) (wire.Command, *wire.Handshake) {
	return wire.CmdHandshake, &h
}

// Ping returns ping request.
func Ping() (wire.Command, *wire.Ping) {
	return wire.CmdPing, &wire.Ping{}
}

// GetFile returns request for file content. Nil readBytes lets the peer choose the chunk size.
func GetFile(site, innerPath string, fileSize, location uint64, readBytes *uint64) (wire.Command, *wire.GetFile) {
	return wire.CmdGetFile, &wire.GetFile{
		Site:      site,
		InnerPath: innerPath,
		Location:  location,
		ReadBytes: readBytes,
		FileSize:  fileSize,
	}
}

// StreamFile returns request for streamed file content.
func StreamFile(site, innerPath string, fileSize, location, readBytes uint64) (wire.Command, *wire.StreamFile) {
	return wire.CmdStreamFile, &wire.StreamFile{
		Site:      site,
		InnerPath: innerPath,
		Location:  location,
		ReadBytes: readBytes,
		FileSize:  fileSize,
	}
}

// Pex returns peer exchange request. We announce no peers of our own.
func Pex(site string, need uint64) (wire.Command, *wire.Pex) {
	return wire.CmdPex, &wire.Pex{
		Site:       site,
		Peers:      [][]byte{},
		PeersOnion: &[][]byte{},
		PeersIPv6:  &[][]byte{},
		Need:       need,
	}
}

// Update returns site update notification.
func Update(
	site, innerPath string,
	body []byte,
	diffs map[string][]value.Value,
	modified uint64,
) (wire.Command, *wire.Update) {
	if body == nil {
		body = []byte{}
	}
	if diffs == nil {
		diffs = map[string][]value.Value{}
	}
	return wire.CmdUpdate, &wire.Update{
		Site:      site,
		InnerPath: innerPath,
		Body:      body,
		Modified:  modified,
		Diffs:     diffs,
	}
}

// ListModified returns request for files modified since the timestamp.
func ListModified(site string, since uint64) (wire.Command, *wire.ListModified) {
	return wire.CmdListModified, &wire.ListModified{Site: site, Since: since}
}

// GetHashfield returns hashfield request.
func GetHashfield(site string) (wire.Command, *wire.GetHashfield) {
	return wire.CmdGetHashfield, &wire.GetHashfield{Site: site}
}

// SetHashfield returns hashfield announcement.
func SetHashfield(site string, hashfieldRaw []byte) (wire.Command, *wire.SetHashfield) {
	return wire.CmdSetHashfield, &wire.SetHashfield{Site: site, HashfieldRaw: hashfieldRaw}
}

// FindHashIDs returns hash id lookup request.
func FindHashIDs(site string, hashIDs []uint64) (wire.Command, *wire.FindHashIDs) {
	if hashIDs == nil {
		hashIDs = []uint64{}
	}
	return wire.CmdFindHashIDs, &wire.FindHashIDs{Site: site, HashIDs: hashIDs}
}

// Checkport returns port check request.
func Checkport(port uint16) (wire.Command, *wire.Checkport) {
	return wire.CmdCheckport, &wire.Checkport{Port: port}
}

// GetPieceFields returns piece fields request.
func GetPieceFields(site string) (wire.Command, *wire.GetPieceFields) {
	return wire.CmdGetPieceFields, &wire.GetPieceFields{Site: site}
}

// SetPieceFields returns piece fields announcement.
func SetPieceFields(site string, piecefieldsPacked []byte) (wire.Command, *wire.SetPieceFields) {
	return wire.CmdSetPieceFields, &wire.SetPieceFields{Site: site, PiecefieldsPacked: piecefieldsPacked}
}
