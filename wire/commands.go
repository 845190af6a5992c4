package wire

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Command is the wire name of protocol operation.
type Command string

// Commands of the protocol.
const (
	CmdResponse       Command = "response"
	CmdHandshake      Command = "handshake"
	CmdPing           Command = "ping"
	CmdGetFile        Command = "getFile"
	CmdStreamFile     Command = "streamFile"
	CmdPex            Command = "pex"
	CmdUpdate         Command = "update"
	CmdListModified   Command = "listModified"
	CmdGetHashfield   Command = "getHashfield"
	CmdSetHashfield   Command = "setHashfield"
	CmdFindHashIDs    Command = "findHashIds"
	CmdCheckport      Command = "checkport"
	CmdGetPieceFields Command = "getPieceFields"
	CmdSetPieceFields Command = "setPieceFields"
)

// ErrUnknownCommand is returned for commands missing in the dispatch table.
var ErrUnknownCommand = errors.New("unknown command")

// Shapes describes request and response types of the command.
type Shapes struct {
	Command     Command
	NewRequest  func() any
	NewResponse func() any
}

var dispatch = map[Command]Shapes{
	CmdHandshake:      shapes[Handshake, Handshake](CmdHandshake),
	CmdPing:           shapes[Ping, PingResponse](CmdPing),
	CmdGetFile:        shapes[GetFile, GetFileResult](CmdGetFile),
	CmdStreamFile:     shapes[StreamFile, StreamFileResult](CmdStreamFile),
	CmdPex:            shapes[Pex, PexResponse](CmdPex),
	CmdUpdate:         shapes[Update, UpdateResponse](CmdUpdate),
	CmdListModified:   shapes[ListModified, ListModifiedResponse](CmdListModified),
	CmdGetHashfield:   shapes[GetHashfield, GetHashfieldResponse](CmdGetHashfield),
	CmdSetHashfield:   shapes[SetHashfield, SetHashfieldResponse](CmdSetHashfield),
	CmdFindHashIDs:    shapes[FindHashIDs, FindHashIDsResponse](CmdFindHashIDs),
	CmdCheckport:      shapes[Checkport, CheckportResponse](CmdCheckport),
	CmdGetPieceFields: shapes[GetPieceFields, GetPieceFieldsResponse](CmdGetPieceFields),
	CmdSetPieceFields: shapes[SetPieceFields, SetPieceFieldsResponse](CmdSetPieceFields),
}

func shapes[Req, Resp any](cmd Command) Shapes {
	return Shapes{
		Command:     cmd,
		NewRequest:  func() any { return new(Req) },
		NewResponse: func() any { return new(Resp) },
	}
}

// Lookup returns shapes of the command.
func Lookup(cmd Command) (Shapes, error) {
	s, exists := dispatch[cmd]
	if !exists {
		return Shapes{}, errors.Wrapf(ErrUnknownCommand, "command %q", cmd)
	}
	return s, nil
}

// Commands returns all the commands of the dispatch table, sorted.
func Commands() []Command {
	cmds := lo.Keys(dispatch)
	slices.Sort(cmds)
	return cmds
}

// DecodeRequest decodes params of the command into its request shape.
func DecodeRequest(cmd Command, params []byte) (any, error) {
	s, err := Lookup(cmd)
	if err != nil {
		return nil, err
	}
	req := s.NewRequest()
	if len(params) == 0 {
		return req, nil
	}
	if err := Unmarshal(params, req); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodeResponse decodes reply to the command into its response shape.
func DecodeResponse(cmd Command, payload []byte) (any, error) {
	s, err := Lookup(cmd)
	if err != nil {
		return nil, err
	}
	resp := s.NewResponse()
	if len(payload) == 0 {
		return resp, nil
	}
	if err := Unmarshal(payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
