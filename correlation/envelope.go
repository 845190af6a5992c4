package correlation

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/outofforest/zeropeer/internal/codec"
)

// ResponseCmd is the command of the units carrying replies.
const ResponseCmd = "response"

const (
	keyCmd    = "cmd"
	keyReqID  = "req_id"
	keyTo     = "to"
	keyParams = "params"
)

var (
	// ErrMissingCommand is returned when decoded unit has no command.
	ErrMissingCommand = errors.New("unit has no command")

	// ErrMalformedPayload is returned when payload is not a map.
	ErrMalformedPayload = errors.New("payload is not a map")
)

var (
	_ Correlated[uint64]    = Envelope[uint64]{}
	_ msgpack.CustomEncoder = Envelope[uint64]{}
	_ msgpack.CustomDecoder = &Envelope[uint64]{}
)

// Envelope wraps a payload with correlation identifiers.
//
// On the wire requests carry the payload under "params", while replies (cmd = "response")
// carry the payload fields next to "cmd" and "to".
type Envelope[ID comparable] struct {
	Cmd   string
	ReqID *ID
	To    *ID

	// Payload is the msgpack encoded map of payload fields.
	Payload msgpack.RawMessage

	// Attachment holds raw bytes transmitted by the connection right after the envelope.
	Attachment []byte
}

// NewRequest creates envelope of the request.
func NewRequest[ID comparable](cmd string, id ID, payload any) (Envelope[ID], error) {
	raw, err := codec.Marshal(payload)
	if err != nil {
		return Envelope[ID]{}, err
	}
	return Envelope[ID]{
		Cmd:     cmd,
		ReqID:   &id,
		Payload: raw,
	}, nil
}

// NewResponse creates envelope of the reply to the request.
func NewResponse[ID comparable](to ID, payload any) (Envelope[ID], error) {
	raw, err := codec.Marshal(payload)
	if err != nil {
		return Envelope[ID]{}, err
	}
	return Envelope[ID]{
		Cmd:     ResponseCmd,
		To:      &to,
		Payload: raw,
	}, nil
}

// RequestID returns the id the sender expects the reply to refer to.
func (e Envelope[ID]) RequestID() (ID, bool) {
	if e.ReqID == nil {
		var id ID
		return id, false
	}
	return *e.ReqID, true
}

// RespondsTo returns the id of the request this envelope replies to.
func (e Envelope[ID]) RespondsTo() (ID, bool) {
	if e.To == nil {
		var id ID
		return id, false
	}
	return *e.To, true
}

// IsRequest reports whether envelope awaits a reply.
func (e Envelope[ID]) IsRequest() bool {
	return e.ReqID != nil
}

// IsResponse reports whether envelope replies to an earlier request.
func (e Envelope[ID]) IsResponse() bool {
	return e.To != nil
}

// Decode decodes payload into the message. Missing payload leaves message untouched.
func (e Envelope[ID]) Decode(msg any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return codec.Unmarshal(e.Payload, msg)
}

// Marshal encodes envelope.
func (e Envelope[ID]) Marshal() ([]byte, error) {
	return codec.Marshal(e)
}

// Unmarshal decodes envelope.
func Unmarshal[ID comparable](data []byte) (Envelope[ID], error) {
	var e Envelope[ID]
	if err := codec.Unmarshal(data, &e); err != nil {
		return Envelope[ID]{}, err
	}
	return e, nil
}

// EncodeMsgpack encodes envelope using msgpack encoder.
func (e Envelope[ID]) EncodeMsgpack(enc *msgpack.Encoder) error {
	fields := map[string]msgpack.RawMessage{}
	if len(e.Payload) > 0 {
		if e.Cmd == ResponseCmd {
			if err := codec.Unmarshal(e.Payload, &fields); err != nil {
				return errors.Wrap(ErrMalformedPayload, err.Error())
			}
		} else {
			fields[keyParams] = e.Payload
		}
	}

	if err := setField(fields, keyCmd, e.Cmd); err != nil {
		return err
	}
	if e.ReqID != nil {
		if err := setField(fields, keyReqID, *e.ReqID); err != nil {
			return err
		}
	}
	if e.To != nil {
		if err := setField(fields, keyTo, *e.To); err != nil {
			return err
		}
	}

	return enc.Encode(fields)
}

// DecodeMsgpack decodes envelope using msgpack decoder.
func (e *Envelope[ID]) DecodeMsgpack(dec *msgpack.Decoder) error {
	*e = Envelope[ID]{}

	var fields map[string]msgpack.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return err
	}

	rawCmd, exists := fields[keyCmd]
	if !exists {
		return errors.WithStack(ErrMissingCommand)
	}
	if err := codec.Unmarshal(rawCmd, &e.Cmd); err != nil {
		return err
	}
	delete(fields, keyCmd)

	var err error
	if e.ReqID, err = takeID[ID](fields, keyReqID); err != nil {
		return err
	}
	if e.To, err = takeID[ID](fields, keyTo); err != nil {
		return err
	}

	if e.Cmd != ResponseCmd {
		e.Payload = fields[keyParams]
		return nil
	}

	e.Payload, err = codec.Marshal(fields)
	return err
}

func setField(fields map[string]msgpack.RawMessage, key string, v any) error {
	raw, err := codec.Marshal(v)
	if err != nil {
		return err
	}
	fields[key] = raw
	return nil
}

func takeID[ID comparable](fields map[string]msgpack.RawMessage, key string) (*ID, error) {
	raw, exists := fields[key]
	if !exists {
		return nil, nil
	}
	delete(fields, key)

	// Explicit nil means absent.
	if len(raw) == 1 && raw[0] == msgpcode.Nil {
		return nil, nil
	}

	id := new(ID)
	if err := codec.Unmarshal(raw, id); err != nil {
		return nil, err
	}
	return id, nil
}
