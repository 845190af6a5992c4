package wire

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/outofforest/zeropeer/internal/codec"
)

var (
	_ msgpack.CustomEncoder = GetFileResult{}
	_ msgpack.CustomDecoder = &GetFileResult{}
	_ msgpack.CustomEncoder = StreamFileResult{}
	_ msgpack.CustomDecoder = &StreamFileResult{}
)

// ErrEmptyResult is returned when result holds neither response nor error.
var ErrEmptyResult = errors.New("result holds neither response nor error")

// GetFileResult is the reply to getFile. Exactly one of the fields is set.
type GetFileResult struct {
	Response *GetFileResponse
	Error    *ErrorResponse
}

// IsError reports whether peer refused to serve the file.
func (r GetFileResult) IsError() bool {
	return r.Error != nil
}

// EncodeMsgpack encodes the variant being set.
func (r GetFileResult) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeVariant(enc, r.Response, r.Error)
}

// DecodeMsgpack decodes error variant if error key is present, response otherwise.
func (r *GetFileResult) DecodeMsgpack(dec *msgpack.Decoder) error {
	*r = GetFileResult{}
	return decodeVariant(dec, &r.Response, &r.Error)
}

// StreamFileResult is the reply to streamFile. Exactly one of the fields is set.
type StreamFileResult struct {
	Response *StreamFileResponse
	Error    *ErrorResponse
}

// IsError reports whether peer refused to stream the file.
func (r StreamFileResult) IsError() bool {
	return r.Error != nil
}

// EncodeMsgpack encodes the variant being set.
func (r StreamFileResult) EncodeMsgpack(enc *msgpack.Encoder) error {
	return encodeVariant(enc, r.Response, r.Error)
}

// DecodeMsgpack decodes error variant if error key is present, response otherwise.
func (r *StreamFileResult) DecodeMsgpack(dec *msgpack.Decoder) error {
	*r = StreamFileResult{}
	return decodeVariant(dec, &r.Response, &r.Error)
}

func encodeVariant[T any](enc *msgpack.Encoder, resp *T, errResp *ErrorResponse) error {
	switch {
	case errResp != nil:
		return enc.Encode(errResp)
	case resp != nil:
		return enc.Encode(resp)
	default:
		return errors.WithStack(ErrEmptyResult)
	}
}

func decodeVariant[T any](dec *msgpack.Decoder, resp **T, errResp **ErrorResponse) error {
	raw, err := dec.DecodeRaw()
	if err != nil {
		return err
	}

	var head struct {
		Error *string `msgpack:"error"`
	}
	if err := codec.Unmarshal(raw, &head); err != nil {
		return err
	}

	if head.Error != nil {
		*errResp = &ErrorResponse{Error: *head.Error}
		return nil
	}

	*resp = new(T)
	return codec.Unmarshal(raw, *resp)
}
