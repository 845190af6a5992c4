package codec_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/outofforest/zeropeer/internal/codec"
)

var errRejected = errors.New("rejected")

type rejecting struct{}

func (r *rejecting) DecodeMsgpack(dec *msgpack.Decoder) error {
	if _, err := dec.DecodeString(); err != nil {
		return err
	}
	return errors.WithStack(errRejected)
}

func TestUnmarshalKeepsCause(t *testing.T) {
	requireT := require.New(t)

	data, err := codec.Marshal("value")
	requireT.NoError(err)

	err = codec.Unmarshal(data, &rejecting{})
	requireT.ErrorIs(err, codec.ErrDecode)
	requireT.ErrorIs(err, errRejected)
	requireT.ErrorContains(err, "rejected")
}

func TestUnmarshalTrailingBytes(t *testing.T) {
	requireT := require.New(t)

	var s string
	err := codec.Unmarshal([]byte{0xa1, 'a', 0xc0}, &s)
	requireT.ErrorIs(err, codec.ErrDecode)
	requireT.Equal("a", s)
}
