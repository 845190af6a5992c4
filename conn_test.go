package zeropeer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/resonance"
	"github.com/outofforest/zeropeer"
	"github.com/outofforest/zeropeer/correlation"
	"github.com/outofforest/zeropeer/response"
)

func TestResonanceConnFrames(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	config := resonance.Config{MaxMessageSize: maxMsgSize}
	peer := resonance.NewPeerBuffer()
	c1 := resonance.NewConnection(peer, config)
	c2 := resonance.NewConnection(peer.OtherPeer(), config)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	group.Spawn("c1", parallel.Fail, c1.Run)
	group.Spawn("c2", parallel.Fail, c2.Run)

	local := zeropeer.NewResonanceConn(c1)
	other := zeropeer.NewResonanceConn(c2)

	env, err := correlation.NewResponse(uint64(7), response.Ping())
	requireT.NoError(err)
	msg, err := env.Marshal()
	requireT.NoError(err)

	requireT.NoError(local.Send(msg))
	received, err := other.Receive()
	requireT.NoError(err)
	requireT.Equal(msg, received)

	decoded, err := correlation.Unmarshal[uint64](received)
	requireT.NoError(err)
	requireT.EqualValues(7, *decoded.To)

	requireT.NoError(local.SendRaw([]byte("stream")))
	raw, err := other.ReceiveRaw(6)
	requireT.NoError(err)
	requireT.Equal([]byte("stream"), raw)

	requireT.NoError(local.SendRaw([]byte("short")))
	_, err = other.ReceiveRaw(10)
	requireT.ErrorIs(err, zeropeer.ErrStreamMismatch)
}
