package request_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/outofforest/zeropeer/request"
	"github.com/outofforest/zeropeer/value"
	"github.com/outofforest/zeropeer/wire"
)

func fields(requireT *require.Assertions, msg any) map[string]any {
	data, err := wire.Marshal(msg)
	requireT.NoError(err)

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var out map[string]any
	requireT.NoError(dec.Decode(&out))
	return out
}

func TestGetFile(t *testing.T) {
	requireT := require.New(t)

	readBytes := uint64(512)
	cmd, req := request.GetFile("siteA", "index.html", 1024, 0, &readBytes)
	requireT.Equal(wire.CmdGetFile, cmd)
	requireT.EqualValues("getFile", cmd)
	f := fields(requireT, req)
	requireT.Len(f, 5)
	requireT.Equal("siteA", f["site"])
	requireT.Equal("index.html", f["inner_path"])
	requireT.EqualValues(0, f["location"])
	requireT.EqualValues(512, f["read_bytes"])
	requireT.EqualValues(1024, f["file_size"])

	_, req = request.GetFile("siteA", "index.html", 1024, 0, nil)
	requireT.Nil(req.ReadBytes)
	requireT.NotContains(fields(requireT, req), "read_bytes")
}

func TestStreamFile(t *testing.T) {
	requireT := require.New(t)

	cmd, req := request.StreamFile("siteA", "big.bin", 4096, 1024, 512)
	requireT.EqualValues("streamFile", cmd)
	requireT.Equal(&wire.StreamFile{
		Site:      "siteA",
		InnerPath: "big.bin",
		Location:  1024,
		ReadBytes: 512,
		FileSize:  4096,
	}, req)
}

func TestPex(t *testing.T) {
	requireT := require.New(t)

	cmd, req := request.Pex("siteA", 5)
	requireT.EqualValues("pex", cmd)
	requireT.NotNil(req.Peers)
	requireT.Empty(req.Peers)
	requireT.NotNil(req.PeersOnion)
	requireT.Empty(*req.PeersOnion)
	requireT.NotNil(req.PeersIPv6)
	requireT.Empty(*req.PeersIPv6)
	requireT.EqualValues(5, req.Need)

	f := fields(requireT, req)
	requireT.Len(f, 5)
	requireT.Equal("siteA", f["site"])
	requireT.Equal([]any{}, f["peers"])
	requireT.Equal([]any{}, f["peers_onion"])
	requireT.Equal([]any{}, f["peers_ipv6"])
	requireT.EqualValues(5, f["need"])
}

func TestUpdate(t *testing.T) {
	requireT := require.New(t)

	diffs := map[string][]value.Value{"index.html": {value.Array(value.String("="), value.Uint(3))}}
	cmd, req := request.Update("siteA", "content.json", []byte("{}"), diffs, 42)
	requireT.EqualValues("update", cmd)
	requireT.Equal("siteA", req.Site)
	requireT.Equal("content.json", req.InnerPath)
	requireT.Equal([]byte("{}"), req.Body)
	requireT.EqualValues(42, req.Modified)
	requireT.Equal(diffs, req.Diffs)

	_, req = request.Update("siteA", "content.json", nil, nil, 0)
	requireT.NotNil(req.Body)
	requireT.NotNil(req.Diffs)
}

func TestCommandNames(t *testing.T) {
	requireT := require.New(t)

	cmds := map[wire.Command]string{}
	add := func(cmd wire.Command, _ any) {
		cmds[cmd] = string(cmd)
	}

	add(request.Handshake(wire.Handshake{}))
	add(request.Ping())
	add(request.GetFile("s", "p", 0, 0, nil))
	add(request.StreamFile("s", "p", 0, 0, 0))
	add(request.Pex("s", 1))
	add(request.Update("s", "p", nil, nil, 0))
	add(request.ListModified("s", 0))
	add(request.GetHashfield("s"))
	add(request.SetHashfield("s", nil))
	add(request.FindHashIDs("s", nil))
	add(request.Checkport(15441))
	add(request.GetPieceFields("s"))
	add(request.SetPieceFields("s", nil))

	requireT.Len(cmds, len(wire.Commands()))
	for _, cmd := range wire.Commands() {
		requireT.Contains(cmds, cmd)
		_, err := wire.Lookup(cmd)
		requireT.NoError(err)
	}
}

func TestRequiredFieldsCarriedThrough(t *testing.T) {
	requireT := require.New(t)

	_, lm := request.ListModified("siteA", 1700000000)
	requireT.Equal(&wire.ListModified{Site: "siteA", Since: 1700000000}, lm)

	_, sh := request.SetHashfield("siteA", []byte{0x01, 0x02})
	requireT.Equal(&wire.SetHashfield{Site: "siteA", HashfieldRaw: []byte{0x01, 0x02}}, sh)

	_, fh := request.FindHashIDs("siteA", []uint64{1, 2, 3})
	requireT.Equal(&wire.FindHashIDs{Site: "siteA", HashIDs: []uint64{1, 2, 3}}, fh)

	_, cp := request.Checkport(15441)
	requireT.Equal(&wire.Checkport{Port: 15441}, cp)

	_, sp := request.SetPieceFields("siteA", []byte{0xff})
	requireT.Equal(&wire.SetPieceFields{Site: "siteA", PiecefieldsPacked: []byte{0xff}}, sp)

	_, gp := request.GetPieceFields("siteA")
	requireT.Equal(&wire.GetPieceFields{Site: "siteA"}, gp)

	_, gh := request.GetHashfield("siteA")
	requireT.Equal(&wire.GetHashfield{Site: "siteA"}, gh)

	h := wire.Handshake{PeerID: "p", FileserverPort: 1, Time: 2}
	_, hp := request.Handshake(h)
	requireT.Equal(&h, hp)
}
