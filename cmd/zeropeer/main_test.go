package main

import (
	"bytes"
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/parallel"
	"github.com/outofforest/qa"
	"github.com/outofforest/zeropeer"
	"github.com/outofforest/zeropeer/wire"
)

func TestPingServedPeer(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	cfg := defaultConfig()
	cfg.Peer.Handshake.Version = "test"
	cfg.Peer.Handshake.FileserverPort = 15441

	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return serve(ctx, cfg, ls)
	})

	out := &bytes.Buffer{}
	requireT.NoError(ping(ctx, cfg, ls.Addr().String(), out))
	requireT.Contains(out.String(), "version=test")
	requireT.Contains(out.String(), "fileserver_port=15441")
	requireT.Contains(out.String(), "alive=true")
}

func TestServedPeerHasNoSites(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)
	group := qa.NewGroup(ctx, t)

	defer func() {
		group.Exit(nil)
		requireT.NoError(group.Wait())
	}()

	ls, err := net.Listen("tcp", "localhost:0")
	requireT.NoError(err)

	cfg := defaultConfig()
	group.Spawn("server", parallel.Fail, func(ctx context.Context) error {
		return serve(ctx, cfg, ls)
	})

	var (
		file                wire.GetFileResult
		pex                 wire.PexResponse
		updateErr, checkErr error
	)
	requireT.NoError(zeropeer.RunClient(ctx, ls.Addr().String(), cfg.Peer, nil,
		func(ctx context.Context, p *zeropeer.Peer) error {
			var err error
			if file, err = p.GetFile(ctx, "1Site", "content.json", 0, 0, nil); err != nil {
				return err
			}
			if pex, err = p.Pex(ctx, "1Site", 10); err != nil {
				return err
			}
			_, updateErr = p.Update(ctx, "1Site", "content.json", []byte("{}"), nil, 1)
			_, checkErr = p.Checkport(ctx, 15441)
			return nil
		}))

	requireT.True(file.IsError())
	requireT.Equal(unknownSite, file.Error.Error)
	requireT.Empty(pex.Peers)
	requireT.ErrorIs(updateErr, zeropeer.ErrRemote)
	requireT.ErrorContains(updateErr, unknownSite)
	requireT.ErrorIs(checkErr, zeropeer.ErrRemote)
	requireT.ErrorContains(checkErr, "Unknown cmd")
}

func TestUsage(t *testing.T) {
	requireT := require.New(t)

	ctx := qa.NewContext(t)

	requireT.Error(run(ctx, nil, &bytes.Buffer{}))
	requireT.Error(run(ctx, []string{"ping"}, &bytes.Buffer{}))
	requireT.ErrorContains(run(ctx, []string{"fly"}, &bytes.Buffer{}), "unknown command")
}
