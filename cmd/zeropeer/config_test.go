package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/zeropeer"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "peer.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	requireT := require.New(t)

	cfg, err := loadConfig("")
	requireT.NoError(err)
	requireT.Equal(defaultConfig(), cfg)
	requireT.Equal(transportStream, cfg.Transport)
	requireT.EqualValues(zeropeer.DefaultMaxMessageSize, cfg.Peer.MaxMessageSize)
}

func TestLoadConfig(t *testing.T) {
	requireT := require.New(t)

	cfg, err := loadConfig(writeConfig(t, `
listen = "127.0.0.1:26552"
transport = "Resonance"
max_message_size = 4096
request_timeout = "5s"

[handshake]
fileserver_port = 26552
version = "0.7.6"
rev = 4555
onion = "abcdefghij234567"
`))
	requireT.NoError(err)
	requireT.Equal("127.0.0.1:26552", cfg.Listen)
	requireT.Equal(transportResonance, cfg.Transport)
	requireT.EqualValues(4096, cfg.Peer.MaxMessageSize)
	requireT.Equal(5*time.Second, cfg.Peer.RequestTimeout)
	requireT.EqualValues(26552, cfg.Peer.Handshake.FileserverPort)
	requireT.Equal("0.7.6", cfg.Peer.Handshake.Version)
	requireT.EqualValues(4555, cfg.Peer.Handshake.Rev)
	requireT.NotNil(cfg.Peer.Handshake.Onion)
	requireT.Equal("abcdefghij234567", *cfg.Peer.Handshake.Onion)
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	requireT := require.New(t)

	cfg, err := loadConfig(writeConfig(t, `
[handshake]
version = "0.7.6"
`))
	requireT.NoError(err)
	requireT.Equal(defaultListen, cfg.Listen)
	requireT.Equal(defaultTimeout, cfg.Peer.RequestTimeout)
	requireT.Equal("0.7.6", cfg.Peer.Handshake.Version)
	requireT.Nil(cfg.Peer.Handshake.Onion)
}

func TestInvalidConfig(t *testing.T) {
	requireT := require.New(t)

	_, err := loadConfig(writeConfig(t, `request_timeout = "soon"`))
	requireT.Error(err)

	_, err = loadConfig(writeConfig(t, `transport = "carrier pigeon"`))
	requireT.ErrorContains(err, "unknown transport")

	_, err = loadConfig(writeConfig(t, `listen = `))
	requireT.Error(err)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	requireT.Error(err)
}
