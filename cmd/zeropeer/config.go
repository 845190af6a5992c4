package main

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/outofforest/zeropeer"
)

const (
	defaultListen  = "0.0.0.0:15441"
	defaultTimeout = 30 * time.Second

	transportStream    = "stream"
	transportResonance = "resonance"
)

type handshakeConfig struct {
	FileserverPort uint64 `toml:"fileserver_port"`
	Version        string `toml:"version"`
	Rev            uint64 `toml:"rev"`
	Onion          string `toml:"onion"`
}

type fileConfig struct {
	Listen         string          `toml:"listen"`
	Transport      string          `toml:"transport"`
	MaxMessageSize uint64          `toml:"max_message_size"`
	RequestTimeout string          `toml:"request_timeout"`
	Handshake      handshakeConfig `toml:"handshake"`
}

type config struct {
	Listen    string
	Transport string
	Peer      zeropeer.PeerConfig
}

func defaultConfig() config {
	return config{
		Listen:    defaultListen,
		Transport: transportStream,
		Peer: zeropeer.PeerConfig{
			MaxMessageSize: zeropeer.DefaultMaxMessageSize,
			RequestTimeout: defaultTimeout,
		},
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, errors.Wrapf(err, "loading config %q", path)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("transport") {
		transport := strings.ToLower(strings.TrimSpace(raw.Transport))
		if transport != transportStream && transport != transportResonance {
			return config{}, errors.Errorf("unknown transport %q", raw.Transport)
		}
		cfg.Transport = transport
	}
	if meta.IsDefined("max_message_size") {
		cfg.Peer.MaxMessageSize = raw.MaxMessageSize
	}
	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return config{}, errors.Wrap(err, "parsing request_timeout")
		}
		cfg.Peer.RequestTimeout = d
	}

	h := &cfg.Peer.Handshake
	if meta.IsDefined("handshake", "fileserver_port") {
		h.FileserverPort = raw.Handshake.FileserverPort
	}
	if meta.IsDefined("handshake", "version") {
		h.Version = raw.Handshake.Version
	}
	if meta.IsDefined("handshake", "rev") {
		h.Rev = raw.Handshake.Rev
	}
	if meta.IsDefined("handshake", "onion") && raw.Handshake.Onion != "" {
		onion := raw.Handshake.Onion
		h.Onion = &onion
	}

	return cfg, nil
}
