package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/zeropeer"
)

const usage = "usage: zeropeer ping [--config peer.toml] <host:port> | zeropeer serve [--config peer.toml]"

func main() {
	log := logger.New(logger.DefaultConfig)
	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to the TOML config file")
	if err := flags.Parse(args[1:]); err != nil {
		return errors.WithStack(err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	switch args[0] {
	case "ping":
		if flags.NArg() != 1 {
			return errors.New(usage)
		}
		return ping(ctx, cfg, flags.Arg(0), out)
	case "serve":
		ls, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return errors.WithStack(err)
		}
		logger.Get(ctx).Info("Serving peers", zap.Stringer("address", ls.Addr()), zap.String("transport", cfg.Transport))
		return serve(ctx, cfg, ls)
	default:
		return errors.Errorf("unknown command %q, %s", args[0], usage)
	}
}

func ping(ctx context.Context, cfg config, addr string, out io.Writer) error {
	runClient := zeropeer.RunClient
	if cfg.Transport == transportResonance {
		runClient = zeropeer.RunResonanceClient
	}

	return runClient(ctx, addr, cfg.Peer, nil, func(ctx context.Context, p *zeropeer.Peer) error {
		h, err := p.Handshake(ctx)
		if err != nil {
			return err
		}
		alive, err := p.Ping(ctx)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "peer_id=%s version=%s rev=%d fileserver_port=%d protocol=%s alive=%t\n",
			h.PeerID, h.Version, h.Rev, h.FileserverPort, h.Protocol, alive)
		return errors.WithStack(err)
	})
}

func serve(ctx context.Context, cfg config, ls net.Listener) error {
	if cfg.Transport == transportResonance {
		return zeropeer.RunResonanceServer(ctx, ls, cfg.Peer, zeropeer.HandlerFunc(handle))
	}
	return zeropeer.RunServer(ctx, ls, cfg.Peer, zeropeer.HandlerFunc(handle))
}
