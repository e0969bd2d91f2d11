// Command exchangegw runs a single venue adapter behind the gateway
// core: config load, handshake, connect, 1Hz tick loop, and the
// optional reporting/metrics HTTP surface — wired as a priority-ordered
// bootstrap sequence the way the teacher pack's entrypoint does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"exchangegw/bootstrap"
	"exchangegw/config"
	"exchangegw/gateway"
	"exchangegw/gw"
	"exchangegw/httpapi"
	"exchangegw/metrics"
	"exchangegw/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the gateway config file")
	nocache := flag.Bool("nocache", false, "force a fresh handshake, bypassing the on-disk cache")
	notes := flag.String("notes", "", "notes appended to the startup report line")
	dustybot := flag.Bool("dustybot", false, "skip the cancel-all purge on shutdown")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "exchangegw: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Debug)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bctx := bootstrap.NewContext(cfg)

	bootstrap.Register("config", bootstrap.PriorityInfrastructure, func(b *bootstrap.Context) error {
		b.Set("logger", logger)
		logger.Info().Str("component", "bootstrap").Str("exchange", b.Config.Exchange).
			Str("symbol", b.Config.Symbol).Msg("config loaded")
		return nil
	})

	bootstrap.Register("venue", bootstrap.PriorityCore, func(b *bootstrap.Context) error {
		adapter, err := venue.New(b.Config.Exchange, b.Config.ToGatewayConfig(), logger)
		if err != nil {
			return fmt.Errorf("construct venue adapter: %w", err)
		}
		b.Set("adapter", adapter)
		return nil
	})

	bootstrap.Register("gateway", bootstrap.PriorityCore+1, func(b *bootstrap.Context) error {
		adapter := b.MustGet("adapter").(gateway.Adapter)
		g := gateway.New(b.Config.ToGatewayConfig(), adapter, gw.SystemClock{}, logger)
		if err := g.Bootstrap(ctx, *nocache); err != nil {
			return fmt.Errorf("bootstrap gateway: %w", err)
		}
		b.Set("gateway", g)
		return nil
	})

	bootstrap.Register("metrics", bootstrap.PriorityBackground, func(b *bootstrap.Context) error {
		metrics.Init()
		return nil
	}).OnError(bootstrap.WarnOnError)

	bootstrap.Register("reporting-http", bootstrap.PriorityBackground+1, func(b *bootstrap.Context) error {
		g := b.MustGet("gateway").(*gateway.Gateway)
		server := httpapi.New(g)
		addr := b.Config.HTTPAddr
		go func() {
			if err := server.Run(addr); err != nil {
				logger.Error().Str("component", "httpapi").Err(err).Msg("reporting server stopped")
			}
		}()
		logger.Info().Str("component", "httpapi").Str("addr", addr).Msg("reporting surface listening")
		return nil
	}).When(func(b *bootstrap.Context) bool { return b.Config.HTTPAddr != "" })

	if err := bootstrap.Run(bctx); err != nil {
		logger.Fatal().Err(err).Msg("bootstrap failed")
	}

	g := bctx.MustGet("gateway").(*gateway.Gateway)

	logger.Info().Str("component", "main").Msg(g.Report(ctx, *notes, false))
	logger.Info().Str("component", "main").Msg("gateway running, ctrl-c to stop")

	if err := g.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Str("component", "main").Err(err).Msg("gateway run stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.Purge(shutdownCtx, *dustybot); err != nil {
		logger.Error().Str("component", "main").Err(err).Msg("purge failed")
	}

	logger.Info().Str("component", "main").Msg("shutdown complete")
}

func newLogger(debug int) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug > 0 {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		Level(level).
		With().Timestamp().Logger()
}
