// Command qvlserver is a demo HTTP front end over the verification
// library: it exposes POST /v1/verify/sgx and /v1/verify/tdx behind a
// bearer token, plus /healthz and Prometheus /metrics. It is reference
// wiring, not an endorsed deployment topology — a real deployment
// would front it with its own auth and TLS termination.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/r3e-network/qvl/internal/intelclient"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(errors.Wrap(err, "load config")).Msg("startup failed")
	}

	srv := NewServer(cfg, log)

	refresher := intelclient.New()
	c := cron.New()
	_, err = c.AddFunc(cfg.CollateralRefreshCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := refresher.FetchQeIdentity(ctx); err != nil {
			log.Warn().Err(err).Msg("scheduled QE identity refresh failed")
			return
		}
		log.Info().Msg("refreshed QE identity collateral")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid collateral refresh schedule")
	}
	c.Start()
	defer c.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}
