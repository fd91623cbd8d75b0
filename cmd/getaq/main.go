// Package main provides the entrypoint for getaq, which fetches PurpleAir
// sensors in a bounding box and prints them as line-delimited JSON with the
// EPA PM2.5 index attached.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/breatheroute/getaq/internal/airquality/purpleair"
	"github.com/breatheroute/getaq/internal/app"
	"github.com/breatheroute/getaq/internal/config"
	"github.com/breatheroute/getaq/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "getaq"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	bootLog := zerolog.New(stderr).With().Timestamp().Str("service", serviceName).Logger()

	if err := config.LoadDotEnv(".env"); err != nil {
		bootLog.Error().Err(err).Msg("failed to load .env")
		return 1
	}

	cfg, err := config.Load(args, os.Getenv, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		bootLog.Error().Err(err).Msg("invalid configuration")
		if errors.Is(err, config.ErrAPIKey) {
			return 1
		}
		return 2
	}

	runID := uuid.NewString()
	log := newLogger(cfg, runID, stderr)

	log.Debug().
		Str("build_time", BuildTime).
		Str("base_url", cfg.BaseURL).
		Int("max_age", cfg.Query.MaxAge).
		Strs("fields", cfg.Query.FieldList()).
		Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		RunID:          runID,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize telemetry")
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := telemetry.NewRunMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		return 1
	}

	client := purpleair.NewClient(purpleair.ClientConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RateLimit:  cfg.RateLimit,
		Logger:     log,
	})

	runner := app.NewRunner(app.RunnerConfig{
		Provider: client,
		Output:   stdout,
		Logger:   log,
		Tracer:   tp.Tracer,
		Metrics:  metrics,
	})

	if _, err := runner.Run(ctx, cfg.Query); err != nil {
		log.Error().Err(err).Msg("run failed")
		return 1
	}

	return 0
}

// newLogger logs to stderr; stdout carries the readings.
func newLogger(cfg config.Config, runID string, stderr io.Writer) zerolog.Logger {
	var w io.Writer = stderr
	if cfg.Development() {
		w = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).
		Level(cfg.LogLevel).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Str("run_id", runID).
		Logger()
}
