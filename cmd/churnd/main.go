package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"churn-predictor/internal/cfg"
	"churn-predictor/internal/common"
	"churn-predictor/internal/loader"
	"churn-predictor/internal/metrics"
	"churn-predictor/internal/ml"
	"churn-predictor/internal/server"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	common.SetupLogging(c.LogLevel, c.LogFormat)

	// Artifacts are loaded exactly once; any problem is fatal.
	loaded, err := loader.FromSettings(c)
	if err != nil {
		log.Fatal().Err(err).Msg("model artifacts load failed")
	}

	m := metrics.New()
	recorder := metrics.NewRecorder(m)
	recorder.SetArtifactInfo(loaded.Ensemble.NumTrees(), time.Since(loaded.CreatedAt).Seconds())

	opts := append(loaded.Options(), ml.WithMetrics(recorder))
	predictor, err := ml.New(loaded.Ensemble, loaded.Scaler, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("predictor init failed")
	}

	srv := server.New(predictor, server.Config{
		Addr:         c.Addr(),
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxBodyBytes: c.MaxBodyBytes,
		RateLimit:    c.RateLimit,
		RateBurst:    c.RateBurst,
		Metrics:      promhttp.Handler(),
	}, recorder)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	info := predictor.Info()
	log.Info().
		Str("source", info.Source).
		Str("version", info.Version).
		Int("trees", info.Trees).
		Ints("classes", info.Classes).
		Str("addr", c.Addr()).
		Msg("churn predictor ready")

	waitForShutdown(srv, serveErr, c.ShutdownTimeout)
}

func waitForShutdown(srv *server.Server, serveErr <-chan error, timeout time.Duration) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
		return
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		return
	}
	log.Info().Msg("server stopped")
}
