// Command mock-jenkins serves the subset of the CI server UI the acceptance
// suite drives, for local runs and for the e2e environment.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"

	"github.com/gti/jenkins-acceptance/internal/config"
	"github.com/gti/jenkins-acceptance/internal/logging"
	"github.com/gti/jenkins-acceptance/internal/mockjenkins"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Setup(cfg.LogLevel)

	srv, err := mockjenkins.New(mockjenkins.Options{
		Version: cfg.MockVersion,
		Token:   cfg.MockToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Start server in goroutine
	go func() {
		addr := ":" + cfg.MockPort
		log.Info().Str("addr", addr).Str("version", cfg.MockVersion).Msg("starting mock server")
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
