// server exposes the handler over HTTP for local development, mimicking an
// API gateway integration in front of the function.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/abdhe/bedrock-inference-function/pkg/app"
	"github.com/abdhe/bedrock-inference-function/pkg/config"
	"github.com/abdhe/bedrock-inference-function/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	a := app.New(context.Background(), cfg, logger)
	defer a.Close()

	e := newServer(a.Handler, logger)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("HTTP server stopped")
}
