// SproutWatch Command Center, the backend of the garden climate dashboard.
//
// It provides:
//   - Plant profiles with persisted selection
//   - Sensor sampling over HTTP polling or MQTT
//   - Watering and grow light actions
//   - The streamed gardening assistant chat
//   - Device connectivity probes
//   - A live WebSocket feed for dashboards

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sproutwatch/sproutwatch/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Msg("🌿 SproutWatch Command Center starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	if lvl, err := zerolog.ParseLevel(srv.Config.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start background workers")
	}

	// Chat responses stream for as long as the model talks, so there is
	// no write timeout.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", srv.Port),
		Handler:     srv.Handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("🛑 Shutting down gracefully...")
		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info().
		Int("port", srv.Port).
		Str("version", srv.Config.Version).
		Msg("🌱 SproutWatch is watching the garden!")

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed")
	}

	cancel()
	closeCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	}
}
