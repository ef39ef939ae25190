package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bankmirror/internal/infrastructure/postgres/listener"
	"bankmirror/internal/interfaces/scheduler"

	"github.com/rs/zerolog"
)

// StartServer creates and starts the API server in the background.
func StartServer(addr string, handler http.Handler, logger zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	return srv
}

// Background groups the long-running components stopped on shutdown.
// Any of them may be nil.
type Background struct {
	Scheduler *scheduler.Scheduler
	Listener  *listener.SyncListener
	Pool      *scheduler.WorkerPool
}

// GracefulShutdown stops intake first, then drains the worker pool.
func GracefulShutdown(srv *http.Server, bg Background, timeout time.Duration, logger zerolog.Logger) {
	logger.Info().Msg("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if bg.Listener != nil {
		bg.Listener.Stop()
	}

	if bg.Scheduler != nil {
		bg.Scheduler.Shutdown(timeout)
	}

	if bg.Pool != nil {
		// A zero timeout would wait forever, so an exhausted budget
		// still gets a token grace period.
		remaining := time.Millisecond
		if d, ok := ctx.Deadline(); ok && time.Until(d) > remaining {
			remaining = time.Until(d)
		}
		bg.Pool.ShutdownWithTimeout(remaining)
	}

	logger.Info().Msg("Server stopped")
}
