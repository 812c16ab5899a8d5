package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ListenAndServe serves handler on cfg.Address until ctx is cancelled and
// then shuts down, waiting up to cfg.ShutdownTimeout for open requests.
func ListenAndServe(ctx context.Context, logger *zap.Logger, cfg *Config, handler http.Handler) error {
	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return err
	}
	return Serve(ctx, logger, cfg, listener, handler)
}

// Serve is ListenAndServe on an existing listener.
func Serve(ctx context.Context, logger *zap.Logger, cfg *Config, listener net.Listener, handler http.Handler) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "server.Serve"),
			zap.String("address", listener.Addr().String()),
		)
		serverErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down",
		zap.String("op", "server.Serve"),
	)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
