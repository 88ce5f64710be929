package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	serverHTTP "repverse/internal/delivery/server/http"
	"repverse/internal/shared/async"
	"repverse/internal/shared/config"
	"repverse/internal/shared/logging"
)

const shutdownGrace = 10 * time.Second

// NewHandler builds the HTTP API on top of f.
func NewHandler(f *Foundation) http.Handler {
	deps := serverHTTP.RouterDeps{
		Submissions:    f.Submissions,
		Jobs:           f.Jobs,
		Logger:         logging.NewComponentLogger("HTTP"),
		AllowedOrigins: f.Config.Server.AllowedOrigins,
		RequestTimeout: f.Config.Server.RequestTimeout(),
		Debug:          f.Config.Environment == config.EnvironmentDevelopment && f.Config.LogLevel == "debug",
	}
	if f.Obs != nil && f.Obs.Tracer.Enabled() {
		deps.Tracer = f.Obs.Tracer
	}
	if f.Obs != nil && f.Obs.Metrics.Enabled() {
		deps.Recorder = f.Obs.Metrics
		deps.MetricsHandler = f.Obs.Metrics.Handler()
	}
	return serverHTTP.NewRouter(deps)
}

// RunServer serves the API until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.RuntimeConfig, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	logger.Info("Starting repverse API server...")

	f, err := BuildFoundation(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer f.Close()

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           NewHandler(f),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	return serve(ctx, server, listener, logger)
}

func serve(ctx context.Context, server *http.Server, listener net.Listener, logger logging.Logger) error {
	errCh := make(chan error, 1)
	async.Go(logger, "server.listen", func() {
		logger.Info("Server listening on %s", listener.Addr())
		errCh <- server.Serve(listener)
	})

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)

		serveErr := <-errCh
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}
		logger.Info("Server stopped")
		return nil
	}
}
