package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/vortechron/nightwatch-testing/internal/api"
	"github.com/vortechron/nightwatch-testing/internal/platform/telemetry"
)

// Server timeouts
const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// setupRouter builds the router for the test endpoints, metrics and health.
func (app *application) setupRouter() (http.Handler, error) {
	h, err := app.handler()
	if err != nil {
		return nil, fmt.Errorf("failed to create handler: %w", err)
	}
	return api.NewRouter(api.RouterConfig{
		Handler:  h,
		Tokens:   app.tokens,
		Metrics:  app.metrics.Handler(),
		Observer: app.metrics,
		Tracer:   telemetry.Tracer(),
		Logger:   app.logger,
	}), nil
}

// serve runs the HTTP server until ctx is canceled or SIGINT/SIGTERM is
// received, then shuts it down gracefully.
func (app *application) serve(ctx context.Context) error {
	router, err := app.setupRouter()
	if err == nil {
		var ln net.Listener
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", app.config.Server.Port))
		if err == nil {
			return app.startHTTPServer(ctx, ln, router)
		}
		err = fmt.Errorf("failed to listen: %w", err)
	}

	if cerr := app.cleanup(context.Background()); cerr != nil {
		err = multierror.Append(err, cerr)
	}
	return err
}

func (app *application) startHTTPServer(ctx context.Context, ln net.Listener, router http.Handler) error {
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancelServer()
		}
		close(serveErr)
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("shutting down server")
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := <-serveErr; err != nil {
		result = multierror.Append(result, fmt.Errorf("server failed: %w", err))
	}
	if err := app.cleanup(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}

	app.logger.Info("server shutdown completed")
	return result.ErrorOrNil()
}
