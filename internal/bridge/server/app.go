package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gridworm/gridworm/internal/config"
	"github.com/gridworm/gridworm/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// App runs the companion HTTP server until its context is cancelled.
type App struct {
	config *config.Config
	logger logging.Logger
	server *Server
}

func NewApp(c *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}
	s, err := New(c.Starmie.Root, log)
	if err != nil {
		return nil, fmt.Errorf("companion init error: %w", err)
	}
	return &App{config: c, logger: log, server: s}, nil
}

func (app *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.Starmie.Addr)
	if err != nil {
		return err
	}
	return app.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests.
func (app *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		app.logger.Info(context.Background(), "stopping companion server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			app.logger.Error(sctx, "shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "starting companion server", "address", ln.Addr().String(), "root", app.server.Root())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
