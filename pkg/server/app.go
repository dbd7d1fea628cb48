package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
)

// Worker is a background component started with the server, such as the
// batch-run queue.
type Worker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the serve lifecycle: workers, then HTTP, until a signal
// or a server error; shutdown runs in reverse.
type App struct {
	httpServer      *xhttp.Server
	workers         []Worker
	log             *applogger.Logger
	shutdownTimeout time.Duration
	signals         []os.Signal
}

// New creates a new App.
func New(srv *xhttp.Server, l *applogger.Logger, shutdownTimeout time.Duration, workers ...Worker) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &App{
		httpServer:      srv,
		workers:         workers,
		log:             l,
		shutdownTimeout: shutdownTimeout,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Run starts the application and blocks until ctx is done, a shutdown signal
// arrives or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, a.signals...)
	defer stop()

	started := 0
	for _, w := range a.workers {
		if err := w.Start(ctx); err != nil {
			a.stopWorkers(started)
			return fmt.Errorf("start worker: %w", err)
		}
		started++
	}

	var runErr error
	select {
	case err := <-a.httpServer.Start():
		runErr = err
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	}

	return a.shutdown(started, runErr)
}

func (a *App) shutdown(started int, runErr error) error {
	a.log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.stopWorkersCtx(ctx, started)

	a.log.Info("shutdown complete")
	return runErr
}

func (a *App) stopWorkers(n int) {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	a.stopWorkersCtx(ctx, n)
}

func (a *App) stopWorkersCtx(ctx context.Context, n int) {
	for i := n - 1; i >= 0; i-- {
		if err := a.workers[i].Stop(ctx); err != nil {
			a.log.Warn("worker stop error", applogger.Error(err))
		}
	}
}
