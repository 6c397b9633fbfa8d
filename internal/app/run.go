package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("http-port", a.cfg.HTTPPort),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	// Mark as ready
	a.probe.MarkReady()

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Duration("full-interval", a.cfg.FullInterval),
		zap.Duration("incremental-interval", a.cfg.IncrementalInterval))

	// Wait for shutdown signal
	return a.waitForShutdown()
}

// RunOnce performs a single full refresh and returns the result set.
// Used by the analyze command; the HTTP server and scheduler stay down.
func (a *App) RunOnce(ctx context.Context) (*types.ResultSet, error) {
	a.orchestrator.Start(a.ctx)

	err := a.orchestrator.Refresh(ctx, types.RefreshFull)
	if err != nil {
		return nil, fmt.Errorf("run full refresh: %w", err)
	}

	return a.orchestrator.Current(), nil
}

func (a *App) startComponents() {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	a.orchestrator.Start(a.ctx)

	if a.scheduler != nil {
		a.scheduler.Start(a.ctx)
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
