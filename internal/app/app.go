package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/catalog"
	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/refresh"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/httpserver"
)

// App wires the service together: credential store, marketplace clients,
// refresh orchestrator, scheduler and the HTTP surface.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	probe        *healthprobe.Probe
	httpServer   *httpserver.Server
	credStore    *credentials.Store
	orchestrator *refresh.Orchestrator
	scheduler    *refresh.Scheduler
	snapshots    *catalog.Snapshots
	storage      storage.Storage
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// Options holds application options.
type Options struct {
	NoScheduler bool // Serve the API without background refreshes
}

// Orchestrator exposes the refresh orchestrator for one-shot commands.
func (a *App) Orchestrator() *refresh.Orchestrator {
	return a.orchestrator
}
