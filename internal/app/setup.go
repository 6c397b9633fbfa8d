package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/analysis"
	"github.com/skinarb/skinarb/internal/buff"
	"github.com/skinarb/skinarb/internal/catalog"
	"github.com/skinarb/skinarb/internal/circuitbreaker"
	"github.com/skinarb/skinarb/internal/credentials"
	"github.com/skinarb/skinarb/internal/fetcher"
	"github.com/skinarb/skinarb/internal/keycache"
	"github.com/skinarb/skinarb/internal/pacing"
	"github.com/skinarb/skinarb/internal/refresh"
	"github.com/skinarb/skinarb/internal/settings"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/internal/youpin"
	"github.com/skinarb/skinarb/pkg/config"
	"github.com/skinarb/skinarb/pkg/healthprobe"
	"github.com/skinarb/skinarb/pkg/httpserver"
	"github.com/skinarb/skinarb/pkg/types"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	probe := healthprobe.New()

	credStore, err := credentials.New(&credentials.Config{
		Path:   filepath.Join(cfg.DataDir, "tokens_config.json"),
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup credentials: %w", err)
	}

	settingsStore, err := setupSettings(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup settings: %w", err)
	}

	keyCache := keycache.New(&keycache.Config{
		Path:   filepath.Join(cfg.DataDir, "hotkeys.json"),
		Logger: logger,
	})

	// Filter mutations invalidate the cached keys; they were picked
	// under the old filters
	settingsStore.OnFilterChange(keyCache.Clear)

	breaker, err := circuitbreaker.New(&circuitbreaker.Config{
		WindowSize:     cfg.BreakerWindowSize,
		OpenThreshold:  cfg.BreakerOpenThreshold,
		CloseThreshold: cfg.BreakerCloseThreshold,
		Logger:         logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup breaker: %w", err)
	}

	buyClient, sellClient, buffPacer, youpinPacer, err := setupClients(cfg, credStore, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup clients: %w", err)
	}

	buyFetcher, sellFetcher, err := setupFetchers(cfg, breaker, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup fetchers: %w", err)
	}

	// Pacing mutations reach the pacers and fetchers without a restart
	settingsStore.OnPacingChange(func(snap settings.Snapshot) {
		buffPacer.SetMinInterval(snap.BuffMinDelay)
		youpinPacer.SetMinInterval(snap.YoupinMinDelay)
		buyFetcher.SetLimits(snap.BuffPageSize, snap.BuffMaxPages)
		sellFetcher.SetLimits(snap.YoupinPageSize, snap.YoupinMaxPages)
	})

	snapshots, err := catalog.New(&catalog.Config{
		TTL:    cfg.FullInterval,
		Logger: logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup snapshots: %w", err)
	}

	refreshStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	orchestrator, err := refresh.New(&refresh.Config{
		BuyClient:   buyClient,
		SellClient:  sellClient,
		BuyFetcher:  buyFetcher,
		SellFetcher: sellFetcher,
		Matcher:     analysis.New(analysis.Config{Logger: logger}),
		Settings:    settingsStore,
		KeyCache:    keyCache,
		Snapshots:   snapshots,
		Storage:     refreshStorage,
		Logger:      logger,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup orchestrator: %w", err)
	}

	var scheduler *refresh.Scheduler
	if !opts.NoScheduler {
		scheduler = refresh.NewScheduler(&refresh.SchedulerConfig{
			Orchestrator: orchestrator,
			Settings:     settingsStore,
			Gate:         breaker,
			Logger:       logger,
		})
	}

	httpServer := httpserver.New(&httpserver.Config{
		Port:         cfg.HTTPPort,
		Logger:       logger,
		Probe:        probe,
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		Settings:     settingsStore,
		Credentials:  credStore,
		Breaker:      breaker,
		Snapshots:    snapshots,
		Probers: map[types.Marketplace]fetcher.PageClient{
			types.MarketplaceBuff:   buyClient,
			types.MarketplaceYoupin: sellClient,
		},
	})

	return &App{
		cfg:          cfg,
		logger:       logger,
		probe:        probe,
		httpServer:   httpServer,
		credStore:    credStore,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		snapshots:    snapshots,
		storage:      refreshStorage,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func setupSettings(cfg *config.Config, logger *zap.Logger) (*settings.Store, error) {
	initial := settings.Defaults()
	initial.FullInterval = cfg.FullInterval
	initial.IncrementalInterval = cfg.IncrementalInterval
	initial.BuffMaxPages = cfg.BuffMaxPages
	initial.YoupinMaxPages = cfg.YoupinMaxPages
	initial.BuffPageSize = cfg.BuffPageSize
	initial.YoupinPageSize = cfg.YoupinPageSize
	initial.BuffMinDelay = cfg.BuffMinInterval
	initial.YoupinMinDelay = cfg.YoupinMinInterval

	return settings.New(&settings.Config{
		Initial: initial,
		Logger:  logger,
	})
}

func setupClients(cfg *config.Config, credStore *credentials.Store, logger *zap.Logger) (*buff.Client, *youpin.Client, *pacing.Pacer, *pacing.Pacer, error) {
	buffPacer, err := pacing.New(&pacing.Config{
		Marketplace:   string(types.MarketplaceBuff),
		MinInterval:   cfg.BuffMinInterval,
		LongPauseEach: cfg.LongPauseEvery,
		PauseMin:      secondsToDuration(cfg.LongPauseMinSeconds),
		PauseMax:      secondsToDuration(cfg.LongPauseMaxSeconds),
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("buff pacer: %w", err)
	}

	youpinPacer, err := pacing.New(&pacing.Config{
		Marketplace:   string(types.MarketplaceYoupin),
		MinInterval:   cfg.YoupinMinInterval,
		LongPauseEach: cfg.LongPauseEvery,
		PauseMin:      secondsToDuration(cfg.LongPauseMinSeconds),
		PauseMax:      secondsToDuration(cfg.LongPauseMaxSeconds),
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("youpin pacer: %w", err)
	}

	buyClient := buff.New(&buff.Config{
		BaseURL:        cfg.BuffBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		MaxAttempts:    cfg.RetryMaxAttempts,
		BackoffBase:    cfg.RetryBaseBackoff,
		BackoffMax:     cfg.RetryMaxBackoff,
		Pacer:          buffPacer,
		Credentials:    credStore,
		Logger:         logger,
	})

	sellClient := youpin.New(&youpin.Config{
		BaseURL:        cfg.YoupinBaseURL,
		RequestTimeout: cfg.RequestTimeout,
		MaxAttempts:    cfg.RetryMaxAttempts,
		BackoffBase:    cfg.RetryBaseBackoff,
		BackoffMax:     cfg.RetryMaxBackoff,
		Pacer:          youpinPacer,
		Credentials:    credStore,
		Logger:         logger,
	})

	return buyClient, sellClient, buffPacer, youpinPacer, nil
}

func setupFetchers(cfg *config.Config, breaker *circuitbreaker.UpstreamBreaker, logger *zap.Logger) (*fetcher.Fetcher, *fetcher.Fetcher, error) {
	buyFetcher, err := fetcher.New(&fetcher.Config{
		PageSize:   cfg.BuffPageSize,
		MaxPages:   cfg.BuffMaxPages,
		FailureCap: cfg.FetchFailureCap,
		Reporter:   breaker,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("buff fetcher: %w", err)
	}

	sellFetcher, err := fetcher.New(&fetcher.Config{
		PageSize:   cfg.YoupinPageSize,
		MaxPages:   cfg.YoupinMaxPages,
		FailureCap: cfg.FetchFailureCap,
		Reporter:   breaker,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("youpin fetcher: %w", err)
	}

	return buyFetcher, sellFetcher, nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
