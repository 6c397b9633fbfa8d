package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/settings"
	"github.com/skinarb/skinarb/pkg/types"
)

// HealthGate reports whether upstreams look usable. The circuit breaker
// implements this.
type HealthGate interface {
	IsHealthy() bool
}

// Cadences supplies the refresh intervals. The settings store implements
// this.
type Cadences interface {
	Current() settings.Snapshot
}

// Scheduler triggers full refreshes on the heavy cadence and incremental
// refreshes on the light cadence. Cadence changes in the settings store
// take effect on the next check; a tick that finds a refresh already
// running is skipped, not queued.
type Scheduler struct {
	orchestrator *Orchestrator
	settings     Cadences
	gate         HealthGate
	logger       *zap.Logger
	checkEvery   time.Duration

	mu        sync.Mutex
	lastFull  time.Time
	lastLight time.Time

	wg sync.WaitGroup
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Orchestrator *Orchestrator
	Settings     Cadences
	Gate         HealthGate // Optional
	CheckEvery   time.Duration
	Logger       *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg *SchedulerConfig) *Scheduler {
	checkEvery := cfg.CheckEvery
	if checkEvery <= 0 {
		checkEvery = 15 * time.Second
	}

	return &Scheduler{
		orchestrator: cfg.Orchestrator,
		settings:     cfg.Settings,
		gate:         cfg.Gate,
		logger:       cfg.Logger,
		checkEvery:   checkEvery,
	}
}

// Start launches the scheduling loop. An initial full refresh is
// triggered immediately so the service has data to serve.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler-starting",
		zap.Duration("check_every", s.checkEvery))

	s.triggerFull()

	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the scheduling loop exits.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler-stopping")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	snap := s.settings.Current()
	now := time.Now()

	s.mu.Lock()
	fullDue := now.Sub(s.lastFull) >= snap.FullInterval
	lightDue := now.Sub(s.lastLight) >= snap.IncrementalInterval
	s.mu.Unlock()

	if fullDue {
		s.triggerFull()
		return
	}

	if !lightDue {
		return
	}

	if s.gate != nil && !s.gate.IsHealthy() {
		TicksSkippedTotal.WithLabelValues("breaker_open").Inc()
		s.logger.Warn("incremental-skipped", zap.String("reason", "breaker open"))
		s.markLight()
		return
	}

	err := s.orchestrator.Trigger(types.RefreshIncremental)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyRunning) {
			TicksSkippedTotal.WithLabelValues("already_running").Inc()
			s.logger.Debug("incremental-skipped", zap.String("reason", "refresh in flight"))
			return
		}
		s.logger.Error("incremental-trigger-failed", zap.Error(err))
		return
	}
	s.markLight()
}

func (s *Scheduler) triggerFull() {
	err := s.orchestrator.Trigger(types.RefreshFull)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyRunning) {
			TicksSkippedTotal.WithLabelValues("already_running").Inc()
			s.logger.Debug("full-skipped", zap.String("reason", "refresh in flight"))
			return
		}
		s.logger.Error("full-trigger-failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastFull = time.Now()
	s.lastLight = s.lastFull
	s.mu.Unlock()
}

func (s *Scheduler) markLight() {
	s.mu.Lock()
	s.lastLight = time.Now()
	s.mu.Unlock()
}

// NextTicks reports when the next full and incremental refreshes are due.
type NextTicks struct {
	NextFull        time.Time `json:"next_full"`
	NextIncremental time.Time `json:"next_incremental"`
}

// Next returns the upcoming cadence deadlines.
func (s *Scheduler) Next() NextTicks {
	snap := s.settings.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	return NextTicks{
		NextFull:        s.lastFull.Add(snap.FullInterval),
		NextIncremental: s.lastLight.Add(snap.IncrementalInterval),
	}
}
