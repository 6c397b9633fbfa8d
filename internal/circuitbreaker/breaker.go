package circuitbreaker

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// UpstreamBreaker tracks per-marketplace page outcomes in a rolling window
// and trips when the failure ratio crosses a threshold. Hysteresis keeps
// the breaker from flapping: it closes again only once the ratio drops
// below a lower threshold. The scheduler consults the breaker before
// incremental refreshes; full refreshes always run so recovery is
// observed.
type UpstreamBreaker struct {
	healthy atomic.Bool // Lock-free read for hot paths

	windowSize     int
	openThreshold  float64 // Trip when failure ratio >= this
	closeThreshold float64 // Recover when failure ratio <= this
	logger         *zap.Logger

	mu       sync.RWMutex
	outcomes map[types.Marketplace][]bool
	lastTrip time.Time
}

// Config holds breaker configuration.
type Config struct {
	WindowSize     int
	OpenThreshold  float64
	CloseThreshold float64
	Logger         *zap.Logger
}

// Status holds current breaker status for the status endpoint.
type Status struct {
	Healthy       bool                          `json:"healthy"`
	FailureRatios map[types.Marketplace]float64 `json:"failure_ratios"`
	SampleCounts  map[types.Marketplace]int     `json:"sample_counts"`
	LastTrip      time.Time                     `json:"last_trip,omitempty"`
}

// New creates a new breaker. It starts closed (healthy).
func New(cfg *Config) (*UpstreamBreaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive")
	}
	if cfg.OpenThreshold <= cfg.CloseThreshold {
		return nil, fmt.Errorf("open threshold %f must exceed close threshold %f",
			cfg.OpenThreshold, cfg.CloseThreshold)
	}

	b := &UpstreamBreaker{
		windowSize:     cfg.WindowSize,
		openThreshold:  cfg.OpenThreshold,
		closeThreshold: cfg.CloseThreshold,
		logger:         cfg.Logger,
		outcomes:       make(map[types.Marketplace][]bool),
	}

	b.healthy.Store(true)
	BreakerHealthy.Set(1)

	return b, nil
}

// IsHealthy reports whether upstreams look usable. Lock-free.
func (b *UpstreamBreaker) IsHealthy() bool {
	return b.healthy.Load()
}

// Record adds one page outcome for a marketplace and re-evaluates the
// breaker state. Implements fetcher.OutcomeReporter.
func (b *UpstreamBreaker) Record(marketplace types.Marketplace, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	window := append(b.outcomes[marketplace], success)
	if len(window) > b.windowSize {
		window = window[1:]
	}
	b.outcomes[marketplace] = window

	worst := b.worstRatioLocked()
	BreakerWorstFailureRatio.Set(worst)

	currentlyHealthy := b.healthy.Load()
	switch {
	case currentlyHealthy && worst >= b.openThreshold:
		b.healthy.Store(false)
		b.lastTrip = time.Now()
		BreakerHealthy.Set(0)
		BreakerStateChanges.Inc()
		b.logger.Warn("upstream-breaker-open",
			zap.String("marketplace", string(marketplace)),
			zap.Float64("failure_ratio", worst))
	case !currentlyHealthy && worst <= b.closeThreshold:
		b.healthy.Store(true)
		BreakerHealthy.Set(1)
		BreakerStateChanges.Inc()
		b.logger.Info("upstream-breaker-closed",
			zap.Float64("failure_ratio", worst))
	}
}

// worstRatioLocked returns the highest failure ratio over all marketplaces
// with a full enough window. Callers hold b.mu.
func (b *UpstreamBreaker) worstRatioLocked() float64 {
	worst := 0.0
	for _, window := range b.outcomes {
		// Too few samples to judge
		if len(window) < b.windowSize/2 {
			continue
		}
		failures := 0
		for _, ok := range window {
			if !ok {
				failures++
			}
		}
		ratio := float64(failures) / float64(len(window))
		if ratio > worst {
			worst = ratio
		}
	}
	return worst
}

// GetStatus returns the current breaker state for the status endpoint.
func (b *UpstreamBreaker) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ratios := make(map[types.Marketplace]float64, len(b.outcomes))
	counts := make(map[types.Marketplace]int, len(b.outcomes))
	for marketplace, window := range b.outcomes {
		failures := 0
		for _, ok := range window {
			if !ok {
				failures++
			}
		}
		counts[marketplace] = len(window)
		if len(window) > 0 {
			ratios[marketplace] = float64(failures) / float64(len(window))
		}
	}

	return Status{
		Healthy:       b.healthy.Load(),
		FailureRatios: ratios,
		SampleCounts:  counts,
		LastTrip:      b.lastTrip,
	}
}
