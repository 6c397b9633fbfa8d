package pacing

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Pacer spaces outbound requests to one marketplace. All clients of a
// marketplace share a single Pacer so the minimum interval holds across
// concurrent callers. Every Nth request takes an additional randomized
// pause to mimic a human browsing pattern.
type Pacer struct {
	marketplace string
	limiter     *rate.Limiter
	logger      *zap.Logger

	mu            sync.Mutex
	requestCount  int
	longPauseEach int
	pauseMin      time.Duration
	pauseMax      time.Duration
	rng           *rand.Rand
}

// Config holds pacer configuration.
type Config struct {
	Marketplace   string
	MinInterval   time.Duration // Minimum spacing between requests
	LongPauseEach int           // Extra pause every Nth request, 0 disables
	PauseMin      time.Duration // Lower bound of the extra pause
	PauseMax      time.Duration // Upper bound of the extra pause
	Logger        *zap.Logger
}

// New creates a new Pacer.
func New(cfg *Config) (*Pacer, error) {
	if cfg.MinInterval < 0 {
		return nil, fmt.Errorf("min interval must not be negative, got %s", cfg.MinInterval)
	}
	if cfg.PauseMin > cfg.PauseMax {
		return nil, fmt.Errorf("pause bounds inverted: %s > %s", cfg.PauseMin, cfg.PauseMax)
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Pacer{
		marketplace:   cfg.Marketplace,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        cfg.Logger,
		longPauseEach: cfg.LongPauseEach,
		pauseMin:      cfg.PauseMin,
		pauseMax:      cfg.PauseMax,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // jitter, not crypto
	}, nil
}

// Wait blocks until the next request may be sent. It returns early with
// the context's error when ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	start := time.Now()

	err := p.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}

	pause := p.nextLongPause()
	if pause > 0 {
		p.logger.Debug("pacer-long-pause",
			zap.String("marketplace", p.marketplace),
			zap.Duration("pause", pause))
		LongPausesTotal.WithLabelValues(p.marketplace).Inc()

		timer := time.NewTimer(pause)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("pacer pause: %w", ctx.Err())
		case <-timer.C:
		}
	}

	WaitSecondsTotal.WithLabelValues(p.marketplace).Add(time.Since(start).Seconds())
	RequestsTotal.WithLabelValues(p.marketplace).Inc()
	return nil
}

// nextLongPause advances the request counter and returns the extra pause
// duration when this request is the Nth, zero otherwise.
func (p *Pacer) nextLongPause() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requestCount++
	if p.longPauseEach <= 0 || p.requestCount%p.longPauseEach != 0 {
		return 0
	}

	span := p.pauseMax - p.pauseMin
	if span <= 0 {
		return p.pauseMin
	}
	return p.pauseMin + time.Duration(p.rng.Int63n(int64(span)))
}

// SetMinInterval reconfigures the spacing between requests. Safe to call
// while requests are in flight.
func (p *Pacer) SetMinInterval(d time.Duration) {
	limit := rate.Inf
	if d > 0 {
		limit = rate.Every(d)
	}
	p.limiter.SetLimit(limit)

	p.logger.Info("pacer-interval-changed",
		zap.String("marketplace", p.marketplace),
		zap.Duration("min_interval", d))
}
