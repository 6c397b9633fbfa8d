package settings

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// Bounds enforced on mutations.
const (
	MaxOutputCeiling = 10000
	PageSizeCeiling  = 200
	MinCadence       = 30 * time.Second
)

// Snapshot is an immutable view of the runtime-tunable parameters.
// Readers get the current snapshot without locking.
type Snapshot struct {
	MinDiff     float64 `json:"min_diff"`
	MaxDiff     float64 `json:"max_diff"`
	MinBuyPrice float64 `json:"min_buy_price"`
	MaxBuyPrice float64 `json:"max_buy_price"`
	MaxOutput   int     `json:"max_output"`

	FullInterval        time.Duration `json:"full_interval"`
	IncrementalInterval time.Duration `json:"incremental_interval"`

	BuffMaxPages   int           `json:"buff_max_pages"`
	YoupinMaxPages int           `json:"youpin_max_pages"`
	BuffPageSize   int           `json:"buff_page_size"`
	YoupinPageSize int           `json:"youpin_page_size"`
	BuffMinDelay   time.Duration `json:"buff_min_delay"`
	YoupinMinDelay time.Duration `json:"youpin_min_delay"`
}

// Update is a partial mutation; nil fields keep their current value.
type Update struct {
	MinDiff     *float64
	MaxDiff     *float64
	MinBuyPrice *float64
	MaxBuyPrice *float64
	MaxOutput   *int

	FullInterval        *time.Duration
	IncrementalInterval *time.Duration

	BuffMaxPages   *int
	YoupinMaxPages *int
	BuffPageSize   *int
	YoupinPageSize *int
	BuffMinDelay   *time.Duration
	YoupinMinDelay *time.Duration
}

// Store holds the runtime settings. Mutations are serialized; filter
// changes invoke the registered invalidation hooks because cached
// interesting keys were selected under the old filters, and pacing
// changes invoke hooks that push new limits into the pacers and
// fetchers.
type Store struct {
	logger  *zap.Logger
	current atomic.Pointer[Snapshot]

	mu          sync.Mutex
	hooks       []func()
	pacingHooks []func(Snapshot)
}

// Config holds the initial parameter values.
type Config struct {
	Initial Snapshot
	Logger  *zap.Logger
}

// Defaults returns the stock parameter values.
func Defaults() Snapshot {
	return Snapshot{
		MinDiff:             3.0,
		MaxDiff:             5.0,
		MinBuyPrice:         10.0,
		MaxBuyPrice:         1000.0,
		MaxOutput:           300,
		FullInterval:        1 * time.Hour,
		IncrementalInterval: 10 * time.Minute,
		BuffMaxPages:        100,
		YoupinMaxPages:      50,
		BuffPageSize:        80,
		YoupinPageSize:      100,
		BuffMinDelay:        1 * time.Second,
		YoupinMinDelay:      3 * time.Second,
	}
}

// New creates a settings store.
func New(cfg *Config) (*Store, error) {
	err := validate(cfg.Initial)
	if err != nil {
		return nil, err
	}

	s := &Store{logger: cfg.Logger}
	initial := cfg.Initial
	s.current.Store(&initial)
	return s, nil
}

// OnFilterChange registers a hook invoked after any mutation of the diff
// band, the buy price band or the output cap.
func (s *Store) OnFilterChange(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// OnPacingChange registers a hook invoked with the new snapshot after any
// mutation of the page caps, page sizes or request delays.
func (s *Store) OnPacingChange(hook func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pacingHooks = append(s.pacingHooks, hook)
}

// Current returns the active snapshot.
func (s *Store) Current() Snapshot {
	return *s.current.Load()
}

// Apply validates and installs a partial update. On validation failure
// nothing changes.
func (s *Store) Apply(u Update) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *s.current.Load()
	filtersChanged := false
	pacingChanged := false

	if u.MinDiff != nil {
		next.MinDiff = *u.MinDiff
		filtersChanged = true
	}
	if u.MaxDiff != nil {
		next.MaxDiff = *u.MaxDiff
		filtersChanged = true
	}
	if u.MinBuyPrice != nil {
		next.MinBuyPrice = *u.MinBuyPrice
		filtersChanged = true
	}
	if u.MaxBuyPrice != nil {
		next.MaxBuyPrice = *u.MaxBuyPrice
		filtersChanged = true
	}
	if u.MaxOutput != nil {
		next.MaxOutput = *u.MaxOutput
		filtersChanged = true
	}
	if u.FullInterval != nil {
		next.FullInterval = *u.FullInterval
	}
	if u.IncrementalInterval != nil {
		next.IncrementalInterval = *u.IncrementalInterval
	}
	if u.BuffMaxPages != nil {
		next.BuffMaxPages = *u.BuffMaxPages
		pacingChanged = true
	}
	if u.YoupinMaxPages != nil {
		next.YoupinMaxPages = *u.YoupinMaxPages
		pacingChanged = true
	}
	if u.BuffPageSize != nil {
		next.BuffPageSize = *u.BuffPageSize
		pacingChanged = true
	}
	if u.YoupinPageSize != nil {
		next.YoupinPageSize = *u.YoupinPageSize
		pacingChanged = true
	}
	if u.BuffMinDelay != nil {
		next.BuffMinDelay = *u.BuffMinDelay
		pacingChanged = true
	}
	if u.YoupinMinDelay != nil {
		next.YoupinMinDelay = *u.YoupinMinDelay
		pacingChanged = true
	}

	err := validate(next)
	if err != nil {
		return *s.current.Load(), err
	}

	s.current.Store(&next)
	ChangesTotal.Inc()
	s.logger.Info("settings-applied",
		zap.Float64("min_diff", next.MinDiff),
		zap.Float64("max_diff", next.MaxDiff),
		zap.Float64("min_buy_price", next.MinBuyPrice),
		zap.Float64("max_buy_price", next.MaxBuyPrice),
		zap.Int("max_output", next.MaxOutput),
		zap.Bool("filters_changed", filtersChanged),
		zap.Bool("pacing_changed", pacingChanged))

	if filtersChanged {
		for _, hook := range s.hooks {
			hook()
		}
	}
	if pacingChanged {
		for _, hook := range s.pacingHooks {
			hook(next)
		}
	}

	return next, nil
}

func validate(s Snapshot) error {
	if s.MinDiff < 0 {
		return fmt.Errorf("%w: min_diff must not be negative", types.ErrValidationFailed)
	}
	if s.MinDiff > s.MaxDiff {
		return fmt.Errorf("%w: min_diff %.2f exceeds max_diff %.2f",
			types.ErrValidationFailed, s.MinDiff, s.MaxDiff)
	}
	if s.MinBuyPrice < 0 {
		return fmt.Errorf("%w: min_buy_price must not be negative", types.ErrValidationFailed)
	}
	if s.MinBuyPrice > s.MaxBuyPrice {
		return fmt.Errorf("%w: min_buy_price %.2f exceeds max_buy_price %.2f",
			types.ErrValidationFailed, s.MinBuyPrice, s.MaxBuyPrice)
	}
	if s.MaxOutput <= 0 || s.MaxOutput > MaxOutputCeiling {
		return fmt.Errorf("%w: max_output must be in 1..%d", types.ErrValidationFailed, MaxOutputCeiling)
	}
	if s.FullInterval < MinCadence || s.IncrementalInterval < MinCadence {
		return fmt.Errorf("%w: update intervals must be at least %s", types.ErrValidationFailed, MinCadence)
	}
	if s.BuffMaxPages < 1 || s.YoupinMaxPages < 1 {
		return fmt.Errorf("%w: page caps must be at least 1", types.ErrValidationFailed)
	}
	if s.BuffPageSize < 1 || s.BuffPageSize > PageSizeCeiling ||
		s.YoupinPageSize < 1 || s.YoupinPageSize > PageSizeCeiling {
		return fmt.Errorf("%w: page sizes must be in 1..%d", types.ErrValidationFailed, PageSizeCeiling)
	}
	if s.BuffMinDelay < 0 || s.YoupinMinDelay < 0 {
		return fmt.Errorf("%w: request delays must not be negative", types.ErrValidationFailed)
	}
	return nil
}
