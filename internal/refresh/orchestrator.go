package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/internal/analysis"
	"github.com/skinarb/skinarb/internal/catalog"
	"github.com/skinarb/skinarb/internal/fetcher"
	"github.com/skinarb/skinarb/internal/keycache"
	"github.com/skinarb/skinarb/internal/settings"
	"github.com/skinarb/skinarb/internal/storage"
	"github.com/skinarb/skinarb/pkg/types"
)

// Phases reported while a refresh is in flight. Both catalogue walks run
// inside the single fetch phase.
const (
	PhaseFetch   = "fetch"
	PhaseAnalyze = "analyze"
	PhasePublish = "publish"
)

// Outcomes of the most recent refresh.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Orchestrator runs full and incremental refreshes. At most one refresh
// runs at a time; the published result set is swapped atomically so
// readers never observe a partial analysis.
type Orchestrator struct {
	buyClient   fetcher.PageClient
	sellClient  fetcher.PageClient
	buyFetcher  *fetcher.Fetcher
	sellFetcher *fetcher.Fetcher
	matcher     *analysis.Matcher
	settings    *settings.Store
	keys        *keycache.Cache
	snapshots   *catalog.Snapshots
	store       storage.Storage
	logger      *zap.Logger

	baseCtx context.Context

	current atomic.Pointer[types.ResultSet]

	stateMu    sync.Mutex
	running    bool
	mode       types.RefreshMode
	cancel     context.CancelFunc
	progress   types.RefreshProgress
	lastResult string
	lastError  string
	lastFullAt time.Time
}

// Config holds orchestrator configuration.
type Config struct {
	BuyClient   fetcher.PageClient
	SellClient  fetcher.PageClient
	BuyFetcher  *fetcher.Fetcher
	SellFetcher *fetcher.Fetcher
	Matcher     *analysis.Matcher
	Settings    *settings.Store
	KeyCache    *keycache.Cache
	Snapshots   *catalog.Snapshots
	Storage     storage.Storage
	Logger      *zap.Logger
}

// New creates a new Orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg.BuyClient == nil || cfg.SellClient == nil {
		return nil, fmt.Errorf("both marketplace clients are required")
	}
	if cfg.Matcher == nil || cfg.Settings == nil || cfg.KeyCache == nil {
		return nil, fmt.Errorf("matcher, settings and key cache are required")
	}

	return &Orchestrator{
		buyClient:   cfg.BuyClient,
		sellClient:  cfg.SellClient,
		buyFetcher:  cfg.BuyFetcher,
		sellFetcher: cfg.SellFetcher,
		matcher:     cfg.Matcher,
		settings:    cfg.Settings,
		keys:        cfg.KeyCache,
		snapshots:   cfg.Snapshots,
		store:       cfg.Storage,
		logger:      cfg.Logger,
		baseCtx:     context.Background(),
	}, nil
}

// Start binds the orchestrator to the application lifetime. Triggered
// refreshes derive their context from ctx and die with it.
func (o *Orchestrator) Start(ctx context.Context) {
	o.baseCtx = ctx
}

// Current returns the published result set, nil before the first refresh.
func (o *Orchestrator) Current() *types.ResultSet {
	return o.current.Load()
}

// Trigger starts a refresh in the background. It returns
// types.ErrAlreadyRunning without side effects when a refresh is already
// in flight.
func (o *Orchestrator) Trigger(mode types.RefreshMode) error {
	runCtx, err := o.acquire(mode)
	if err != nil {
		return err
	}

	go func() {
		defer o.release()
		o.run(runCtx, mode)
	}()

	return nil
}

// Refresh runs a refresh synchronously. Used by the one-shot analyze
// command and by tests.
func (o *Orchestrator) Refresh(ctx context.Context, mode types.RefreshMode) error {
	runCtx, err := o.acquire(mode)
	if err != nil {
		return err
	}
	defer o.release()

	// Honor the caller's deadline as well as the application lifetime
	stop := context.AfterFunc(ctx, func() { o.CancelRunning() })
	defer stop()

	return o.run(runCtx, mode)
}

// CancelRunning cancels the in-flight refresh, if any. Returns true when
// a refresh was signalled.
func (o *Orchestrator) CancelRunning() bool {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if !o.running || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Status is the externally visible orchestrator state. LastResult is one
// of the Result constants; LastError carries detail only for ResultError,
// a cancelled refresh is not an error.
type Status struct {
	Running     bool                  `json:"running"`
	Mode        types.RefreshMode     `json:"mode,omitempty"`
	Progress    types.RefreshProgress `json:"progress"`
	LastResult  string                `json:"last_result,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
	LastFullAt  time.Time             `json:"last_full_at,omitempty"`
	GeneratedAt time.Time             `json:"generated_at,omitempty"`
	Pairs       int                   `json:"pairs"`
	CachedKeys  int                   `json:"cached_keys"`
}

// GetStatus reports the current refresh state.
func (o *Orchestrator) GetStatus() Status {
	o.stateMu.Lock()
	st := Status{
		Running:    o.running,
		Mode:       o.mode,
		Progress:   o.progress,
		LastResult: o.lastResult,
		LastError:  o.lastError,
		LastFullAt: o.lastFullAt,
	}
	o.stateMu.Unlock()

	if cur := o.current.Load(); cur != nil {
		st.GeneratedAt = cur.GeneratedAt
		st.Pairs = len(cur.Pairs)
	}
	st.CachedKeys = o.keys.Len()

	return st
}

// acquire reserves the single refresh slot.
func (o *Orchestrator) acquire(mode types.RefreshMode) (context.Context, error) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if o.running {
		return nil, types.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(o.baseCtx)
	o.running = true
	o.mode = mode
	o.cancel = cancel
	o.progress = types.RefreshProgress{}

	return runCtx, nil
}

func (o *Orchestrator) release() {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.running = false
	o.mode = ""
	o.cancel = nil
}

func (o *Orchestrator) setPhase(phase string) {
	o.stateMu.Lock()
	o.progress.Phase = phase
	o.progress.BuyPagesDone = 0
	o.progress.BuyPagesTotal = 0
	o.progress.SellPagesDone = 0
	o.progress.SellPagesTotal = 0
	o.stateMu.Unlock()
}

func (o *Orchestrator) setBuyPages(done, total int) {
	o.stateMu.Lock()
	o.progress.BuyPagesDone = done
	o.progress.BuyPagesTotal = total
	o.stateMu.Unlock()
}

func (o *Orchestrator) setSellPages(done, total int) {
	o.stateMu.Lock()
	o.progress.SellPagesDone = done
	o.progress.SellPagesTotal = total
	o.stateMu.Unlock()
}

func (o *Orchestrator) finish(mode types.RefreshMode, err error, start time.Time) error {
	result := ResultSuccess
	if err != nil {
		result = ResultError
		if errors.Is(err, context.Canceled) {
			result = ResultCancelled
		}
	}

	RefreshesTotal.WithLabelValues(string(mode), result).Inc()
	RefreshDurationSeconds.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())

	o.stateMu.Lock()
	o.lastResult = result
	switch result {
	case ResultError:
		o.lastError = err.Error()
	case ResultSuccess:
		o.lastError = ""
		if mode == types.RefreshFull {
			o.lastFullAt = time.Now()
			LastFullTimestamp.SetToCurrentTime()
		}
	}
	o.stateMu.Unlock()

	return err
}

// run executes one refresh. The caller holds the refresh slot.
func (o *Orchestrator) run(ctx context.Context, mode types.RefreshMode) error {
	start := time.Now()

	interesting := map[string]struct{}{}
	if mode == types.RefreshIncremental {
		keys, _ := o.keys.Keys()
		if len(keys) == 0 {
			o.logger.Info("incremental-degraded-to-full", zap.String("reason", "empty key cache"))
			mode = types.RefreshFull
			o.stateMu.Lock()
			o.mode = mode
			o.stateMu.Unlock()
		} else {
			for _, k := range keys {
				interesting[k] = struct{}{}
			}
		}
	}

	o.logger.Info("refresh-starting", zap.String("mode", string(mode)))

	o.setPhase(PhaseFetch)

	var (
		wg              sync.WaitGroup
		buyCat, sellCat *types.Catalogue
		buyErr, sellErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		buyCat, buyErr = o.buyFetcher.FetchAll(ctx, o.buyClient, o.setBuyPages)
	}()
	go func() {
		defer wg.Done()
		sellCat, sellErr = o.sellFetcher.FetchAll(ctx, o.sellClient, o.setSellPages)
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return o.finish(mode, fmt.Errorf("refresh cancelled: %w", context.Canceled), start)
	}

	if errors.Is(buyErr, types.ErrAuthFailed) || errors.Is(sellErr, types.ErrAuthFailed) {
		err := buyErr
		if !errors.Is(err, types.ErrAuthFailed) {
			err = sellErr
		}
		o.logger.Error("refresh-auth-failed", zap.Error(err))
		return o.finish(mode, err, start)
	}

	if len(buyCat.Items) == 0 && len(sellCat.Items) == 0 {
		err := fmt.Errorf("%w: no items from either marketplace (buy: %v, sell: %v)",
			types.ErrUpstreamUnavailable, buyErr, sellErr)
		o.logger.Error("refresh-failed", zap.Error(err))
		return o.finish(mode, err, start)
	}

	if o.snapshots != nil {
		o.snapshots.Store(buyCat)
		o.snapshots.Store(sellCat)
	}

	o.setPhase(PhaseAnalyze)
	snap := o.settings.Current()
	params := analysis.Params{
		MinDiff:     snap.MinDiff,
		MaxDiff:     snap.MaxDiff,
		MinBuyPrice: snap.MinBuyPrice,
		MaxBuyPrice: snap.MaxBuyPrice,
		MaxOutput:   snap.MaxOutput,
	}

	analyzedBuy := buyCat
	if mode == types.RefreshIncremental {
		analyzedBuy = restrict(buyCat, interesting)
	}

	result := o.matcher.Match(analyzedBuy, sellCat, params)
	result.Mode = mode

	if mode == types.RefreshIncremental {
		result = o.mergeWithPrior(result, interesting, params.MaxOutput)
	}

	o.stateMu.Lock()
	o.progress.Matches = len(result.Pairs)
	o.stateMu.Unlock()

	o.setPhase(PhasePublish)
	o.current.Store(result)

	if mode == types.RefreshFull {
		keys := make([]string, 0, len(result.Pairs))
		for _, p := range result.Pairs {
			keys = append(keys, p.Key)
		}
		err := o.keys.Replace(keys)
		if err != nil {
			o.logger.Warn("keycache-rebuild-failed", zap.Error(err))
		}
	}

	o.storeRecord(ctx, mode, result, buyCat, sellCat, start)

	o.logger.Info("refresh-complete",
		zap.String("mode", string(mode)),
		zap.Int("pairs", len(result.Pairs)),
		zap.Duration("elapsed", time.Since(start)))

	return o.finish(mode, nil, start)
}

// mergeWithPrior folds an incremental result into the previously
// published set: re-analyzed keys take their new value, other interesting
// keys keep their prior pair.
func (o *Orchestrator) mergeWithPrior(fresh *types.ResultSet, interesting map[string]struct{}, maxOutput int) *types.ResultSet {
	prior := o.current.Load()
	if prior == nil {
		return fresh
	}

	freshKeys := make(map[string]struct{}, len(fresh.Pairs))
	merged := make([]types.Pair, 0, len(fresh.Pairs)+len(prior.Pairs))
	counts := map[types.MatchKind]int{}

	for _, p := range fresh.Pairs {
		freshKeys[p.Key] = struct{}{}
		merged = append(merged, p)
		counts[p.MatchKind]++
	}

	for _, p := range prior.Pairs {
		if _, redone := freshKeys[p.Key]; redone {
			continue
		}
		if _, keep := interesting[p.Key]; !keep {
			continue
		}
		merged = append(merged, p)
		counts[p.MatchKind]++
	}

	analysis.SortPairs(merged)
	if maxOutput > 0 && len(merged) > maxOutput {
		merged = merged[:maxOutput]
	}

	return &types.ResultSet{
		Pairs:       merged,
		GeneratedAt: fresh.GeneratedAt,
		Mode:        types.RefreshIncremental,
		MatchCounts: counts,
		ScannedA:    fresh.ScannedA,
		ScannedB:    fresh.ScannedB,
	}
}

func (o *Orchestrator) storeRecord(ctx context.Context, mode types.RefreshMode, result *types.ResultSet, buyCat, sellCat *types.Catalogue, start time.Time) {
	if o.store == nil {
		return
	}

	rec := &storage.RefreshRecord{
		ID:          uuid.New().String(),
		Mode:        mode,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		PairsFound:  len(result.Pairs),
		ScannedBuy:  len(buyCat.Items),
		ScannedSell: len(sellCat.Items),
		FailedPages: buyCat.FailedPages + sellCat.FailedPages,
	}
	if len(result.Pairs) > 0 {
		rec.TopKey = result.Pairs[0].Key
		rec.TopDiff = result.Pairs[0].Diff
	}

	err := o.store.StoreRefresh(ctx, rec)
	if err != nil {
		o.logger.Warn("refresh-record-store-failed", zap.Error(err))
	}
}

// restrict returns a copy of the catalogue limited to interesting keys.
func restrict(cat *types.Catalogue, interesting map[string]struct{}) *types.Catalogue {
	out := &types.Catalogue{
		Marketplace:     cat.Marketplace,
		SuccessfulPages: cat.SuccessfulPages,
		FailedPages:     cat.FailedPages,
		FetchedAt:       cat.FetchedAt,
	}
	for _, item := range cat.Items {
		if _, ok := interesting[item.MatchKey()]; ok {
			out.Items = append(out.Items, item)
		}
	}
	return out
}
