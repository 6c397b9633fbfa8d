package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// PageClient is one marketplace's paging API.
type PageClient interface {
	Marketplace() types.Marketplace
	FetchPage(ctx context.Context, page, pageSize int) (*types.CataloguePage, error)
}

// OutcomeReporter receives per-page success/failure signals. The upstream
// circuit breaker implements this.
type OutcomeReporter interface {
	Record(marketplace types.Marketplace, success bool)
}

// ProgressFunc is called after every page with pages done and the best
// known total (zero when the marketplace does not advertise one).
type ProgressFunc func(done, total int)

// Fetcher walks a marketplace catalogue page by page. Pages are fetched
// sequentially so the pacer fully controls the request cadence.
type Fetcher struct {
	mu       sync.Mutex
	pageSize int
	maxPages int

	failureCap int
	reporter   OutcomeReporter
	logger     *zap.Logger
}

// Config holds fetcher configuration.
type Config struct {
	PageSize   int             // Listings requested per page
	MaxPages   int             // Hard page cap when no total is advertised
	FailureCap int             // Abort after this many failed pages
	Reporter   OutcomeReporter // Optional
	Logger     *zap.Logger
}

// New creates a new Fetcher.
func New(cfg *Config) (*Fetcher, error) {
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", cfg.PageSize)
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be positive, got %d", cfg.MaxPages)
	}

	return &Fetcher{
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		failureCap: cfg.FailureCap,
		reporter:   cfg.Reporter,
		logger:     cfg.Logger,
	}, nil
}

// SetLimits reconfigures the page size and the page cap. A walk already
// in flight keeps the values it started with.
func (f *Fetcher) SetLimits(pageSize, maxPages int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pageSize > 0 {
		f.pageSize = pageSize
	}
	if maxPages > 0 {
		f.maxPages = maxPages
	}
}

// FetchAll collects every available page from the client. Individual page
// failures are counted and skipped; the walk aborts once the failure cap
// is reached, and immediately on an authentication failure since every
// later page would hit the same dead session. On cancellation the items
// collected so far are returned together with the context error.
func (f *Fetcher) FetchAll(ctx context.Context, client PageClient, onPage ProgressFunc) (*types.Catalogue, error) {
	marketplace := client.Marketplace()
	start := time.Now()

	f.mu.Lock()
	pageSize := f.pageSize
	maxPages := f.maxPages
	f.mu.Unlock()

	cat := &types.Catalogue{
		Marketplace: marketplace,
		FetchedAt:   start,
	}

	totalPages := maxPages
	totalKnown := false

	for page := 1; page <= totalPages; page++ {
		if ctx.Err() != nil {
			return cat, fmt.Errorf("fetch %s cancelled at page %d: %w", marketplace, page, ctx.Err())
		}

		result, err := client.FetchPage(ctx, page, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return cat, fmt.Errorf("fetch %s cancelled at page %d: %w", marketplace, page, ctx.Err())
			}

			cat.FailedPages++
			f.record(marketplace, false)
			PageFailuresTotal.WithLabelValues(string(marketplace)).Inc()
			f.logger.Warn("catalogue-page-failed",
				zap.String("marketplace", string(marketplace)),
				zap.Int("page", page),
				zap.Error(err))

			if errors.Is(err, types.ErrAuthFailed) {
				f.logger.Error("catalogue-fetch-auth-failed",
					zap.String("marketplace", string(marketplace)),
					zap.Int("page", page))
				return cat, fmt.Errorf("fetch %s aborted at page %d: %w", marketplace, page, err)
			}

			if f.failureCap > 0 && cat.FailedPages >= f.failureCap {
				f.logger.Error("catalogue-fetch-aborted",
					zap.String("marketplace", string(marketplace)),
					zap.Int("failed_pages", cat.FailedPages))
				return cat, fmt.Errorf("fetch %s aborted after %d failed pages: %w",
					marketplace, cat.FailedPages, err)
			}
			continue
		}

		cat.SuccessfulPages++
		f.record(marketplace, true)

		if result.TotalPages > 0 && !totalKnown {
			totalKnown = true
			totalPages = result.TotalPages
			if totalPages > maxPages {
				totalPages = maxPages
			}
		}

		// Marketplaces without advertised totals signal the end with an
		// empty page
		if len(result.Items) == 0 && !totalKnown {
			break
		}

		cat.Items = append(cat.Items, result.Items...)

		if onPage != nil {
			advertised := 0
			if totalKnown {
				advertised = totalPages
			}
			onPage(page, advertised)
		}
	}

	FetchDurationSeconds.WithLabelValues(string(marketplace)).Observe(time.Since(start).Seconds())
	f.logger.Info("catalogue-fetched",
		zap.String("marketplace", string(marketplace)),
		zap.Int("items", len(cat.Items)),
		zap.Int("successful_pages", cat.SuccessfulPages),
		zap.Int("failed_pages", cat.FailedPages),
		zap.Duration("elapsed", time.Since(start)))

	return cat, nil
}

func (f *Fetcher) record(marketplace types.Marketplace, success bool) {
	if f.reporter != nil {
		f.reporter.Record(marketplace, success)
	}
}
