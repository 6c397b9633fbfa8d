package catalog

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// Snapshots keeps the most recent fetched catalogue per marketplace in a
// TTL cache. The orchestrator writes after each fetch; the statistics
// endpoint and credential probes read. The snapshot cache is
// informational only and is never consulted to skip a refresh fetch.
type Snapshots struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// Config holds snapshot store configuration. TTL should match the full
// refresh cadence so stale snapshots age out when refreshes stop.
type Config struct {
	TTL    time.Duration
	Logger *zap.Logger
}

// New creates a snapshot store.
func New(cfg *Config) (*Snapshots, error) {
	// Two live entries, one per marketplace
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 64,
		MaxCost:     8,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Snapshots{
		cache:  cache,
		ttl:    cfg.TTL,
		logger: cfg.Logger,
	}, nil
}

// Summary is the per-marketplace view exposed by the statistics endpoint.
type Summary struct {
	Marketplace     types.Marketplace `json:"marketplace"`
	Items           int               `json:"items"`
	SuccessfulPages int               `json:"successful_pages"`
	FailedPages     int               `json:"failed_pages"`
	FetchedAt       time.Time         `json:"fetched_at"`
}

// Store records a freshly fetched catalogue.
func (s *Snapshots) Store(cat *types.Catalogue) {
	if cat == nil {
		return
	}
	s.cache.SetWithTTL(snapshotKey(cat.Marketplace), cat, 1, s.ttl)
	SnapshotStoresTotal.WithLabelValues(string(cat.Marketplace)).Inc()
	s.logger.Debug("catalogue-snapshot-stored",
		zap.String("marketplace", string(cat.Marketplace)),
		zap.Int("items", len(cat.Items)))
}

// Get returns the latest catalogue for a marketplace, if one is cached.
func (s *Snapshots) Get(marketplace types.Marketplace) (*types.Catalogue, bool) {
	v, ok := s.cache.Get(snapshotKey(marketplace))
	if !ok {
		SnapshotMissesTotal.WithLabelValues(string(marketplace)).Inc()
		return nil, false
	}
	cat, ok := v.(*types.Catalogue)
	if ok {
		SnapshotHitsTotal.WithLabelValues(string(marketplace)).Inc()
	}
	return cat, ok
}

// Summarize returns summaries for every marketplace with a live snapshot.
func (s *Snapshots) Summarize() []Summary {
	out := make([]Summary, 0, 2)
	for _, marketplace := range []types.Marketplace{types.MarketplaceBuff, types.MarketplaceYoupin} {
		cat, ok := s.Get(marketplace)
		if !ok {
			continue
		}
		out = append(out, Summary{
			Marketplace:     marketplace,
			Items:           len(cat.Items),
			SuccessfulPages: cat.SuccessfulPages,
			FailedPages:     cat.FailedPages,
			FetchedAt:       cat.FetchedAt,
		})
	}
	return out
}

// Close releases the cache resources.
func (s *Snapshots) Close() {
	s.cache.Close()
}

func snapshotKey(marketplace types.Marketplace) string {
	return "catalogue:" + string(marketplace)
}
