package analysis

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

// Params are the tunable analysis parameters for one run. The settings
// store produces these.
type Params struct {
	MinDiff     float64 // Inclusive lower bound on sell − buy
	MaxDiff     float64 // Inclusive upper bound on sell − buy
	MinBuyPrice float64 // Inclusive lower bound on the buy-side price
	MaxBuyPrice float64 // Inclusive upper bound on the buy-side price
	MaxOutput   int     // Result set size cap
}

// Matcher pairs buy-side listings with sell-side listings and ranks the
// resulting price differentials.
type Matcher struct {
	logger *zap.Logger
}

// Config holds matcher configuration.
type Config struct {
	Logger *zap.Logger
}

// New creates a new Matcher.
func New(cfg Config) *Matcher {
	return &Matcher{logger: cfg.Logger}
}

// sellListing is the cheapest sell-side entry for one lookup key.
type sellListing struct {
	price float64
	count int
}

// Match pairs every buy-side item inside the price band with the cheapest
// matching sell-side listing and returns the ranked result set. Matching
// tries the hash-name key first, then falls back to exact display-name
// equality. Fuzzy matching is deliberately absent; near-miss names pair
// distinct exteriors and produce phantom differentials.
func (m *Matcher) Match(buySide, sellSide *types.Catalogue, params Params) *types.ResultSet {
	start := time.Now()

	byKey := make(map[string]sellListing, len(sellSide.Items))
	byName := make(map[string]sellListing, len(sellSide.Items))
	for _, item := range sellSide.Items {
		if item.Price <= 0 {
			continue
		}
		if item.Key != "" {
			keep(byKey, item.Key, item)
		}
		if item.Name != "" {
			keep(byName, item.Name, item)
		}
	}

	counts := map[types.MatchKind]int{}
	seen := make(map[string]int) // match key -> index into pairs
	pairs := make([]types.Pair, 0, 256)

	for _, item := range buySide.Items {
		if item.Price <= 0 {
			continue
		}
		if item.Price < params.MinBuyPrice || item.Price > params.MaxBuyPrice {
			continue
		}

		var (
			sell sellListing
			kind types.MatchKind
			ok   bool
		)

		if item.Key != "" {
			sell, ok = byKey[item.Key]
			kind = types.MatchKeyExact
		}
		if !ok && item.Name != "" {
			sell, ok = byName[item.Name]
			kind = types.MatchNameExact
		}
		if !ok {
			continue
		}

		diff := sell.price - item.Price
		if diff < params.MinDiff || diff > params.MaxDiff {
			continue
		}

		pair := types.Pair{
			Key:         item.MatchKey(),
			DisplayName: item.Name,
			BuyID:       item.ID,
			BuyPrice:    item.Price,
			BuyURL:      item.URL,
			SellPrice:   sell.price,
			SellCount:   sell.count,
			IconURL:     item.IconURL,
			Diff:        diff,
			Margin:      diff / item.Price,
			MatchKind:   kind,
			ObservedAt:  start,
		}

		// One pair per key, the higher margin wins
		if idx, dup := seen[pair.Key]; dup {
			if pair.Margin > pairs[idx].Margin {
				counts[pairs[idx].MatchKind]--
				counts[kind]++
				pairs[idx] = pair
			}
			continue
		}

		seen[pair.Key] = len(pairs)
		pairs = append(pairs, pair)
		counts[kind]++
	}

	SortPairs(pairs)

	if params.MaxOutput > 0 && len(pairs) > params.MaxOutput {
		pairs = pairs[:params.MaxOutput]
	}

	PairsFound.Set(float64(len(pairs)))
	MatchDurationSeconds.Observe(time.Since(start).Seconds())

	m.logger.Info("analysis-complete",
		zap.Int("buy_side_items", len(buySide.Items)),
		zap.Int("sell_side_items", len(sellSide.Items)),
		zap.Int("pairs", len(pairs)),
		zap.Int("key_exact", counts[types.MatchKeyExact]),
		zap.Int("name_exact", counts[types.MatchNameExact]),
		zap.Duration("elapsed", time.Since(start)))

	return &types.ResultSet{
		Pairs:       pairs,
		GeneratedAt: start,
		MatchCounts: counts,
		ScannedA:    len(buySide.Items),
		ScannedB:    len(sellSide.Items),
	}
}

// SortPairs orders pairs by margin descending, then diff descending, then
// key ascending for a stable tiebreak.
func SortPairs(pairs []types.Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Margin != pairs[j].Margin {
			return pairs[i].Margin > pairs[j].Margin
		}
		if pairs[i].Diff != pairs[j].Diff {
			return pairs[i].Diff > pairs[j].Diff
		}
		return strings.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
}

func keep(m map[string]sellListing, key string, item types.Item) {
	cur, ok := m[key]
	if !ok || item.Price < cur.price {
		m[key] = sellListing{price: item.Price, count: item.SellCount}
	}
}
