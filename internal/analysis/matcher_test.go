package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skinarb/skinarb/pkg/types"
)

func newTestMatcher() *Matcher {
	return New(Config{Logger: zap.NewNop()})
}

func wideParams() Params {
	return Params{
		MinDiff:     0,
		MaxDiff:     1000,
		MinBuyPrice: 0,
		MaxBuyPrice: 100000,
		MaxOutput:   300,
	}
}

func buyCat(items ...types.Item) *types.Catalogue {
	return &types.Catalogue{Marketplace: types.MarketplaceBuff, Items: items}
}

func sellCat(items ...types.Item) *types.Catalogue {
	return &types.Catalogue{Marketplace: types.MarketplaceYoupin, Items: items}
}

func TestMatchKeyExact(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(
		buyCat(types.Item{ID: "1", Key: "AK-47 | Redline (Field-Tested)", Name: "AK-47 | 红线 (久经沙场)", Price: 100}),
		sellCat(types.Item{ID: "9", Key: "AK-47 | Redline (Field-Tested)", Name: "different display name", Price: 104}),
		wideParams(),
	)

	require.Len(t, result.Pairs, 1)
	pair := result.Pairs[0]
	assert.Equal(t, types.MatchKeyExact, pair.MatchKind)
	assert.Equal(t, "AK-47 | Redline (Field-Tested)", pair.Key)
	assert.InDelta(t, 4.0, pair.Diff, 1e-9)
	assert.InDelta(t, 0.04, pair.Margin, 1e-9)
	assert.Equal(t, 1, result.MatchCounts[types.MatchKeyExact])
	assert.Equal(t, 0, result.MatchCounts[types.MatchNameExact])

	// Buy side naming wins for display
	assert.Equal(t, "AK-47 | 红线 (久经沙场)", pair.DisplayName)
}

func TestMatchNameFallback(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(
		buyCat(types.Item{ID: "1", Key: "", Name: "M4A4 | 龙王 (略有磨损)", Price: 50}),
		sellCat(types.Item{ID: "9", Key: "", Name: "M4A4 | 龙王 (略有磨损)", Price: 53.5}),
		wideParams(),
	)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, types.MatchNameExact, result.Pairs[0].MatchKind)
	assert.Equal(t, 1, result.MatchCounts[types.MatchNameExact])
}

func TestNoFuzzyMatching(t *testing.T) {
	m := newTestMatcher()

	// Near-miss names must not pair
	result := m.Match(
		buyCat(types.Item{ID: "1", Name: "AWP | Asiimov (Field-Tested)", Price: 100}),
		sellCat(types.Item{ID: "9", Name: "AWP | Asiimov (Well-Worn)", Price: 110}),
		wideParams(),
	)

	assert.Empty(t, result.Pairs)
}

func TestDiffBandBoundariesInclusive(t *testing.T) {
	m := newTestMatcher()

	params := wideParams()
	params.MinDiff = 3
	params.MaxDiff = 5

	tests := []struct {
		name      string
		sellPrice float64
		wantPair  bool
	}{
		{"below min", 102.99, false},
		{"at min", 103, true},
		{"inside", 104, true},
		{"at max", 105, true},
		{"above max", 105.01, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.Match(
				buyCat(types.Item{ID: "1", Key: "k", Name: "n", Price: 100}),
				sellCat(types.Item{ID: "9", Key: "k", Name: "n", Price: tt.sellPrice}),
				params,
			)
			assert.Equal(t, tt.wantPair, len(result.Pairs) == 1)
		})
	}
}

func TestBuyPriceBandFilter(t *testing.T) {
	m := newTestMatcher()

	params := wideParams()
	params.MinBuyPrice = 10
	params.MaxBuyPrice = 1000

	result := m.Match(
		buyCat(
			types.Item{ID: "1", Key: "cheap", Price: 9.99},
			types.Item{ID: "2", Key: "low-edge", Price: 10},
			types.Item{ID: "3", Key: "high-edge", Price: 1000},
			types.Item{ID: "4", Key: "expensive", Price: 1000.01},
		),
		sellCat(
			types.Item{ID: "a", Key: "cheap", Price: 14},
			types.Item{ID: "b", Key: "low-edge", Price: 14},
			types.Item{ID: "c", Key: "high-edge", Price: 1004},
			types.Item{ID: "d", Key: "expensive", Price: 1004},
		),
		params,
	)

	require.Len(t, result.Pairs, 2)
	keys := []string{result.Pairs[0].Key, result.Pairs[1].Key}
	assert.Contains(t, keys, "low-edge")
	assert.Contains(t, keys, "high-edge")
}

func TestSellSideKeepsLowestPrice(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(
		buyCat(types.Item{ID: "1", Key: "k", Price: 100}),
		sellCat(
			types.Item{ID: "a", Key: "k", Price: 110},
			types.Item{ID: "b", Key: "k", Price: 104},
			types.Item{ID: "c", Key: "k", Price: 108},
		),
		wideParams(),
	)

	require.Len(t, result.Pairs, 1)
	assert.InDelta(t, 104, result.Pairs[0].SellPrice, 1e-9)
}

func TestSortOrderAndTruncation(t *testing.T) {
	m := newTestMatcher()

	params := wideParams()
	params.MaxOutput = 2

	result := m.Match(
		buyCat(
			types.Item{ID: "1", Key: "low-margin", Price: 100},
			types.Item{ID: "2", Key: "high-margin", Price: 10},
			types.Item{ID: "3", Key: "mid-margin", Price: 50},
		),
		sellCat(
			types.Item{ID: "a", Key: "low-margin", Price: 102},  // margin 0.02
			types.Item{ID: "b", Key: "high-margin", Price: 11},  // margin 0.10
			types.Item{ID: "c", Key: "mid-margin", Price: 52.5}, // margin 0.05
		),
		params,
	)

	require.Len(t, result.Pairs, 2)
	assert.Equal(t, "high-margin", result.Pairs[0].Key)
	assert.Equal(t, "mid-margin", result.Pairs[1].Key)
}

func TestSortTiebreaks(t *testing.T) {
	pairs := []types.Pair{
		{Key: "b", Margin: 0.05, Diff: 5},
		{Key: "a", Margin: 0.05, Diff: 5},
		{Key: "c", Margin: 0.05, Diff: 6},
	}

	SortPairs(pairs)

	// Same margin: higher diff first, then key ascending
	assert.Equal(t, "c", pairs[0].Key)
	assert.Equal(t, "a", pairs[1].Key)
	assert.Equal(t, "b", pairs[2].Key)
}

func TestDuplicateBuyKeysKeepBestMargin(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(
		buyCat(
			types.Item{ID: "1", Key: "k", Price: 100},
			types.Item{ID: "2", Key: "k", Price: 98},
		),
		sellCat(types.Item{ID: "a", Key: "k", Price: 104}),
		wideParams(),
	)

	require.Len(t, result.Pairs, 1)
	assert.Equal(t, "2", result.Pairs[0].BuyID)
	assert.InDelta(t, 6, result.Pairs[0].Diff, 1e-9)
	assert.Equal(t, 1, result.MatchCounts[types.MatchKeyExact])
}

func TestEmptyCatalogues(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(buyCat(), sellCat(), wideParams())

	assert.Empty(t, result.Pairs)
	assert.Equal(t, 0, result.ScannedA)
	assert.Equal(t, 0, result.ScannedB)
}

func TestZeroPricedBuyItemsSkipped(t *testing.T) {
	m := newTestMatcher()

	// An open lower price band must not let an unpriced listing through;
	// a zero buy price would make the margin undefined
	params := wideParams()
	params.MinDiff = 3
	params.MaxDiff = 5

	result := m.Match(
		buyCat(types.Item{ID: "1", Key: "k", Price: 0}),
		sellCat(types.Item{ID: "a", Key: "k", Price: 4}),
		params,
	)

	assert.Empty(t, result.Pairs)
}

func TestZeroPricedSellListingsIgnored(t *testing.T) {
	m := newTestMatcher()

	result := m.Match(
		buyCat(types.Item{ID: "1", Key: "k", Price: 100}),
		sellCat(types.Item{ID: "a", Key: "k", Price: 0}),
		wideParams(),
	)

	assert.Empty(t, result.Pairs)
}
