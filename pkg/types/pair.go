package types

import "time"

// MatchKind records how a pair's two sides were associated.
type MatchKind string

const (
	// MatchKeyExact means both sides shared the same market hash name.
	MatchKeyExact MatchKind = "key_exact"

	// MatchNameExact means the sides were associated by identical display
	// name after no hash-name match was found.
	MatchNameExact MatchKind = "name_exact"
)

// Pair is one cross-marketplace price differential: the same item listed on
// marketplace A (buy side) and marketplace B (sell side).
type Pair struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	BuyID       string    `json:"buy_id"`
	BuyPrice    float64   `json:"buy_price"`
	BuyURL      string    `json:"buy_url"`
	SellPrice   float64   `json:"sell_price"`
	SellCount   int       `json:"sell_count,omitempty"`
	IconURL     string    `json:"icon_url,omitempty"`
	Diff        float64   `json:"diff"`
	Margin      float64   `json:"margin"`
	MatchKind   MatchKind `json:"match_kind"`
	ObservedAt  time.Time `json:"observed_at"`
}

// RefreshMode distinguishes full catalogue refreshes from incremental ones.
type RefreshMode string

const (
	RefreshFull        RefreshMode = "full"
	RefreshIncremental RefreshMode = "incremental"
)

// ResultSet is one published analysis outcome. Instances are immutable once
// published; readers receive shared slices and must not mutate them.
type ResultSet struct {
	Pairs       []Pair            `json:"pairs"`
	GeneratedAt time.Time         `json:"generated_at"`
	Mode        RefreshMode       `json:"mode"`
	MatchCounts map[MatchKind]int `json:"match_counts"`
	ScannedA    int               `json:"scanned_a"`
	ScannedB    int               `json:"scanned_b"`
}

// RefreshProgress describes a refresh in flight. The two catalogue walks
// run concurrently, so page counters are tracked per side.
type RefreshProgress struct {
	Phase          string `json:"phase"`
	BuyPagesDone   int    `json:"buy_pages_done"`
	BuyPagesTotal  int    `json:"buy_pages_total"`
	SellPagesDone  int    `json:"sell_pages_done"`
	SellPagesTotal int    `json:"sell_pages_total"`
	Matches        int    `json:"matches"`
}
