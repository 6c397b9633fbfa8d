package refresh

import (
	"fmt"
	"sort"
	"time"

	"github.com/skinarb/skinarb/pkg/types"
)

// Sort orders accepted by List.
const (
	SortByDiff   = "diff"
	SortByMargin = "margin"
)

// List returns pairs from the published result set, filtered and
// re-ordered per the query. It never blocks on a running refresh: it
// reads whatever set is currently published.
func (o *Orchestrator) List(minDiff float64, sortBy string, limit int) ([]types.Pair, error) {
	if sortBy == "" {
		sortBy = SortByMargin
	}
	if sortBy != SortByDiff && sortBy != SortByMargin {
		return nil, fmt.Errorf("%w: sort_by must be %q or %q, got %q",
			types.ErrValidationFailed, SortByDiff, SortByMargin, sortBy)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", types.ErrValidationFailed)
	}

	cur := o.current.Load()
	if cur == nil {
		return []types.Pair{}, nil
	}

	out := make([]types.Pair, 0, len(cur.Pairs))
	for _, p := range cur.Pairs {
		if p.Diff >= minDiff {
			out = append(out, p)
		}
	}

	if sortBy == SortByDiff {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Diff > out[j].Diff
		})
	}
	// SortByMargin keeps the published order

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Stats summarizes the published result set. Diff and margin aggregates
// are zero when no pairs are published.
type Stats struct {
	Pairs       int                     `json:"pairs"`
	MatchCounts map[types.MatchKind]int `json:"match_counts"`
	ScannedA    int                     `json:"scanned_a"`
	ScannedB    int                     `json:"scanned_b"`
	GeneratedAt time.Time               `json:"generated_at"`
	Mode        types.RefreshMode       `json:"mode"`
	MinDiff     float64                 `json:"min_diff"`
	MeanDiff    float64                 `json:"mean_diff"`
	BestDiff    float64                 `json:"best_diff"`
	MinMargin   float64                 `json:"min_margin"`
	MeanMargin  float64                 `json:"mean_margin"`
	BestMargin  float64                 `json:"best_margin"`
}

// GetStats returns summary statistics for the published result set.
func (o *Orchestrator) GetStats() Stats {
	cur := o.current.Load()
	if cur == nil {
		return Stats{MatchCounts: map[types.MatchKind]int{}}
	}

	st := Stats{
		Pairs:       len(cur.Pairs),
		MatchCounts: cur.MatchCounts,
		ScannedA:    cur.ScannedA,
		ScannedB:    cur.ScannedB,
		GeneratedAt: cur.GeneratedAt,
		Mode:        cur.Mode,
	}
	if len(cur.Pairs) == 0 {
		return st
	}

	st.MinDiff = cur.Pairs[0].Diff
	st.MinMargin = cur.Pairs[0].Margin

	var diffSum, marginSum float64
	for _, p := range cur.Pairs {
		diffSum += p.Diff
		marginSum += p.Margin

		if p.Diff < st.MinDiff {
			st.MinDiff = p.Diff
		}
		if p.Diff > st.BestDiff {
			st.BestDiff = p.Diff
		}
		if p.Margin < st.MinMargin {
			st.MinMargin = p.Margin
		}
		if p.Margin > st.BestMargin {
			st.BestMargin = p.Margin
		}
	}
	st.MeanDiff = diffSum / float64(len(cur.Pairs))
	st.MeanMargin = marginSum / float64(len(cur.Pairs))

	return st
}
