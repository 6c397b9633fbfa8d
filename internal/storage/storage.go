package storage

import (
	"context"
	"time"

	"github.com/skinarb/skinarb/pkg/types"
)

// RefreshRecord summarizes one completed refresh for the audit log.
type RefreshRecord struct {
	ID          string
	Mode        types.RefreshMode
	StartedAt   time.Time
	FinishedAt  time.Time
	PairsFound  int
	ScannedBuy  int
	ScannedSell int
	FailedPages int
	TopKey      string
	TopDiff     float64
}

// Storage is the interface for recording completed refreshes.
type Storage interface {
	// StoreRefresh records one completed refresh.
	StoreRefresh(ctx context.Context, rec *RefreshRecord) error

	// Close closes the storage connection.
	Close() error
}
