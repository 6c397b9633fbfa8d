package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by pretty-printing to console.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		logger: logger,
	}
}

// StoreRefresh pretty-prints a refresh summary to console.
func (c *ConsoleStorage) StoreRefresh(ctx context.Context, rec *RefreshRecord) error {
	fmt.Println("\n" + "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("REFRESH COMPLETE (%s)\n", rec.Mode)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("ID:        %s\n", rec.ID[:8])
	fmt.Printf("Started:   %s\n", rec.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:  %s\n", rec.FinishedAt.Sub(rec.StartedAt).Round(1e9))
	fmt.Printf("Scanned:   %d buy-side / %d sell-side listings\n", rec.ScannedBuy, rec.ScannedSell)
	fmt.Printf("Pairs:     %d\n", rec.PairsFound)
	if rec.FailedPages > 0 {
		fmt.Printf("Failed pages: %d\n", rec.FailedPages)
	}
	if rec.TopKey != "" {
		fmt.Printf("Best:      %s (+%.2f)\n", rec.TopKey, rec.TopDiff)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
