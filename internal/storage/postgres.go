package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreRefresh inserts a refresh summary row.
func (p *PostgresStorage) StoreRefresh(ctx context.Context, rec *RefreshRecord) error {
	query := `
		INSERT INTO refreshes (
			id, mode, started_at, finished_at,
			pairs_found, scanned_buy, scanned_sell, failed_pages,
			top_key, top_diff
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Mode),
		rec.StartedAt,
		rec.FinishedAt,
		rec.PairsFound,
		rec.ScannedBuy,
		rec.ScannedSell,
		rec.FailedPages,
		rec.TopKey,
		rec.TopDiff,
	)
	if err != nil {
		return fmt.Errorf("insert refresh: %w", err)
	}

	p.logger.Debug("refresh-stored",
		zap.String("refresh-id", rec.ID),
		zap.String("mode", string(rec.Mode)),
		zap.Int("pairs", rec.PairsFound))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
