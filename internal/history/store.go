// Package history persists and serves the append-only price time series.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rdevan/crypto-dashboard-backend/internal/alerts"
)

// Record is one appended history row. Rows are ordered by (asset, timestamp);
// duplicate timestamps for the same asset are acceptable.
type Record struct {
	Asset     string  `json:"asset"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Alerted   bool    `json:"alert_triggered"`
}

// Store is append-only time-series persistence, queryable by asset.
type Store interface {
	// Record appends one row. A failure here must never block the alert path;
	// callers log and continue.
	Record(ctx context.Context, rec Record) error

	// History returns at most limit most-recent records for the asset in
	// ascending timestamp order. A missing asset yields an empty slice.
	History(ctx context.Context, asset string, limit int) ([]Record, error)

	Close()
}

// PostgresStore keeps history in a price_history table. Prices are stored as
// NUMERIC and travel through shopspring decimal to avoid float round-tripping
// in the database.
type PostgresStore struct {
	db     *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.With().Str("component", "history-store").Logger(),
	}
}

// Record appends one row.
func (s *PostgresStore) Record(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO price_history (asset, ts, price, alert_triggered)
		VALUES ($1, $2, $3, $4)
	`

	price := decimal.NewFromFloat(rec.Price)
	if _, err := s.db.Exec(ctx, query, rec.Asset, rec.Timestamp, price, rec.Alerted); err != nil {
		return fmt.Errorf("%w: insert record: %v", alerts.ErrStoreUnavailable, err)
	}

	s.logger.Debug().
		Str("asset", rec.Asset).
		Float64("price", rec.Price).
		Bool("alerted", rec.Alerted).
		Msg("history record written")
	return nil
}

// History queries newest-first, then reverses into the chronological order
// downstream chart consumers expect.
func (s *PostgresStore) History(ctx context.Context, asset string, limit int) ([]Record, error) {
	query := `
		SELECT asset, ts, price, alert_triggered
		FROM price_history
		WHERE asset = $1
		ORDER BY ts DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %v", alerts.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var price decimal.Decimal
		if err := rows.Scan(&rec.Asset, &rec.Timestamp, &price, &rec.Alerted); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", alerts.ErrStoreUnavailable, err)
		}
		rec.Price = price.InexactFloat64()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read rows: %v", alerts.ErrStoreUnavailable, err)
	}

	reverse(records)
	return records, nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() {}

func reverse(records []Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
