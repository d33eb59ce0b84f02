// Package storage persists cycle and attempt audit records in PostgreSQL.
// The store is optional: with no DSN configured every method is a no-op, and
// the engine runs purely in memory.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"arb-engine/internal/config"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS cycles (
	id               BIGSERIAL PRIMARY KEY,
	cycle            TIMESTAMPTZ NOT NULL,
	block_number     BIGINT NOT NULL,
	quote_count      INT NOT NULL,
	outage_count     INT NOT NULL,
	opportunity      BOOLEAN NOT NULL,
	pair             TEXT NOT NULL DEFAULT '',
	venue_path       TEXT NOT NULL DEFAULT '',
	expected_profit  NUMERIC NOT NULL DEFAULT 0,
	elapsed_ms       BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_cycles_cycle ON cycles (cycle DESC);

CREATE TABLE IF NOT EXISTS attempts (
	id               TEXT PRIMARY KEY,
	dedup_key        TEXT NOT NULL,
	pair             TEXT NOT NULL,
	venue_path       TEXT NOT NULL,
	swap_venue       TEXT NOT NULL,
	bridge           TEXT NOT NULL DEFAULT '',
	amount_in        NUMERIC NOT NULL,
	expected_profit  NUMERIC NOT NULL,
	target_block     BIGINT NOT NULL,
	state            TEXT NOT NULL,
	reason           TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts (created_at DESC);
`

const insertCycleSQL = `
INSERT INTO cycles (cycle, block_number, quote_count, outage_count, opportunity, pair, venue_path, expected_profit, elapsed_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const upsertAttemptSQL = `
INSERT INTO attempts (id, dedup_key, pair, venue_path, swap_venue, bridge, amount_in, expected_profit, target_block, state, reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`

const profitHistorySQL = `
SELECT cycle, expected_profit
FROM cycles
WHERE opportunity
ORDER BY cycle DESC
LIMIT $1`

const recentAttemptsSQL = `
SELECT id, dedup_key, pair, venue_path, swap_venue, bridge, amount_in, expected_profit, target_block, state, reason, created_at, updated_at
FROM attempts
ORDER BY created_at DESC
LIMIT $1`

// CycleRecord summarises one decision cycle for the audit trail.
type CycleRecord struct {
	Cycle            time.Time
	BlockNumber      uint64
	QuoteCount       int
	OutageCount      int
	OpportunityFound bool
	Pair             string
	VenuePath        string
	ExpectedProfit   decimal.Decimal
	Elapsed          time.Duration
}

// AttemptRecord mirrors an execution attempt's final shape.
type AttemptRecord struct {
	ID             string
	Key            string
	Pair           string
	VenuePath      string
	SwapVenue      string
	Bridge         string
	AmountIn       decimal.Decimal
	ExpectedProfit decimal.Decimal
	TargetBlock    uint64
	State          string
	Reason         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfitPoint is one plotted sample of the profit history.
type ProfitPoint struct {
	Cycle  time.Time
	Profit decimal.Decimal
}

// Store wraps the connection pool. A nil Store is valid and inert.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Open connects to PostgreSQL and ensures the schema exists. Returns nil
// (disabled store) when no DSN is configured.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		logger.Info().Msg("audit store disabled, no database dsn configured")
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{pool: pool, logger: logger.With().Str("component", "storage").Logger()}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	store.logger.Info().Msg("audit store connected")
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// InsertCycle appends one cycle summary.
func (s *Store) InsertCycle(ctx context.Context, rec CycleRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, insertCycleSQL,
		rec.Cycle, int64(rec.BlockNumber), rec.QuoteCount, rec.OutageCount,
		rec.OpportunityFound, rec.Pair, rec.VenuePath, rec.ExpectedProfit, rec.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return nil
}

// UpsertAttempt writes an attempt's current state, updating in place as the
// lifecycle advances.
func (s *Store) UpsertAttempt(ctx context.Context, rec AttemptRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, upsertAttemptSQL,
		rec.ID, rec.Key, rec.Pair, rec.VenuePath, rec.SwapVenue, rec.Bridge,
		rec.AmountIn, rec.ExpectedProfit, int64(rec.TargetBlock), rec.State, rec.Reason,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert attempt: %w", err)
	}
	return nil
}

// ProfitHistory returns the most recent profitable cycles, oldest first.
func (s *Store) ProfitHistory(ctx context.Context, limit int) ([]ProfitPoint, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, profitHistorySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query profit history: %w", err)
	}
	defer rows.Close()

	var points []ProfitPoint
	for rows.Next() {
		var p ProfitPoint
		if err := rows.Scan(&p.Cycle, &p.Profit); err != nil {
			return nil, fmt.Errorf("scan profit point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order for plotting.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// RecentAttempts returns the newest attempts first.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]AttemptRecord, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, recentAttemptsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var targetBlock int64
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Pair, &rec.VenuePath, &rec.SwapVenue,
			&rec.Bridge, &rec.AmountIn, &rec.ExpectedProfit, &targetBlock,
			&rec.State, &rec.Reason, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.TargetBlock = uint64(targetBlock)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the pool. Safe on a nil Store.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.pool.Close()
}
