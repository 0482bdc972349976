package cost

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore keeps the cost ledgers in two Postgres tables.
type PGStore struct {
	pool DBPool
	log  *zap.Logger
}

var _ Store = (*PGStore)(nil)

// NewPGStore verifies the connection and bootstraps the ledger tables.
func NewPGStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PGStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool must not be nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PGStore{pool: pool, log: logger.Named("cost_store")}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) ensureSchema(ctx context.Context) error {
	const ddl = `
        CREATE TABLE IF NOT EXISTS test_costs (
            id BIGSERIAL PRIMARY KEY,
            test_id TEXT NOT NULL,
            test_name TEXT NOT NULL,
            model TEXT NOT NULL,
            prompt_tokens BIGINT NOT NULL,
            completion_tokens BIGINT NOT NULL,
            total_tokens BIGINT NOT NULL,
            calls INT NOT NULL,
            cost DOUBLE PRECISION NOT NULL,
            currency TEXT NOT NULL,
            recorded_at TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS cost_history (
            day TEXT PRIMARY KEY,
            total_cost DOUBLE PRECISION NOT NULL,
            test_count INT NOT NULL
        );
    `
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return nil
}

func (s *PGStore) AppendTestCost(ctx context.Context, rec TestCostRecord) error {
	const sql = `
        INSERT INTO test_costs
            (test_id, test_name, model, prompt_tokens, completion_tokens, total_tokens, calls, cost, currency, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
    `
	_, err := s.pool.Exec(ctx, sql,
		rec.TestID, rec.TestName, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens,
		rec.Calls, rec.Cost, rec.Currency, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert test cost: %w", err)
	}
	return nil
}

func (s *PGStore) LoadTestCosts(ctx context.Context) ([]TestCostRecord, error) {
	const sql = `
        SELECT test_id, test_name, model, prompt_tokens, completion_tokens, total_tokens, calls, cost, currency, recorded_at
        FROM test_costs
        ORDER BY id ASC;
    `
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query test costs: %w", err)
	}
	defer rows.Close()

	var records []TestCostRecord
	for rows.Next() {
		var rec TestCostRecord
		if err := rows.Scan(
			&rec.TestID, &rec.TestName, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens,
			&rec.Calls, &rec.Cost, &rec.Currency, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan test cost row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

func (s *PGStore) AddDailyCost(ctx context.Context, day string, cost float64) error {
	const sql = `
        INSERT INTO cost_history (day, total_cost, test_count)
        VALUES ($1, $2, 1)
        ON CONFLICT (day) DO UPDATE SET
            total_cost = cost_history.total_cost + EXCLUDED.total_cost,
            test_count = cost_history.test_count + 1;
    `
	if _, err := s.pool.Exec(ctx, sql, day, cost); err != nil {
		return fmt.Errorf("failed to upsert day bucket: %w", err)
	}
	return nil
}

func (s *PGStore) LoadDailyAggregates(ctx context.Context) ([]DailyAggregate, error) {
	const sql = `
        SELECT day, total_cost, test_count
        FROM cost_history
        ORDER BY day ASC;
    `
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost history: %w", err)
	}
	defer rows.Close()

	var days []DailyAggregate
	for rows.Next() {
		var d DailyAggregate
		if err := rows.Scan(&d.Day, &d.TotalCost, &d.TestCount); err != nil {
			return nil, fmt.Errorf("failed to scan day bucket: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return days, nil
}
