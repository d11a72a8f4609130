package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// PostgresTracker persists run records. Schema:
//
//	CREATE TABLE run_records (
//	    id         BIGSERIAL PRIMARY KEY,
//	    run_id     TEXT NOT NULL,
//	    order_id   TEXT NOT NULL,
//	    provider   TEXT NOT NULL,
//	    success    BOOLEAN NOT NULL,
//	    error_kind TEXT NOT NULL DEFAULT '',
//	    score      DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    latency_ms BIGINT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresTracker struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewPostgresTracker(databaseURL string) (*PostgresTracker, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewPostgresTrackerWithDB(db), nil
}

func NewPostgresTrackerWithDB(db *sql.DB) *PostgresTracker {
	return &PostgresTracker{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (t *PostgresTracker) Record(ctx context.Context, record Record) error {
	query, args, err := t.builder.
		Insert("run_records").
		Columns("run_id", "order_id", "provider", "success", "error_kind", "score", "latency_ms", "created_at").
		Values(record.RunID, record.OrderID, record.Provider, record.Success, record.ErrorKind, record.Score, record.LatencyMs, record.Timestamp).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (t *PostgresTracker) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query, args, err := t.builder.
		Select("run_id", "order_id", "provider", "success", "error_kind", "score", "latency_ms", "created_at").
		From("run_records").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.OrderID, &r.Provider, &r.Success, &r.ErrorKind, &r.Score, &r.LatencyMs, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func (t *PostgresTracker) FailureCount(ctx context.Context, provider string, since time.Time) (int, error) {
	query, args, err := t.builder.
		Select("COUNT(*)").
		From("run_records").
		Where(sq.Eq{"provider": provider, "success": false}).
		Where(sq.Gt{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}

	return count, nil
}

func (t *PostgresTracker) Close() error {
	return t.db.Close()
}
