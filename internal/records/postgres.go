package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/Simplici0/slabquote/internal/db"
	"github.com/Simplici0/slabquote/internal/migrations"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps records in Postgres through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and runs the schema migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := db.OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	err = migrations.Up(sqlDB, migrations.Postgres)
	sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Append inserts rec.
func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	estimateJSON, err := json.Marshal(rec.Estimate)
	if err != nil {
		return fmt.Errorf("encode estimate: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO estimates (id, created_at, client_name, params, estimate, total)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.CreatedAt, rec.ClientName, string(rec.Params), string(estimateJSON), rec.Estimate.Summary.Total)
	if err != nil {
		return fmt.Errorf("insert estimate record: %w", err)
	}

	return nil
}

// ListRecent returns up to n records, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, client_name, params::text, estimate::text
		FROM estimates
		ORDER BY created_at DESC, seq DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query estimate records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, n)
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate estimate records: %w", err)
	}

	return items, nil
}

// Get returns the record with id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, created_at, client_name, params::text, estimate::text
		FROM estimates
		WHERE id = $1
	`, id)

	rec, err := scanPostgresRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func scanPostgresRecord(row pgx.Row) (Record, error) {
	var (
		rec          Record
		createdAt    time.Time
		paramsJSON   string
		estimateJSON string
	)
	if err := row.Scan(&rec.ID, &createdAt, &rec.ClientName, &paramsJSON, &estimateJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan estimate record: %w", err)
	}

	rec.CreatedAt = createdAt.UTC()
	rec.Params = json.RawMessage(paramsJSON)

	if err := json.Unmarshal([]byte(estimateJSON), &rec.Estimate); err != nil {
		return Record{}, fmt.Errorf("decode estimate %s: %w", rec.ID, err)
	}

	return rec, nil
}
