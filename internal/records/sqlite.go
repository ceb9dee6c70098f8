package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Simplici0/slabquote/internal/db"
	"github.com/Simplici0/slabquote/internal/migrations"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dbPath and runs the schema migrations.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(database, migrations.SQLite); err != nil {
		database.Close()
		return nil, err
	}

	return &SQLiteStore{db: database}, nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append inserts rec.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	estimateJSON, err := json.Marshal(rec.Estimate)
	if err != nil {
		return fmt.Errorf("encode estimate: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO estimates (id, created_at, client_name, params_json, estimate_json, total)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, formatTime(rec.CreatedAt), rec.ClientName, string(rec.Params), string(estimateJSON), rec.Estimate.Summary.Total)
	if err != nil {
		return fmt.Errorf("insert estimate record: %w", err)
	}

	return nil
}

// ListRecent returns up to n records, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, client_name, params_json, estimate_json
		FROM estimates
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query estimate records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, n)
	for rows.Next() {
		rec, err := scanRecord(rows)
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
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, client_name, params_json, estimate_json
		FROM estimates
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec          Record
		createdAt    string
		clientName   sql.NullString
		paramsJSON   string
		estimateJSON string
	)
	if err := row.Scan(&rec.ID, &createdAt, &clientName, &paramsJSON, &estimateJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan estimate record: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t

	if clientName.Valid {
		name := clientName.String
		rec.ClientName = &name
	}
	rec.Params = json.RawMessage(paramsJSON)

	if err := json.Unmarshal([]byte(estimateJSON), &rec.Estimate); err != nil {
		return Record{}, fmt.Errorf("decode estimate %s: %w", rec.ID, err)
	}

	return rec, nil
}
