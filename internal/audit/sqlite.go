package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteTime is fixed-width so lexical order matches time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps audit records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over db, typically from database.OpenSQLite.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			"timestamp" TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			savings REAL NOT NULL DEFAULT 0,
			verdict TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			pii_scrubbed INTEGER NOT NULL DEFAULT 0,
			entities TEXT NOT NULL DEFAULT '[]',
			issues TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS audit_logs_timestamp_idx ON audit_logs ("timestamp" DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating audit schema: %w", err)
		}
	}
	return nil
}

// Insert writes rec once. A second insert with the same ID is rejected with
// ErrDuplicate and leaves the first row untouched.
func (s *SQLiteStore) Insert(ctx context.Context, rec Record) error {
	entities, issues, err := encodeLists(rec)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Timestamp.UTC().Format(sqliteTime), rec.Model, rec.Savings, rec.Verdict, rec.Output,
		rec.Status, rec.Department, rec.PIIScrubbed, entities, issues,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	return nil
}

// Get returns the record for id or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM audit_logs WHERE id = ?`, id)
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting audit record: %w", err)
	}
	return rec, nil
}

// Totals sums savings and counts records.
func (s *SQLiteStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(savings), 0.0), COUNT(*) FROM audit_logs`).
		Scan(&t.TotalSavings, &t.TotalQueries)
	if err != nil {
		return Totals{}, fmt.Errorf("aggregating audit records: %w", err)
	}
	return t, nil
}

// List returns the most recent records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM audit_logs ORDER BY "timestamp" DESC, id LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}
	return records, nil
}

// Ping checks that the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging audit store: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (Record, error) {
	var (
		rec              Record
		ts               string
		entities, issues string
	)
	err := row.Scan(&rec.ID, &ts, &rec.Model, &rec.Savings, &rec.Verdict, &rec.Output,
		&rec.Status, &rec.Department, &rec.PIIScrubbed, &entities, &issues)
	if err != nil {
		return Record{}, err
	}
	parsed, err := time.Parse(sqliteTime, ts)
	if err != nil {
		return Record{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}
	rec.Timestamp = parsed
	rec.Entities = decodeList(entities)
	rec.Issues = decodeList(issues)
	return rec, nil
}
