package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/airlock/internal/platform/database"
)

// PostgresStore keeps audit records in Postgres.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a store over db (a pool or a transaction).
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			"timestamp" TIMESTAMPTZ NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			savings DOUBLE PRECISION NOT NULL DEFAULT 0,
			verdict TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			pii_scrubbed BOOLEAN NOT NULL DEFAULT FALSE,
			entities TEXT NOT NULL DEFAULT '[]',
			issues TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS audit_logs_timestamp_idx ON audit_logs ("timestamp" DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating audit schema: %w", err)
		}
	}
	return nil
}

// Insert writes rec once. A second insert with the same ID is rejected with
// ErrDuplicate and leaves the first row untouched.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	entities, issues, err := encodeLists(rec)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Timestamp.UTC(), rec.Model, rec.Savings, rec.Verdict, rec.Output,
		rec.Status, rec.Department, rec.PIIScrubbed, entities, issues,
	)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicate, rec.ID)
	}
	return nil
}

// Get returns the record for id or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM audit_logs WHERE id = $1`, id)
	rec, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("getting audit record: %w", err)
	}
	return rec, nil
}

// Totals sums savings and counts records.
func (s *PostgresStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(savings), 0), COUNT(*) FROM audit_logs`).
		Scan(&t.TotalSavings, &t.TotalQueries)
	if err != nil {
		return Totals{}, fmt.Errorf("aggregating audit records: %w", err)
	}
	return t, nil
}

// List returns the most recent records, newest first.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+recordColumns+` FROM audit_logs ORDER BY "timestamp" DESC, id LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanPostgres(rows)
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
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("pinging audit store: %w", err)
	}
	return nil
}

func scanPostgres(row pgx.Row) (Record, error) {
	var (
		rec              Record
		ts               time.Time
		entities, issues string
	)
	err := row.Scan(&rec.ID, &ts, &rec.Model, &rec.Savings, &rec.Verdict, &rec.Output,
		&rec.Status, &rec.Department, &rec.PIIScrubbed, &entities, &issues)
	if err != nil {
		return Record{}, err
	}
	rec.Timestamp = ts.UTC()
	rec.Entities = decodeList(entities)
	rec.Issues = decodeList(issues)
	return rec, nil
}
