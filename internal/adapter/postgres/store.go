// Package postgres persists score records in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/lib/pq"

	"github.com/couchcryptid/fcst-verif-service/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS score_records (
	id           TEXT PRIMARY KEY,
	metric       TEXT NOT NULL,
	variable     TEXT NOT NULL,
	region       TEXT NOT NULL,
	init_month   INTEGER NOT NULL,
	target_month INTEGER NOT NULL,
	lead         INTEGER NOT NULL,
	member       INTEGER,
	category     TEXT,
	value        DOUBLE PRECISION,
	generated_at TIMESTAMPTZ NOT NULL
)`

const insertRecord = `INSERT INTO score_records
	(id, metric, variable, region, init_month, target_month, lead, member, category, value, generated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

// Store writes score records idempotently, keyed by record ID.
// It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at url and makes sure the table exists.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", describe(err))
	}
	s := &Store{db: db, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the score table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create score_records: %w", describe(err))
	}
	return nil
}

func (s *Store) Name() string { return "postgres" }

// Write inserts every record of the report in one transaction. Records
// already present are left untouched.
func (s *Store) Write(ctx context.Context, r *domain.Report) error {
	records := r.Records()
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", describe(err))
	}
	defer stmt.Close()

	inserted := int64(0)
	for i := range records {
		res, err := stmt.ExecContext(ctx, recordArgs(records[i])...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", records[i].ID, describe(err))
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", describe(err))
	}

	s.logger.Debug("score records stored",
		"variable", r.Variable, "init", r.Init.YYYYMM(),
		"count", len(records), "inserted", inserted)
	return nil
}

// Count returns how many records are stored for a variable and init.
func (s *Store) Count(ctx context.Context, variable string, init domain.Month) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM score_records WHERE variable = $1 AND init_month = $2`,
		variable, init.Int(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", describe(err))
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// recordArgs maps a record onto the insert placeholders. Missing member,
// category and non-finite values become NULL.
func recordArgs(rec domain.ScoreRecord) []any {
	var member sql.NullInt64
	if rec.Member != nil {
		member = sql.NullInt64{Int64: int64(*rec.Member), Valid: true}
	}
	category := sql.NullString{String: rec.Category, Valid: rec.Category != ""}
	v := float64(rec.Value)
	value := sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v) && !math.IsInf(v, 0)}

	return []any{
		rec.ID, rec.Metric, rec.Variable, rec.Region,
		rec.Init.Int(), rec.Target.Int(), rec.Lead,
		member, category, value, rec.GeneratedAt,
	}
}

// describe adds the PostgreSQL condition name to server errors.
func describe(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
