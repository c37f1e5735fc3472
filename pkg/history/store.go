// Package history keeps an append-only DuckDB table of comparison records
// across benchmark runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rs/zerolog"

	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/models"
)

// DefaultLimit bounds List when no limit is given.
const DefaultLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS comparison_history (
	run_id              VARCHAR   NOT NULL,
	recorded_at         TIMESTAMP NOT NULL,
	query_name          VARCHAR   NOT NULL,
	description         VARCHAR,
	pg_time_ms          DOUBLE,
	pg_rows_returned    BIGINT,
	pg_rows_examined    BIGINT,
	mongo_time_ms       DOUBLE,
	mongo_rows_returned BIGINT,
	mongo_rows_examined BIGINT,
	faster_engine       VARCHAR   NOT NULL,
	speedup_factor      DOUBLE,
	pg_error            VARCHAR,
	mongo_error         VARCHAR
)`

const insertRecord = `
INSERT INTO comparison_history (
	run_id, recorded_at, query_name, description,
	pg_time_ms, pg_rows_returned, pg_rows_examined,
	mongo_time_ms, mongo_rows_returned, mongo_rows_examined,
	faster_engine, speedup_factor, pg_error, mongo_error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectRecords = `
SELECT run_id, recorded_at, query_name, description,
       pg_time_ms, pg_rows_returned, pg_rows_examined,
       mongo_time_ms, mongo_rows_returned, mongo_rows_examined,
       faster_engine, speedup_factor, pg_error, mongo_error
FROM   comparison_history
WHERE  (? = '' OR query_name = ?)
ORDER  BY recorded_at DESC, query_name
LIMIT  %d`

// Entry is one stored comparison record.
type Entry struct {
	RunID      string    `json:"run_id"`
	RecordedAt time.Time `json:"recorded_at"`
	models.ComparisonRecord
}

// Store is the history table in a DuckDB database file.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens or creates the database at path and ensures the table exists.
// An empty path opens an in-memory database.
func Open(ctx context.Context, path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePersistFailed, "open history database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodePersistFailed, "ping history database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.CodePersistFailed, "create history table")
	}

	return &Store{
		db:  db,
		log: logger.With().Str("component", "history").Str("path", path).Logger(),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores records under runID in one transaction.
func (s *Store) Append(ctx context.Context, runID string, at time.Time, records []models.ComparisonRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "begin history transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertRecord)
	if err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "prepare history insert")
	}
	defer stmt.Close()

	at = at.UTC()
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			runID, at, r.QueryName, r.Description,
			nullFloat(r.Relational.ExecutionTimeMs),
			nullInt(r.Relational.RowsReturned),
			nullInt(r.Relational.RowsExamined),
			nullFloat(r.Document.ExecutionTimeMs),
			nullInt(r.Document.RowsReturned),
			nullInt(r.Document.RowsExamined),
			r.FasterEngine.String(),
			nullFloat(r.SpeedupFactor),
			nullString(r.RelationalError),
			nullString(r.DocumentError),
		)
		if err != nil {
			return errors.Wrapf(err, errors.CodePersistFailed, "insert history record %s", r.QueryName)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodePersistFailed, "commit history")
	}

	s.log.Debug().
		Str("run_id", runID).
		Int("records", len(records)).
		Msg("history appended")
	return nil
}

// List returns the most recent entries, newest first. An empty queryName
// matches every query; a non-positive limit means DefaultLimit.
func (s *Store) List(ctx context.Context, queryName string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(selectRecords, limit), queryName, queryName)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePersistFailed, "query history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodePersistFailed, "read history")
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                                 Entry
		description, faster, pgErr, mgErr sql.NullString
		pgTime, mgTime, speedup           sql.NullFloat64
		pgRet, pgExam, mgRet, mgExam      sql.NullInt64
	)
	if err := rows.Scan(
		&e.RunID, &e.RecordedAt, &e.QueryName, &description,
		&pgTime, &pgRet, &pgExam,
		&mgTime, &mgRet, &mgExam,
		&faster, &speedup, &pgErr, &mgErr,
	); err != nil {
		return Entry{}, errors.Wrap(err, errors.CodePersistFailed, "scan history row")
	}

	e.Description = description.String
	e.Relational = models.NormalizedMetric{
		ExecutionTimeMs: floatPtr(pgTime),
		RowsReturned:    intPtr(pgRet),
		RowsExamined:    intPtr(pgExam),
	}
	e.Document = models.NormalizedMetric{
		ExecutionTimeMs: floatPtr(mgTime),
		RowsReturned:    intPtr(mgRet),
		RowsExamined:    intPtr(mgExam),
	}
	if err := e.FasterEngine.UnmarshalText([]byte(faster.String)); err != nil {
		return Entry{}, errors.Wrapf(err, errors.CodePersistFailed, "decode engine for %s", e.QueryName)
	}
	e.SpeedupFactor = floatPtr(speedup)
	e.RelationalError = pgErr.String
	e.DocumentError = mgErr.String
	return e, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float64(v.Float64)
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return models.Int64(v.Int64)
}
