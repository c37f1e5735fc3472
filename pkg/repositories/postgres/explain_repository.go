// Package postgres provides the PostgreSQL explain repository.
package postgres

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/repositories"
)

const explainPrefix = "EXPLAIN (ANALYZE, FORMAT JSON) "

// Config holds the pool settings.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Repository implements repositories.RelationalRepository over a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

var _ repositories.RelationalRepository = (*Repository)(nil)

// New opens a pool and pings the server. Any failure is a connectivity failure.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectivityFailure, "parse postgres dsn")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectivityFailure, "create postgres pool")
	}

	r := &Repository{
		pool: pool,
		log:  logger.With().Str("repo", "postgres").Logger(),
	}
	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	r.log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Uint16("port", poolConfig.ConnConfig.Port).
		Str("database", poolConfig.ConnConfig.Database).
		Msg("connected to postgres")
	return r, nil
}

// ExplainAnalyze executes query under EXPLAIN (ANALYZE, FORMAT JSON). The
// statement really runs, so data-modifying queries take effect.
func (r *Repository) ExplainAnalyze(ctx context.Context, query string, args ...any) ([]byte, error) {
	r.log.Debug().
		Str("sql", truncate(query, 120)).
		Int("args", len(args)).
		Msg("explain analyze")

	start := time.Now()
	var raw []byte
	if err := r.pool.QueryRow(ctx, explainPrefix+query, args...).Scan(&raw); err != nil {
		return nil, errors.Wrap(err, errors.CodeCaptureFailed, "postgres explain").
			WithDetail("sql", truncate(query, 120))
	}

	r.log.Debug().
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("explain ok")
	return raw, nil
}

// Ping verifies the server is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, errors.CodeConnectivityFailure, "ping postgres")
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() {
	r.pool.Close()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
