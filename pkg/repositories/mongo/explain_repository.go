// Package mongo provides the MongoDB explain repository.
package mongo

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/repositories"
)

// Verbosity requested for every explain. Only executionStats reports the
// counters the classifier reads.
const Verbosity = "executionStats"

// Config holds the client settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Repository implements repositories.DocumentRepository over a driver client.
type Repository struct {
	client *mongo.Client
	db     *mongo.Database
	log    zerolog.Logger
}

var _ repositories.DocumentRepository = (*Repository)(nil)

// New connects and pings the primary. Any failure is a connectivity failure.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Repository, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).
			SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectivityFailure, "parse mongo uri")
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConnectivityFailure, "connect mongo")
	}

	r := &Repository{
		client: client,
		db:     client.Database(cfg.Database),
		log:    logger.With().Str("repo", "mongo").Logger(),
	}
	if err := r.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	r.log.Info().
		Strs("hosts", opts.Hosts).
		Str("database", cfg.Database).
		Msg("connected to mongo")
	return r, nil
}

// Explain runs {explain: command, verbosity: "executionStats"} against the
// configured database.
func (r *Repository) Explain(ctx context.Context, command bson.D) (bson.M, error) {
	name := ""
	if len(command) > 0 {
		name = command[0].Key
	}
	r.log.Debug().Str("command", name).Msg("explain")

	start := time.Now()
	var out bson.M
	err := r.db.RunCommand(ctx, bson.D{
		{Key: "explain", Value: command},
		{Key: "verbosity", Value: Verbosity},
	}).Decode(&out)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCaptureFailed, "mongo explain").
			WithDetail("command", name)
	}

	r.log.Debug().
		Int("keys", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("explain ok")
	return out, nil
}

// Ping verifies the primary is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, errors.CodeConnectivityFailure, "ping mongo")
	}
	return nil
}

// Close disconnects the client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
