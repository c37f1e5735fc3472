// Package benchmark captures explain output from both engines for each
// catalog query and reduces it to comparison records.
package benchmark

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TFMV/planbench/pkg/catalog"
	"github.com/TFMV/planbench/pkg/compare"
	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/explain"
	"github.com/TFMV/planbench/pkg/infrastructure/metrics"
	"github.com/TFMV/planbench/pkg/models"
	"github.com/TFMV/planbench/pkg/plan"
	"github.com/TFMV/planbench/pkg/report"
	"github.com/TFMV/planbench/pkg/repositories"
)

// DefaultQueryTimeout bounds each explain call.
const DefaultQueryTimeout = 5 * time.Minute

const (
	engineRelational = "relational"
	engineDocument   = "document"
)

// Result is the outcome of one run.
type Result struct {
	RunID     string                    `json:"run_id"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   time.Time                 `json:"end_time"`
	TotalTime time.Duration             `json:"total_time"`
	Records   []models.ComparisonRecord `json:"records"`
	Artifacts *report.Artifacts         `json:"-"`
	Skipped   []string                  `json:"skipped,omitempty"`
	Failures  []string                  `json:"failures,omitempty"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithQueryTimeout bounds each explain call. Non-positive values disable the bound.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes catalog queries against both engines, one at a time.
type Runner struct {
	relational repositories.RelationalRepository
	document   repositories.DocumentRepository
	catalog    *catalog.Registry
	metrics    metrics.Collector
	timeout    time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

// NewRunner creates a new benchmark runner.
func NewRunner(
	relational repositories.RelationalRepository,
	document repositories.DocumentRepository,
	registry *catalog.Registry,
	logger zerolog.Logger,
	opts ...Option,
) *Runner {
	r := &Runner{
		relational: relational,
		document:   document,
		catalog:    registry,
		metrics:    metrics.NewNoOpCollector(),
		timeout:    DefaultQueryTimeout,
		now:        time.Now,
		logger:     logger.With().Str("component", "benchmark").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckConnectivity pings both engines.
func (r *Runner) CheckConnectivity(ctx context.Context) error {
	if err := r.relational.Ping(ctx); err != nil {
		return asConnectivityError(err, "relational engine unreachable")
	}
	if err := r.document.Ping(ctx); err != nil {
		return asConnectivityError(err, "document engine unreachable")
	}
	return nil
}

// Run checks connectivity and then runs the named queries in order, or the
// whole catalog when names is empty. Only a connectivity failure or a
// cancelled context is returned as an error; per-query problems are logged
// and recorded in the result.
func (r *Runner) Run(ctx context.Context, names []string) (*Result, error) {
	if err := r.CheckConnectivity(ctx); err != nil {
		r.logger.Error().Err(err).Msg("Connectivity check failed, aborting run")
		return nil, err
	}

	result := &Result{
		RunID:     uuid.NewString(),
		StartTime: r.now(),
		Artifacts: report.NewArtifacts(),
	}
	log := r.logger.With().Str("run_id", result.RunID).Logger()

	queries, unknown := r.catalog.Select(names)
	for _, name := range unknown {
		err := errors.Wrapf(errors.ErrUnknownQuery, errors.CodeUnknownQuery, "query %q not in catalog", name)
		log.Warn().
			Err(err).
			Str("query", name).
			Str("code", errors.GetCode(err)).
			Msg("Unknown query, skipping")
		r.metrics.IncrementCounter(metrics.QueriesSkipped)
		result.Skipped = append(result.Skipped, name)
	}

	log.Info().
		Int("queries", len(queries)).
		Int("skipped", len(unknown)).
		Dur("timeout", r.timeout).
		Msg("Starting benchmark")

	var runErr error
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rec, ok := r.runQuery(ctx, log, q, result.Artifacts)
		if !ok {
			result.Failures = append(result.Failures, q.Name)
			continue
		}
		result.Records = append(result.Records, rec)
	}

	result.EndTime = r.now()
	result.TotalTime = result.EndTime.Sub(result.StartTime)

	log.Info().
		Int("records", len(result.Records)).
		Int("failures", len(result.Failures)).
		Int("skipped", len(result.Skipped)).
		Dur("total", result.TotalTime).
		Msg("Benchmark completed")
	return result, runErr
}

// runQuery captures and normalizes one query. It reports false when neither
// engine produced a plan: both captures failed, or the relational capture
// failed and the query has no document explain.
func (r *Runner) runQuery(ctx context.Context, logger zerolog.Logger, q catalog.Query, artifacts *report.Artifacts) (models.ComparisonRecord, bool) {
	log := logger.With().Str("query", q.Name).Logger()
	log.Info().Str("description", q.Description).Msg("Running benchmark")

	var (
		relMetric, docMetric models.NormalizedMetric
		relErr, docErr       string
	)

	rel := r.captureRelational(ctx, q)
	if rel.err != nil {
		relErr = rel.err.Error()
		r.captureFailed(log, engineRelational, rel.err)
		artifacts.AddRelational(q.Name, q.Description, errorMarker(relErr))
	} else {
		artifacts.AddRelational(q.Name, q.Description, rel.raw)
		relMetric = plan.Walk(rel.explain)
		switch {
		case rel.explain.Root == nil:
			r.ambiguous(log, engineRelational, "no plan root")
		case relMetric.IsEmpty():
			r.ambiguous(log, engineRelational, "plan matched, fields absent")
		}
	}

	doc := r.captureDocument(ctx, q)
	switch {
	case doc.err != nil:
		docErr = doc.err.Error()
		r.captureFailed(log, engineDocument, doc.err)
		artifacts.AddDocument(q.Name, q.Description, errorMarker(docErr))
	case doc.missing:
		log.Warn().Msg("No document explain defined for query")
		artifacts.AddDocument(q.Name, q.Description, doc.raw)
	default:
		artifacts.AddDocument(q.Name, q.Description, doc.raw)
		variant := explain.Classify(doc.raw)
		log.Debug().Stringer("shape", variant.Kind()).Msg("Classified document explain")
		docMetric = variant.Metric()
		switch {
		case variant.Kind() == explain.KindUnrecognized:
			r.ambiguous(log, engineDocument, "unrecognized explain shape")
		case docMetric.IsEmpty():
			r.ambiguous(log, engineDocument, "shape matched, fields absent")
		}
	}

	if rel.err != nil && (doc.err != nil || doc.missing) {
		log.Warn().Msg("No engine produced a plan, no comparison record")
		return models.ComparisonRecord{}, false
	}

	rec := compare.Unify(q.Name, q.Description, relMetric, docMetric)
	rec.RelationalError = relErr
	rec.DocumentError = docErr
	r.recordMetrics(rec)

	event := log.Info().Stringer("faster", rec.FasterEngine)
	if rec.SpeedupFactor != nil {
		event = event.Float64("speedup", *rec.SpeedupFactor)
	}
	event.Msg("Query completed")
	return rec, true
}

func (r *Runner) captureRelational(ctx context.Context, q catalog.Query) relationalCapture {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	timer := r.metrics.StartTimer(metrics.CaptureDuration, "engine", engineRelational)
	defer timer.Stop()
	return captureRelational(ctx, q, r.relational)
}

func (r *Runner) captureDocument(ctx context.Context, q catalog.Query) documentCapture {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	timer := r.metrics.StartTimer(metrics.CaptureDuration, "engine", engineDocument)
	defer timer.Stop()
	return captureDocument(ctx, q, r.document)
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

func (r *Runner) captureFailed(log zerolog.Logger, engine string, err error) {
	log.Warn().
		Err(err).
		Str("engine", engine).
		Str("code", errors.GetCode(err)).
		Msg("Capture failed, recording error marker")
	r.metrics.IncrementCounter(metrics.CaptureFailures, "engine", engine)
}

func (r *Runner) ambiguous(log zerolog.Logger, engine, reason string) {
	log.Warn().
		Str("engine", engine).
		Str("code", errors.CodeExtractionAmbiguity).
		Str("reason", reason).
		Msg("Explain output ambiguous, metrics unavailable")
	r.metrics.IncrementCounter(metrics.ExtractionAmbiguous, "engine", engine)
}

func (r *Runner) recordMetrics(rec models.ComparisonRecord) {
	r.metrics.IncrementCounter(metrics.RecordsProduced)
	if t := rec.Relational.ExecutionTimeMs; t != nil {
		r.metrics.RecordGauge(metrics.ExecutionTimeMs, *t, "query", rec.QueryName, "engine", engineRelational)
	}
	if t := rec.Document.ExecutionTimeMs; t != nil {
		r.metrics.RecordGauge(metrics.ExecutionTimeMs, *t, "query", rec.QueryName, "engine", engineDocument)
	}
	if rec.SpeedupFactor != nil {
		r.metrics.RecordGauge(metrics.SpeedupFactor, *rec.SpeedupFactor, "query", rec.QueryName)
	}
}

func asConnectivityError(err error, message string) error {
	if errors.IsConnectivityFailure(err) {
		return err
	}
	return errors.Wrap(err, errors.CodeConnectivityFailure, message)
}
