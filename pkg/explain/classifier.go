// Package explain classifies MongoDB explain output into a closed set of shapes
// and extracts a NormalizedMetric from each.
//
// MongoDB reports execution statistics in different places depending on the
// command (find vs aggregate) and the server version. Classify evaluates an
// ordered list of structural predicates once and returns the first variant
// that matches; Metric on that variant reads the statistics from the
// variant-specific location. Nothing here returns an error or panics: absent or
// ill-typed fields come back as nil metric fields.
package explain

import (
	"github.com/TFMV/planbench/pkg/models"
)

// Explain document keys.
const (
	keyExecutionStats      = "executionStats"
	keyExplainVersion      = "explainVersion"
	keyStages              = "stages"
	keyOK                  = "ok"
	keyCursor              = "$cursor"
	keyCursorAlt           = "cursor"
	keyExecutionTimeMillis = "executionTimeMillis"
	keyNReturned           = "nReturned"
	keyTotalDocsExamined   = "totalDocsExamined"
)

// Kind tags the shape of an explain document.
type Kind int

const (
	KindUnrecognized       Kind = iota
	KindClassic                 // top-level executionStats (find, count, distinct)
	KindAggregateStages         // ok + stages, no explainVersion
	KindAggregateVersioned      // explainVersion + stages with a $cursor stage
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindClassic:
		return "classic"
	case KindAggregateStages:
		return "aggregate_stages"
	case KindAggregateVersioned:
		return "aggregate_versioned"
	default:
		return "unrecognized"
	}
}

// Variant is a classified explain document.
type Variant interface {
	Kind() Kind
	Metric() models.NormalizedMetric
}

// Classic holds the top-level executionStats document.
type Classic struct {
	Stats Document
}

// Kind implements Variant.
func (Classic) Kind() Kind { return KindClassic }

// Metric reads time, returned and examined straight from executionStats.
func (c Classic) Metric() models.NormalizedMetric {
	return statsMetric(c.Stats)
}

// AggregateStages is an aggregate explain without an explainVersion. Stats is
// an optional top-level executionStats document. Classify never fills it: a
// document carrying executionStats is Classic, since that predicate runs
// first. Stats is only set on variants built directly.
type AggregateStages struct {
	Stages []interface{}
	Stats  Document
}

// Kind implements Variant.
func (AggregateStages) Kind() Kind { return KindAggregateStages }

// Metric takes RowsReturned from the final stage, whose output cardinality is
// the pipeline's. Fields present in Stats take precedence; that branch is not
// reachable through Classify.
func (a AggregateStages) Metric() models.NormalizedMetric {
	var m models.NormalizedMetric
	if last, ok := lastStage(a.Stages); ok {
		m.RowsReturned = toInt64(last[keyNReturned])
	}
	if a.Stats == nil {
		return m
	}

	stats := statsMetric(a.Stats)
	if stats.ExecutionTimeMs != nil {
		m.ExecutionTimeMs = stats.ExecutionTimeMs
	}
	if stats.RowsReturned != nil {
		m.RowsReturned = stats.RowsReturned
	}
	if stats.RowsExamined != nil {
		m.RowsExamined = stats.RowsExamined
	}
	return m
}

// AggregateVersioned is an aggregate explain carrying explainVersion.
type AggregateVersioned struct {
	Stages []interface{}
}

// Kind implements Variant.
func (AggregateVersioned) Kind() Kind { return KindAggregateVersioned }

// Metric reads the first stage whose cursor sub-document has its own
// executionStats; later stages are not summed. RowsReturned is then replaced
// by the final stage's nReturned when the final stage reports one.
//
// The mixed provenance matches the pipelines we benchmark (a $cursor stage
// followed by transforming stages) and is kept as a special case.
func (a AggregateVersioned) Metric() models.NormalizedMetric {
	var m models.NormalizedMetric
	for _, s := range a.Stages {
		stage, ok := asDocument(s)
		if !ok {
			continue
		}
		if stats, ok := cursorStats(stage); ok {
			m = statsMetric(stats)
			break
		}
	}

	if last, ok := lastStage(a.Stages); ok {
		if n := toInt64(last[keyNReturned]); n != nil {
			m.RowsReturned = n
		}
	}
	return m
}

// Unrecognized is returned when no predicate matched.
type Unrecognized struct{}

// Kind implements Variant.
func (Unrecognized) Kind() Kind { return KindUnrecognized }

// Metric returns an empty metric.
func (Unrecognized) Metric() models.NormalizedMetric { return models.NormalizedMetric{} }

// predicate matches one shape. Order matters: the first match wins, so a
// document that satisfies two predicates is only ever extracted once.
type predicate func(doc Document) (Variant, bool)

var predicates = []predicate{
	matchClassic,
	matchAggregateStages,
	matchAggregateVersioned,
}

// Classify returns the variant of doc. A nil or empty document is Unrecognized.
func Classify(doc Document) Variant {
	if len(doc) == 0 {
		return Unrecognized{}
	}
	for _, match := range predicates {
		if v, ok := match(doc); ok {
			return v
		}
	}
	return Unrecognized{}
}

// Extract classifies doc and returns its metric.
func Extract(doc Document) models.NormalizedMetric {
	return Classify(doc).Metric()
}

func matchClassic(doc Document) (Variant, bool) {
	stats, ok := asDocument(doc[keyExecutionStats])
	if !ok {
		return nil, false
	}
	return Classic{Stats: stats}, true
}

func matchAggregateStages(doc Document) (Variant, bool) {
	if _, versioned := doc[keyExplainVersion]; versioned {
		return nil, false
	}
	if !isOK(doc[keyOK]) {
		return nil, false
	}
	stages, ok := asArray(doc[keyStages])
	if !ok {
		return nil, false
	}
	return AggregateStages{Stages: stages}, true
}

func matchAggregateVersioned(doc Document) (Variant, bool) {
	if _, versioned := doc[keyExplainVersion]; !versioned {
		return nil, false
	}
	stages, _ := asArray(doc[keyStages])
	return AggregateVersioned{Stages: stages}, true
}

func statsMetric(stats Document) models.NormalizedMetric {
	if stats == nil {
		return models.NormalizedMetric{}
	}
	return models.NormalizedMetric{
		ExecutionTimeMs: toFloat64(stats[keyExecutionTimeMillis]),
		RowsReturned:    toInt64(stats[keyNReturned]),
		RowsExamined:    toInt64(stats[keyTotalDocsExamined]),
	}
}

func cursorStats(stage Document) (Document, bool) {
	for _, key := range []string{keyCursor, keyCursorAlt} {
		cursor, ok := asDocument(stage[key])
		if !ok {
			continue
		}
		if stats, ok := asDocument(cursor[keyExecutionStats]); ok {
			return stats, true
		}
	}
	return nil, false
}

func lastStage(stages []interface{}) (Document, bool) {
	if len(stages) == 0 {
		return nil, false
	}
	return asDocument(stages[len(stages)-1])
}
