// Package models provides the engine-agnostic data structures shared by planbench.
package models

import (
	"encoding/json"
	"fmt"
)

// NormalizedMetric is one engine's reduced explain output. Every field is
// independently optional; nil means no signal was found.
type NormalizedMetric struct {
	ExecutionTimeMs *float64 `json:"execution_time_ms"`
	RowsReturned    *int64   `json:"rows_returned"`
	RowsExamined    *int64   `json:"rows_examined"`
}

// IsEmpty reports whether no field was extracted.
func (m NormalizedMetric) IsEmpty() bool {
	return m.ExecutionTimeMs == nil && m.RowsReturned == nil && m.RowsExamined == nil
}

// Engine identifies the engine a verdict points at.
type Engine int

const (
	EngineUnknown Engine = iota
	EngineRelational
	EngineDocument
)

// String returns the string representation of the engine.
func (e Engine) String() string {
	switch e {
	case EngineRelational:
		return "relational"
	case EngineDocument:
		return "document"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Engine) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Engine) UnmarshalText(text []byte) error {
	switch string(text) {
	case "relational":
		*e = EngineRelational
	case "document":
		*e = EngineDocument
	case "unknown", "":
		*e = EngineUnknown
	default:
		return fmt.Errorf("unknown engine %q", string(text))
	}
	return nil
}

// ComparisonRecord pairs both engines' metrics for one query with a speed verdict.
type ComparisonRecord struct {
	QueryName       string           `json:"query_name"`
	Description     string           `json:"description"`
	Relational      NormalizedMetric `json:"relational"`
	Document        NormalizedMetric `json:"document"`
	FasterEngine    Engine           `json:"faster_engine"`
	SpeedupFactor   *float64         `json:"speedup_factor"`
	RelationalError string           `json:"relational_error,omitempty"`
	DocumentError   string           `json:"document_error,omitempty"`
}

// String renders the record as compact JSON for log lines.
func (r ComparisonRecord) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return r.QueryName
	}
	return string(b)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}
