// Package report persists raw explain artifacts and renders comparison summaries.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/TFMV/planbench/pkg/errors"
)

const (
	DefaultRelationalFile = "postgres_explain_results.json"
	DefaultDocumentFile   = "mongo_explain_results.json"
	DefaultResultsDir     = "results"

	timestampLayout = "20060102_150405"
	latestPrefix    = "latest_"
)

// Entry is one query's raw, un-normalized explain output.
type Entry struct {
	Description   string `json:"description"`
	ExplainResult any    `json:"explain_result"`
}

// Artifacts collects raw explain output per engine, keyed by query name.
type Artifacts struct {
	Relational map[string]Entry
	Document   map[string]Entry
}

// NewArtifacts creates an empty set of artifacts.
func NewArtifacts() *Artifacts {
	return &Artifacts{
		Relational: make(map[string]Entry),
		Document:   make(map[string]Entry),
	}
}

// AddRelational records the relational engine's raw output for a query.
func (a *Artifacts) AddRelational(name, description string, raw any) {
	a.Relational[name] = Entry{Description: description, ExplainResult: raw}
}

// AddDocument records the document engine's raw output for a query.
func (a *Artifacts) AddDocument(name, description string, raw any) {
	a.Document[name] = Entry{Description: description, ExplainResult: raw}
}

// Len returns the number of queries with at least one entry.
func (a *Artifacts) Len() int {
	n := len(a.Relational)
	for name := range a.Document {
		if _, ok := a.Relational[name]; !ok {
			n++
		}
	}
	return n
}

// ArtifactWriter writes one JSON file per engine into Dir.
//
// With Timestamped set, each run writes <base>_<YYYYmmdd_HHMMSS>.json, which
// accumulates as history, and overwrites latest_<file>. Otherwise <file> is
// written directly and overwritten every run.
type ArtifactWriter struct {
	Dir            string
	RelationalFile string
	DocumentFile   string
	Timestamped    bool
	Now            func() time.Time
	Encoder        *Encoder
}

// NewArtifactWriter creates a writer with the default filenames.
func NewArtifactWriter(dir string, timestamped bool, logger zerolog.Logger) *ArtifactWriter {
	return &ArtifactWriter{
		Dir:            dir,
		RelationalFile: DefaultRelationalFile,
		DocumentFile:   DefaultDocumentFile,
		Timestamped:    timestamped,
		Now:            time.Now,
		Encoder:        NewEncoder(logger),
	}
}

// Write persists a and returns the paths written, relational first.
func (w *ArtifactWriter) Write(a *Artifacts) ([]string, error) {
	if err := os.MkdirAll(w.dir(), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.CodePersistFailed, "create results directory")
	}

	relational, err := w.marshal(a.Relational)
	if err != nil {
		return nil, err
	}
	document, err := w.marshal(a.Document)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, f := range []struct {
		file string
		data []byte
	}{
		{w.relationalFile(), relational},
		{w.documentFile(), document},
	} {
		written, err := w.writeFile(f.file, f.data)
		if err != nil {
			return paths, err
		}
		paths = append(paths, written...)
	}
	return paths, nil
}

func (w *ArtifactWriter) writeFile(file string, data []byte) ([]string, error) {
	names := []string{file}
	if w.Timestamped {
		ext := filepath.Ext(file)
		stamp := w.now().Format(timestampLayout)
		names = []string{
			strings.TrimSuffix(file, ext) + "_" + stamp + ".json",
			latestPrefix + filepath.Base(file),
		}
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(w.dir(), name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, errors.Wrapf(err, errors.CodePersistFailed, "write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *ArtifactWriter) marshal(entries map[string]Entry) ([]byte, error) {
	enc := w.Encoder
	if enc == nil {
		enc = NewEncoder(zerolog.Nop())
	}

	out := make(map[string]Entry, len(entries))
	for name, e := range entries {
		out[name] = Entry{Description: e.Description, ExplainResult: enc.Encode(e.ExplainResult)}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodePersistFailed, "marshal artifact")
	}
	return append(data, '\n'), nil
}

func (w *ArtifactWriter) dir() string {
	if w.Dir == "" {
		return DefaultResultsDir
	}
	return w.Dir
}

func (w *ArtifactWriter) relationalFile() string {
	if w.RelationalFile == "" {
		return DefaultRelationalFile
	}
	return w.RelationalFile
}

func (w *ArtifactWriter) documentFile() string {
	if w.DocumentFile == "" {
		return DefaultDocumentFile
	}
	return w.DocumentFile
}

func (w *ArtifactWriter) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}
