// Package catalog holds the named queries a benchmark run can execute.
//
// A Query pairs a relational and a document explainer for logically
// equivalent work. Explainers are opaque callables over an engine handle; the
// runner only looks at what they return.
package catalog

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/TFMV/planbench/pkg/repositories"
)

// RelationalExplainer returns the relational engine's raw EXPLAIN JSON.
type RelationalExplainer func(ctx context.Context, repo repositories.RelationalRepository) ([]byte, error)

// DocumentExplainer returns the document engine's raw explain reply.
type DocumentExplainer func(ctx context.Context, repo repositories.DocumentRepository) (bson.M, error)

// Query is one catalog entry. Document may be nil.
type Query struct {
	Name        string
	Description string
	Relational  RelationalExplainer
	Document    DocumentExplainer
}

// Registry is an ordered, immutable set of queries keyed by name.
type Registry struct {
	queries []Query
	index   map[string]int
}

// New builds a registry. Names must be unique and non-empty and every query
// needs a relational explainer.
func New(queries ...Query) (*Registry, error) {
	r := &Registry{
		queries: make([]Query, 0, len(queries)),
		index:   make(map[string]int, len(queries)),
	}
	for _, q := range queries {
		if q.Name == "" {
			return nil, fmt.Errorf("catalog: query with empty name")
		}
		if q.Relational == nil {
			return nil, fmt.Errorf("catalog: query %q has no relational explainer", q.Name)
		}
		if _, dup := r.index[q.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate query %q", q.Name)
		}
		r.index[q.Name] = len(r.queries)
		r.queries = append(r.queries, q)
	}
	return r, nil
}

// MustNew is New that panics on error. Use it for statically known catalogs.
func MustNew(queries ...Query) *Registry {
	r, err := New(queries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the query named name.
func (r *Registry) Get(name string) (Query, bool) {
	i, ok := r.index[name]
	if !ok {
		return Query{}, false
	}
	return r.queries[i], true
}

// Len returns the number of queries.
func (r *Registry) Len() int {
	return len(r.queries)
}

// All returns the queries in catalog order.
func (r *Registry) All() []Query {
	out := make([]Query, len(r.queries))
	copy(out, r.queries)
	return out
}

// Names returns the query names in catalog order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.queries))
	for i, q := range r.queries {
		names[i] = q.Name
	}
	return names
}

// Select resolves requested names in request order. Repeated names are kept
// once. Names the catalog does not hold are returned separately, also once.
// An empty request selects the whole catalog.
func (r *Registry) Select(names []string) (selected []Query, unknown []string) {
	if len(names) == 0 {
		return r.All(), nil
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		if seen.Contains(name) {
			continue
		}
		seen.Add(name)

		q, ok := r.Get(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, q)
	}
	return selected, unknown
}

// SQL returns an explainer that runs query with args under EXPLAIN ANALYZE.
func SQL(query string, args ...any) RelationalExplainer {
	return func(ctx context.Context, repo repositories.RelationalRepository) ([]byte, error) {
		return repo.ExplainAnalyze(ctx, query, args...)
	}
}

// Find returns an explainer for a find command. A zero limit means no limit
// and a nil projection returns whole documents.
func Find(collection string, filter, projection any, limit int64) DocumentExplainer {
	cmd := bson.D{{Key: "find", Value: collection}}
	if filter != nil {
		cmd = append(cmd, bson.E{Key: "filter", Value: filter})
	}
	if projection != nil {
		cmd = append(cmd, bson.E{Key: "projection", Value: projection})
	}
	if limit > 0 {
		cmd = append(cmd, bson.E{Key: "limit", Value: limit})
	}
	return command(cmd)
}

// Aggregate returns an explainer for an aggregate command.
func Aggregate(collection string, pipeline any) DocumentExplainer {
	return command(bson.D{
		{Key: "aggregate", Value: collection},
		{Key: "pipeline", Value: pipeline},
		{Key: "cursor", Value: bson.D{}},
	})
}

func command(cmd bson.D) DocumentExplainer {
	return func(ctx context.Context, repo repositories.DocumentRepository) (bson.M, error) {
		return repo.Explain(ctx, cmd)
	}
}
