package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type recordingRelational struct {
	query string
	args  []any
}

func (r *recordingRelational) ExplainAnalyze(_ context.Context, query string, args ...any) ([]byte, error) {
	r.query, r.args = query, args
	return []byte(`[]`), nil
}
func (r *recordingRelational) Ping(context.Context) error { return nil }
func (r *recordingRelational) Close()                     {}

type recordingDocument struct {
	command bson.D
}

func (d *recordingDocument) Explain(_ context.Context, command bson.D) (bson.M, error) {
	d.command = command
	return bson.M{"ok": 1.0}, nil
}
func (d *recordingDocument) Ping(context.Context) error  { return nil }
func (d *recordingDocument) Close(context.Context) error { return nil }

func noopSQL() RelationalExplainer { return SQL("SELECT 1") }

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		queries []Query
		wantErr string
	}{
		{"empty name", []Query{{Relational: noopSQL()}}, "empty name"},
		{"no relational", []Query{{Name: "q"}}, "no relational explainer"},
		{"duplicate", []Query{{Name: "q", Relational: noopSQL()}, {Name: "q", Relational: noopSQL()}}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.queries...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Panics(t, func() { MustNew(Query{Name: "q"}) })
}

func TestRegistry_Lookup(t *testing.T) {
	r := MustNew(
		Query{Name: "b", Description: "second", Relational: noopSQL()},
		Query{Name: "a", Description: "first", Relational: noopSQL()},
	)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"b", "a"}, r.Names())

	q, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", q.Description)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	all := r.All()
	all[0].Name = "mutated"
	assert.Equal(t, []string{"b", "a"}, r.Names())
}

func TestRegistry_Select(t *testing.T) {
	r := MustNew(
		Query{Name: "a", Relational: noopSQL()},
		Query{Name: "b", Relational: noopSQL()},
		Query{Name: "c", Relational: noopSQL()},
	)

	tests := []struct {
		name        string
		request     []string
		wantNames   []string
		wantUnknown []string
	}{
		{"empty selects all", nil, []string{"a", "b", "c"}, nil},
		{"request order kept", []string{"c", "a"}, []string{"c", "a"}, nil},
		{"duplicates collapsed", []string{"b", "b", "a", "b"}, []string{"b", "a"}, nil},
		{"unknown reported once", []string{"x", "a", "x"}, []string{"a"}, []string{"x"}},
		{"only unknown", []string{"nope"}, nil, []string{"nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			selected, unknown := r.Select(tt.request)
			var names []string
			for _, q := range selected {
				names = append(names, q.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantUnknown, unknown)
		})
	}
}

func TestSQL(t *testing.T) {
	repo := &recordingRelational{}
	_, err := SQL("SELECT * FROM t WHERE a = $1", 7)(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1", repo.query)
	assert.Equal(t, []any{7}, repo.args)
}

func TestFind(t *testing.T) {
	repo := &recordingDocument{}
	_, err := Find("businesses", bson.D{{Key: "city", Value: "Berkeley"}}, nil, 100)(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, bson.D{
		{Key: "find", Value: "businesses"},
		{Key: "filter", Value: bson.D{{Key: "city", Value: "Berkeley"}}},
		{Key: "limit", Value: int64(100)},
	}, repo.command)

	_, err = Find("businesses", nil, nil, 0)(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "find", Value: "businesses"}}, repo.command)
}

func TestAggregate(t *testing.T) {
	repo := &recordingDocument{}
	pipeline := bson.A{bson.D{{Key: "$match", Value: bson.D{}}}}
	_, err := Aggregate("reviews", pipeline)(context.Background(), repo)
	require.NoError(t, err)
	require.Len(t, repo.command, 3)
	assert.Equal(t, "aggregate", repo.command[0].Key)
	assert.Equal(t, "reviews", repo.command[0].Value)
	assert.Equal(t, pipeline, repo.command[1].Value)
	assert.Equal(t, bson.E{Key: "cursor", Value: bson.D{}}, repo.command[2])
}

func TestDefault(t *testing.T) {
	r := Default()
	require.Greater(t, r.Len(), 0)
	assert.Equal(t, "business_by_city", r.Names()[0])

	for _, q := range r.All() {
		assert.NotEmpty(t, q.Description, q.Name)
		assert.NotNil(t, q.Relational, q.Name)
		assert.NotNil(t, q.Document, q.Name)
	}

	q, _ := r.Get("business_by_city")
	rel := &recordingRelational{}
	_, err := q.Relational(context.Background(), rel)
	require.NoError(t, err)
	assert.Contains(t, rel.query, "WHERE city = $1")
	assert.Equal(t, []any{"Berkeley"}, rel.args)

	doc := &recordingDocument{}
	_, err = q.Document(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "find", doc.command[0].Key)
}
