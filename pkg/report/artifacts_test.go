package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
}

func sampleArtifacts() *Artifacts {
	a := NewArtifacts()
	a.AddRelational("business_by_city", "Find businesses in a specific city", []any{
		map[string]any{"Plan": map[string]any{"Node Type": "Seq Scan"}, "Execution Time": 1.5},
	})
	a.AddDocument("business_by_city", "Find businesses in a specific city", bson.M{
		"executionStats": bson.M{"nReturned": int32(4)},
		"filter":         primitive.Regex{Pattern: "^a.*", Options: "i"},
	})
	return a
}

func readJSON(t *testing.T, path string) map[string]Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]Entry
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestArtifactWriter_Timestamped(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	w := NewArtifactWriter(dir, true, zerolog.New(zerolog.NewTestWriter(t)))
	w.Now = fixedNow

	paths, err := w.Write(sampleArtifacts())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "postgres_explain_results_20250607_080910.json"),
		filepath.Join(dir, "latest_postgres_explain_results.json"),
		filepath.Join(dir, "mongo_explain_results_20250607_080910.json"),
		filepath.Join(dir, "latest_mongo_explain_results.json"),
	}, paths)

	stamped := readJSON(t, paths[0])
	latest := readJSON(t, paths[1])
	assert.Equal(t, stamped, latest)
	assert.Equal(t, "Find businesses in a specific city", stamped["business_by_city"].Description)

	doc := readJSON(t, paths[2])["business_by_city"].ExplainResult.(map[string]any)
	assert.Equal(t, map[string]any{"$regex": "^a.*", "$options": "i"}, doc["filter"])
}

func TestArtifactWriter_LatestIsOverwritten(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, true, zerolog.Nop())

	w.Now = fixedNow
	_, err := w.Write(sampleArtifacts())
	require.NoError(t, err)

	second := NewArtifacts()
	second.AddRelational("other", "second run", map[string]any{})
	w.Now = func() time.Time { return fixedNow().Add(time.Minute) }
	_, err = w.Write(second)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	latest := readJSON(t, filepath.Join(dir, "latest_postgres_explain_results.json"))
	assert.Contains(t, latest, "other")
	assert.NotContains(t, latest, "business_by_city")
}

func TestArtifactWriter_Plain(t *testing.T) {
	dir := t.TempDir()
	w := NewArtifactWriter(dir, false, zerolog.Nop())
	w.RelationalFile = "pg.json"
	w.DocumentFile = "mongo.json"

	paths, err := w.Write(sampleArtifacts())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "pg.json"), filepath.Join(dir, "mongo.json")}, paths)

	empty := NewArtifacts()
	_, err = w.Write(empty)
	require.NoError(t, err)
	assert.Empty(t, readJSON(t, paths[0]))
}

func TestArtifactWriter_Unwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	w := NewArtifactWriter(filepath.Join(file, "results"), false, zerolog.Nop())
	_, err := w.Write(sampleArtifacts())
	require.Error(t, err)
}

func TestArtifacts_Len(t *testing.T) {
	a := NewArtifacts()
	a.AddRelational("a", "", nil)
	a.AddDocument("a", "", nil)
	a.AddDocument("b", "", nil)
	assert.Equal(t, 2, a.Len())
}
