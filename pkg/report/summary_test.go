package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/planbench/pkg/models"
)

func sampleRecords() []models.ComparisonRecord {
	return []models.ComparisonRecord{
		{
			QueryName:   "business_by_city",
			Description: "Find businesses in a specific city",
			Relational: models.NormalizedMetric{
				ExecutionTimeMs: models.Float64(1.75),
				RowsReturned:    models.Int64(100),
				RowsExamined:    models.Int64(1512),
			},
			Document: models.NormalizedMetric{
				ExecutionTimeMs: models.Float64(3.5),
				RowsReturned:    models.Int64(100),
				RowsExamined:    models.Int64(0),
			},
			FasterEngine:  models.EngineRelational,
			SpeedupFactor: models.Float64(2),
		},
		{
			QueryName:     "review_star_distribution",
			Description:   "Number of reviews per star rating",
			Relational:    models.NormalizedMetric{RowsReturned: models.Int64(5)},
			FasterEngine:  models.EngineUnknown,
			DocumentError: "CAPTURE_FAILED: mongo explain",
		},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(sampleRecords(), &buf))
	out := buf.String()

	assert.Contains(t, out, "=== Benchmark Results Summary ===")
	assert.Contains(t, out, "1.75ms")
	assert.Contains(t, out, "1,512")
	assert.Contains(t, out, "2.00x")
	assert.Contains(t, out, "PostgreSQL")
	assert.Contains(t, out, "Results for business_by_city:")
	assert.Contains(t, out, "  PostgreSQL: 100 rows returned, 1,512 rows examined")
	assert.Contains(t, out, "  MongoDB: 100 documents returned, 0 documents examined")
	assert.Contains(t, out, "  PostgreSQL: 5 rows returned, N/A rows examined")
	assert.Contains(t, out, "  MongoDB: error: CAPTURE_FAILED: mongo explain")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(sampleRecords(), &buf))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "relational", decoded[0]["faster_engine"])
	assert.Nil(t, decoded[1]["speedup_factor"])
	assert.Nil(t, decoded[1]["relational"].(map[string]any)["rows_examined"])
	assert.Equal(t, float64(0), decoded[0]["document"].(map[string]any)["rows_examined"])

	buf.Reset()
	require.NoError(t, WriteJSON(nil, &buf))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(sampleRecords(), &buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{
		"business_by_city", "Find businesses in a specific city",
		"1.75", "100", "1512", "3.5", "100", "0",
		"relational", "2", "", "",
	}, rows[1])
	assert.Equal(t, "", rows[2][2])
	assert.Equal(t, "unknown", rows[2][8])
}

func TestWriteArrow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteArrow(sampleRecords(), &buf))

	r, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer r.Release()

	require.Equal(t, RecordSchema.NumFields(), r.Schema().NumFields())
	assert.True(t, r.Schema().Field(2).Nullable)
	require.True(t, r.Next())
	rec := r.Record()
	require.Equal(t, int64(2), rec.NumRows())

	examined := rec.Column(4).(*array.Int64)
	assert.Equal(t, int64(1512), examined.Value(0))
	assert.True(t, examined.IsNull(1))

	mongoExamined := rec.Column(7).(*array.Int64)
	assert.False(t, mongoExamined.IsNull(0))
	assert.Equal(t, int64(0), mongoExamined.Value(0))

	speedup := rec.Column(9).(*array.Float64)
	assert.Equal(t, 2.0, speedup.Value(0))
	assert.True(t, speedup.IsNull(1))

	mongoErr := rec.Column(11).(*array.String)
	assert.True(t, mongoErr.IsNull(0))
	assert.Equal(t, "CAPTURE_FAILED: mongo explain", mongoErr.Value(1))
}

func TestOutput(t *testing.T) {
	for _, format := range Formats {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Output(sampleRecords(), format, &buf))
			assert.NotZero(t, buf.Len())
		})
	}

	var buf bytes.Buffer
	err := Output(nil, "yaml", &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "PostgreSQL", EngineName(models.EngineRelational))
	assert.Equal(t, "MongoDB", EngineName(models.EngineDocument))
	assert.Equal(t, NotAvailable, EngineName(models.EngineUnknown))
}
