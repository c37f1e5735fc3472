package plan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/TFMV/planbench/pkg/models"
)

func TestWalk_SeqScanScenario(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"Plan": map[string]interface{}{
				"Node Type":   "Seq Scan",
				"Actual Rows": float64(500),
				"Plans":       []interface{}{},
			},
			"Execution Time": 12.3,
		},
	}

	metric := Walk(Decode(raw))

	require.NotNil(t, metric.ExecutionTimeMs)
	require.NotNil(t, metric.RowsReturned)
	require.NotNil(t, metric.RowsExamined)
	assert.Equal(t, 12.3, *metric.ExecutionTimeMs)
	assert.Equal(t, int64(500), *metric.RowsReturned)
	assert.Equal(t, int64(500), *metric.RowsExamined)
}

func TestDecodeJSON_PostgresOutput(t *testing.T) {
	data := []byte(`[
	  {
	    "Plan": {
	      "Node Type": "Limit",
	      "Actual Rows": 100,
	      "Plans": [
	        {
	          "Node Type": "Bitmap Heap Scan",
	          "Relation Name": "businesses",
	          "Actual Rows": 100,
	          "Plans": [
	            {"Node Type": "Bitmap Index Scan", "Index Name": "idx_businesses_city", "Actual Rows": 412}
	          ]
	        }
	      ]
	    },
	    "Planning Time": 0.21,
	    "Execution Time": 1.75
	  }
	]`)

	raw, explain, err := DecodeJSON(data)
	require.NoError(t, err)
	require.NotNil(t, raw)

	metric := Walk(explain)
	assert.Equal(t, models.Float64(1.75), metric.ExecutionTimeMs)
	assert.Equal(t, models.Int64(100), metric.RowsReturned)
	assert.Equal(t, models.Int64(512), metric.RowsExamined)
	assert.Equal(t, models.Float64(0.21), explain.PlanningTimeMs)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	_, _, err := DecodeJSON([]byte(`{"Plan":`))
	assert.Error(t, err)
}

func TestWalk_NoScanNodesIsNotZero(t *testing.T) {
	raw := map[string]interface{}{
		"Plan": map[string]interface{}{
			"Node Type":   "Result",
			"Actual Rows": float64(1),
		},
		"Execution Time": 0.02,
	}

	metric := Walk(Decode(raw))
	assert.Equal(t, models.Int64(1), metric.RowsReturned)
	assert.Nil(t, metric.RowsExamined)
}

func TestWalk_ScanWithZeroRows(t *testing.T) {
	raw := map[string]interface{}{
		"Plan": map[string]interface{}{
			"Node Type":   "Index Scan",
			"Actual Rows": float64(0),
		},
	}

	metric := Walk(Decode(raw))
	require.NotNil(t, metric.RowsExamined)
	assert.Equal(t, int64(0), *metric.RowsExamined)
	assert.Nil(t, metric.ExecutionTimeMs)
}

func TestWalk_ScanMissingRowsIsSkipped(t *testing.T) {
	raw := map[string]interface{}{
		"Plan": map[string]interface{}{
			"Node Type": "Hash Join",
			"Plans": []interface{}{
				map[string]interface{}{"Node Type": "Seq Scan"},
				map[string]interface{}{"Node Type": "Index Only Scan", "Actual Rows": float64(7)},
			},
		},
	}

	metric := Walk(Decode(raw))
	assert.Nil(t, metric.RowsReturned)
	assert.Equal(t, models.Int64(7), metric.RowsExamined)
}

func TestWalk_Tolerance(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
	}{
		{"nil", nil},
		{"empty list", []interface{}{}},
		{"empty object", map[string]interface{}{}},
		{"string", "not a plan"},
		{"plan is a list", map[string]interface{}{"Plan": []interface{}{1, 2}}},
		{"ill-typed fields", map[string]interface{}{
			"Execution Time": "fast",
			"Plan": map[string]interface{}{
				"Node Type":   42,
				"Actual Rows": "many",
				"Plans":       "none",
			},
		}},
		{"children of wrong type", map[string]interface{}{
			"Plan": map[string]interface{}{
				"Node Type": "Nested Loop",
				"Plans":     []interface{}{"x", nil, 3.5},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var metric models.NormalizedMetric
			assert.NotPanics(t, func() { metric = Walk(Decode(tt.raw)) })
			assert.Nil(t, metric.ExecutionTimeMs)
			assert.Nil(t, metric.RowsReturned)
			assert.Nil(t, metric.RowsExamined)
		})
	}
}

func TestDecode_FractionalRowsAreRounded(t *testing.T) {
	raw := map[string]interface{}{
		"Plan": map[string]interface{}{"Node Type": "Seq Scan", "Actual Rows": 2.5},
	}
	metric := Walk(Decode(raw))
	assert.Equal(t, models.Int64(3), metric.RowsExamined)
}

var nodeTypes = []string{
	"Seq Scan", "Index Scan", "Index Only Scan", "Bitmap Heap Scan", "CTE Scan",
	"Hash Join", "Nested Loop", "Sort", "Limit", "Aggregate", "Hash", "Materialize",
}

func drawNode(t *rapid.T, depth int, label string) (map[string]interface{}, int64, bool) {
	nodeType := rapid.SampledFrom(nodeTypes).Draw(t, label+".type")
	node := map[string]interface{}{"Node Type": nodeType}

	var sum int64
	var counted bool
	if rapid.Bool().Draw(t, label+".hasRows") {
		rows := rapid.Int64Range(0, 1_000_000).Draw(t, label+".rows")
		node["Actual Rows"] = float64(rows)
		if strings.Contains(nodeType, ScanMarker) {
			sum += rows
			counted = true
		}
	}

	if depth > 0 {
		n := rapid.IntRange(0, 3).Draw(t, label+".children")
		children := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			child, childSum, childCounted := drawNode(t, depth-1, fmt.Sprintf("%s.%d", label, i))
			children = append(children, child)
			sum += childSum
			counted = counted || childCounted
		}
		node["Plans"] = children
	}

	return node, sum, counted
}

func TestWalk_RowsExaminedIsSumOfScanRows(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		root, want, counted := drawNode(t, 4, "root")
		metric := Walk(Decode(map[string]interface{}{"Plan": root}))

		if !counted {
			if metric.RowsExamined != nil {
				t.Fatalf("expected nil rows examined, got %d", *metric.RowsExamined)
			}
			return
		}
		if metric.RowsExamined == nil || *metric.RowsExamined != want {
			t.Fatalf("rows examined = %v, want %d", metric.RowsExamined, want)
		}
	})
}

func TestScanNodes_PreOrder(t *testing.T) {
	root := &Node{
		NodeType: "Merge Join",
		Children: []*Node{
			{NodeType: "Sort", Children: []*Node{{NodeType: "Seq Scan"}}},
			{NodeType: "Index Scan"},
		},
	}

	scans := ScanNodes(root)
	require.Len(t, scans, 2)
	assert.Equal(t, "Seq Scan", scans[0].NodeType)
	assert.Equal(t, "Index Scan", scans[1].NodeType)
	assert.Empty(t, ScanNodes(nil))
}
