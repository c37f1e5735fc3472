// Package plan decodes PostgreSQL EXPLAIN (ANALYZE, FORMAT JSON) output into a
// plan tree and reduces it to a NormalizedMetric.
package plan

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/TFMV/planbench/pkg/models"
)

// ScanMarker is the node type substring that designates a table-level read.
const ScanMarker = "Scan"

// Keys of the PostgreSQL JSON explain format.
const (
	keyPlan          = "Plan"
	keyPlans         = "Plans"
	keyNodeType      = "Node Type"
	keyActualRows    = "Actual Rows"
	keyExecutionTime = "Execution Time"
	keyPlanningTime  = "Planning Time"
)

// Node is one node of a relational plan tree.
type Node struct {
	NodeType   string
	ActualRows *int64
	Children   []*Node
}

// IsScan reports whether the node reads a base relation.
func (n *Node) IsScan() bool {
	return strings.Contains(n.NodeType, ScanMarker)
}

// Explain is the root of an EXPLAIN ANALYZE result. Timings live here, not on nodes.
type Explain struct {
	Root            *Node
	ExecutionTimeMs *float64
	PlanningTimeMs  *float64
}

// Decode builds an Explain from a decoded JSON value. PostgreSQL wraps the
// result in a one-element array; a bare object is accepted too. Decode never
// fails: fields with missing keys or unexpected types are left unset.
func Decode(raw interface{}) Explain {
	if list, ok := raw.([]interface{}); ok {
		if len(list) == 0 {
			return Explain{}
		}
		raw = list[0]
	}

	obj, ok := raw.(map[string]interface{})
	if !ok {
		return Explain{}
	}

	return Explain{
		Root:            decodeNode(obj[keyPlan]),
		ExecutionTimeMs: toFloat(obj[keyExecutionTime]),
		PlanningTimeMs:  toFloat(obj[keyPlanningTime]),
	}
}

// DecodeJSON unmarshals raw EXPLAIN JSON and decodes it. It returns the generic
// value as well so callers can persist the un-normalized tree.
func DecodeJSON(data []byte) (interface{}, Explain, error) {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, Explain{}, err
	}
	return raw, Decode(raw), nil
}

func decodeNode(v interface{}) *Node {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}

	node := &Node{}
	if nodeType, ok := obj[keyNodeType].(string); ok {
		node.NodeType = nodeType
	}
	if rows := toFloat(obj[keyActualRows]); rows != nil {
		node.ActualRows = models.Int64(int64(math.Round(*rows)))
	}

	children, _ := obj[keyPlans].([]interface{})
	for _, c := range children {
		if child := decodeNode(c); child != nil {
			node.Children = append(node.Children, child)
		}
	}

	return node
}

func toFloat(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
