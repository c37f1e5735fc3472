package plan

import (
	"github.com/TFMV/planbench/pkg/models"
)

// Walk reduces a relational plan to a NormalizedMetric.
//
// RowsReturned is the root's actual row count. RowsExamined is the sum of
// actual rows over every scan node in the tree; scan nodes without a row count
// are skipped. When no scan node contributes a count RowsExamined stays nil,
// which is distinct from a scan that touched zero rows.
func Walk(e Explain) models.NormalizedMetric {
	metric := models.NormalizedMetric{
		ExecutionTimeMs: e.ExecutionTimeMs,
	}
	if e.Root == nil {
		return metric
	}

	if e.Root.ActualRows != nil {
		metric.RowsReturned = models.Int64(*e.Root.ActualRows)
	}

	var (
		examined int64
		counted  bool
	)
	for _, n := range ScanNodes(e.Root) {
		if n.ActualRows == nil {
			continue
		}
		examined += *n.ActualRows
		counted = true
	}
	if counted {
		metric.RowsExamined = models.Int64(examined)
	}

	return metric
}

// ScanNodes returns the scan nodes of the tree in depth-first pre-order.
func ScanNodes(root *Node) []*Node {
	var scans []*Node
	var visit func(n *Node)
	visit = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsScan() {
			scans = append(scans, n)
		}
		for _, child := range n.Children {
			visit(child)
		}
	}
	visit(root)
	return scans
}
