// Package compare joins the two engines' metrics into a comparison record.
package compare

import (
	"github.com/TFMV/planbench/pkg/models"
)

// Unify builds the comparison record for one query. The speed verdict is only
// given when both execution times are present and strictly positive; the
// relational engine wins an exact tie.
func Unify(name, description string, relational, document models.NormalizedMetric) models.ComparisonRecord {
	rec := models.ComparisonRecord{
		QueryName:    name,
		Description:  description,
		Relational:   relational,
		Document:     document,
		FasterEngine: models.EngineUnknown,
	}

	rt, dt := relational.ExecutionTimeMs, document.ExecutionTimeMs
	if rt == nil || dt == nil || *rt <= 0 || *dt <= 0 {
		return rec
	}

	if *rt <= *dt {
		rec.FasterEngine = models.EngineRelational
		rec.SpeedupFactor = models.Float64(*dt / *rt)
	} else {
		rec.FasterEngine = models.EngineDocument
		rec.SpeedupFactor = models.Float64(*rt / *dt)
	}
	return rec
}
