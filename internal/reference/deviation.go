package reference

import (
	"database/sql"
	"math"
)

// Deviation returns (observed - reference) / reference * 100. It is missing
// when either side is missing or the reference is zero.
func Deviation(observed, reference sql.NullFloat64) sql.NullFloat64 {
	if !observed.Valid || !reference.Valid || reference.Float64 == 0 {
		return sql.NullFloat64{}
	}
	d := (observed.Float64 - reference.Float64) / reference.Float64 * 100
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: d, Valid: true}
}
