package ingest

import (
	"math"
	"strings"

	"github.com/lox/eurorates/internal/models"
)

const (
	FlagValueNegative   = "value_negative"
	FlagValueNonFinite  = "value_non_finite"
	FlagYearImplausible = "year_implausible"
	FlagGeoEmpty        = "geo_empty"
)

const (
	minPlausibleYear = 1900
	maxPlausibleYear = 2100
)

func ValidateObservation(obs *models.RawObservation) []string {
	var flags []string

	if obs.Geo == "" {
		flags = append(flags, FlagGeoEmpty)
	}

	if math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0) {
		flags = append(flags, FlagValueNonFinite)
	} else if obs.Value < 0 {
		flags = append(flags, FlagValueNegative)
	}

	if obs.Year < minPlausibleYear || obs.Year > maxPlausibleYear {
		flags = append(flags, FlagYearImplausible)
	}

	return flags
}

func flagsString(flags []string) string {
	return strings.Join(flags, ",")
}
