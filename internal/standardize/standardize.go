// Package standardize computes age-standardized rates (ASMR, ASFR) from a
// tidy dataset and a reference population weight table.
package standardize

import (
	"database/sql"
	"sort"

	"github.com/lox/eurorates/internal/models"
)

type Standardizer struct {
	weights *Weights
	scale   float64
}

func New(weights *Weights, domain models.Domain) *Standardizer {
	return &Standardizer{weights: weights, scale: domain.Scale()}
}

type countryYear struct {
	country string
	year    int
}

// Rates returns one standardized rate per (country, year) in the records,
// sorted by country then year.
//
// Records for age groups without a weight are ignored. A weighted age group
// with no record leaves the rate invalid. A zero population excludes that
// age group from the sum.
func (s *Standardizer) Rates(records []models.Record) []models.Rate {
	byKey := make(map[countryYear]map[models.AgeGroup]models.Record)
	var keys []countryYear
	for _, r := range records {
		k := countryYear{r.Country, r.Year}
		m, ok := byKey[k]
		if !ok {
			m = make(map[models.AgeGroup]models.Record)
			byKey[k] = m
			keys = append(keys, k)
		}
		m[r.AgeGroup] = r
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].country != keys[j].country {
			return keys[i].country < keys[j].country
		}
		return keys[i].year < keys[j].year
	})

	rates := make([]models.Rate, 0, len(keys))
	for _, k := range keys {
		rates = append(rates, models.Rate{
			Country: k.country,
			Year:    k.year,
			Value:   s.rate(byKey[k]),
		})
	}
	return rates
}

func (s *Standardizer) rate(groups map[models.AgeGroup]models.Record) sql.NullFloat64 {
	var sum float64
	var used int
	for _, g := range s.weights.groups {
		r, ok := groups[g]
		if !ok {
			return sql.NullFloat64{}
		}
		asr, ok := AgeSpecific(r)
		if !ok {
			continue
		}
		sum += s.weights.w[g] * asr
		used++
	}
	if used == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: sum * s.scale, Valid: true}
}

// AgeSpecific returns numerator/population, or false for a zero population.
func AgeSpecific(r models.Record) (float64, bool) {
	if r.Population == 0 {
		return 0, false
	}
	return r.Numerator / r.Population, true
}
