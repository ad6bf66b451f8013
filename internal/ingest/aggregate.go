package ingest

import (
	"fmt"

	"github.com/lox/eurorates/internal/models"
)

// Aggregator accumulates numerators and populations per (country, year, age group).
// Numerators are summed across raw rows; each key takes exactly one population.
type Aggregator struct {
	numerators  map[models.Key]float64
	populations map[models.Key]float64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		numerators:  make(map[models.Key]float64),
		populations: make(map[models.Key]float64),
	}
}

func (a *Aggregator) Add(m models.Measure, k models.Key, v float64) error {
	switch m {
	case models.Deaths, models.Births:
		a.AddNumerator(k, v)
		return nil
	case models.Population:
		return a.AddPopulation(k, v)
	default:
		return fmt.Errorf("aggregate %s: unknown measure %v", k, m)
	}
}

func (a *Aggregator) AddNumerator(k models.Key, v float64) {
	a.numerators[k] += v
}

// AddPopulation fails with models.ErrDuplicatePopulation when k already has a value.
func (a *Aggregator) AddPopulation(k models.Key, v float64) error {
	if prev, ok := a.populations[k]; ok {
		return fmt.Errorf("%w: %s already has %v, got %v", models.ErrDuplicatePopulation, k, prev, v)
	}
	a.populations[k] = v
	return nil
}

func (a *Aggregator) Numerator(k models.Key) (float64, bool) {
	v, ok := a.numerators[k]
	return v, ok
}

func (a *Aggregator) Population(k models.Key) (float64, bool) {
	v, ok := a.populations[k]
	return v, ok
}

// Len returns the number of numerator keys.
func (a *Aggregator) Len() int {
	return len(a.numerators)
}
