package ingest

import (
	"fmt"
	"sort"

	"github.com/lox/eurorates/internal/models"
)

// Tidy joins every numerator key with its population and returns the rows
// sorted by country, year and age group as written. A numerator without a
// population fails with models.ErrMissingPopulation.
func (a *Aggregator) Tidy() ([]models.Record, error) {
	keys := make([]models.Key, 0, len(a.numerators))
	for k := range a.numerators {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	records := make([]models.Record, 0, len(keys))
	for _, k := range keys {
		pop, ok := a.populations[k]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingPopulation, k)
		}
		records = append(records, models.Record{
			Key:        k,
			Numerator:  a.numerators[k],
			Population: pop,
		})
	}
	return records, nil
}
