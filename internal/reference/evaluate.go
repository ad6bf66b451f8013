package reference

import (
	"context"
	"database/sql"
	"errors"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/lox/eurorates/internal/models"
)

// Exclusion records a country left out of the output and why.
type Exclusion struct {
	Country string
	Err     error
}

type countryResult struct {
	rows []models.SeriesRow
	err  error
}

// Evaluate fits est to each country's rates and emits one row per output
// year with the observed rate, the reference and the percent deviation.
// Countries are fitted concurrently. A country with insufficient data is
// returned as an Exclusion; any other fitting error aborts.
func Evaluate(ctx context.Context, est Estimator, rates []models.Rate, output Window) ([]models.SeriesRow, []Exclusion, error) {
	byCountry := make(map[string][]models.Rate)
	for _, r := range rates {
		byCountry[r.Country] = append(byCountry[r.Country], r)
	}
	countries := make([]string, 0, len(byCountry))
	for c := range byCountry {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	results := make([]countryResult, len(countries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, country := range countries {
		i, country := i, country
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := evaluateCountry(est, country, byCountry[country], output)
			if err != nil && !errors.Is(err, models.ErrInsufficientData) {
				return err
			}
			results[i] = countryResult{rows: rows, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var rows []models.SeriesRow
	var excluded []Exclusion
	for i, res := range results {
		if res.err != nil {
			excluded = append(excluded, Exclusion{Country: countries[i], Err: res.err})
			continue
		}
		rows = append(rows, res.rows...)
	}
	return rows, excluded, nil
}

func evaluateCountry(est Estimator, country string, rates []models.Rate, output Window) ([]models.SeriesRow, error) {
	model, err := est.Fit(rates)
	if err != nil {
		return nil, err
	}

	observed := make(map[int]sql.NullFloat64, len(rates))
	for _, r := range rates {
		observed[r.Year] = r.Value
	}

	rows := make([]models.SeriesRow, 0, output.To-output.From+1)
	for _, year := range output.Years() {
		ref := sql.NullFloat64{Float64: model.Predict(year), Valid: true}
		obs := observed[year]
		rows = append(rows, models.SeriesRow{
			Country:   country,
			Year:      year,
			Observed:  obs,
			Reference: ref,
			Deviation: Deviation(obs, ref),
		})
	}
	return rows, nil
}
