// Package pipeline runs configured analyses end to end: load, tidy,
// standardize, fit the reference and write outputs.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lox/eurorates/internal/config"
	"github.com/lox/eurorates/internal/export"
	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/metrics"
	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/reference"
	"github.com/lox/eurorates/internal/standardize"
	"github.com/lox/eurorates/internal/store"
)

// Output file names within an analysis output directory.
const (
	TidyFile   = "tidy.csv"
	RatesFile  = "rates.csv"
	SeriesFile = "series.csv"
	XLSXFile   = "deviation.xlsx"
	ChartsDir  = "charts"
)

type Result struct {
	Analysis   string
	RunID      string
	Numerator  ingest.LoadStats
	Population ingest.LoadStats
	Records    []models.Record
	Rates      []models.Rate
	Series     []models.SeriesRow
	Excluded   []reference.Exclusion
	Outputs    []string
}

type Runner struct {
	store   *store.Store // optional
	verbose bool
}

func NewRunner(st *store.Store, verbose bool) *Runner {
	return &Runner{store: st, verbose: verbose}
}

// RunAll runs every analysis in order. A failed analysis does not stop the
// others unless ctx is cancelled; all failures are returned together.
func (r *Runner) RunAll(ctx context.Context, analyses []config.Analysis) ([]*Result, error) {
	var results []*Result
	var errs *multierror.Error
	for _, a := range analyses {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		res, err := r.Run(ctx, a)
		if err != nil {
			log.Printf("pipeline: %s: %v", a.Name, err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", a.Name, err))
			continue
		}
		results = append(results, res)
	}
	return results, errs.ErrorOrNil()
}

// Run executes one analysis. Integrity violations and malformed input under
// the fail severity abort it.
func (r *Runner) Run(ctx context.Context, a config.Analysis) (res *Result, err error) {
	start := time.Now()
	res = &Result{Analysis: a.Name}

	var run *store.Run
	if r.store != nil {
		if run, err = r.store.StartRun(a.Name, a.Domain); err != nil {
			log.Printf("pipeline: %s: start run: %v", a.Name, err)
		} else {
			res.RunID = run.ID
		}
	}

	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.AnalysisDuration.WithLabelValues(a.Name, status).Observe(time.Since(start).Seconds())
		r.completeRun(run, res, err)
	}()

	log.Printf("pipeline: %s: loading %s and %s", a.Name, a.Numerator.Path, a.Population.Path)
	agg := ingest.NewAggregator()
	loader := &ingest.Loader{
		Analysis: a.Name,
		Domain:   a.Domain,
		Filter:   ingest.NewFilter(a.Filter),
		Severity: a.Severity,
		Verbose:  r.verbose,
	}
	if res.Numerator, err = loader.LoadFile(ctx, a.Numerator, a.Domain.Numerator(), agg); err != nil {
		return res, fmt.Errorf("load %s: %w", a.Domain.Numerator(), err)
	}
	if res.Population, err = loader.LoadFile(ctx, a.Population, models.Population, agg); err != nil {
		return res, fmt.Errorf("load population: %w", err)
	}

	if res.Records, err = agg.Tidy(); err != nil {
		return res, fmt.Errorf("tidy: %w", err)
	}
	metrics.TidyRows.WithLabelValues(a.Name).Set(float64(len(res.Records)))
	log.Printf("pipeline: %s: %d tidy rows (%d %s rows kept, %d population rows kept)",
		a.Name, len(res.Records), res.Numerator.Kept, a.Domain.Numerator(), res.Population.Kept)

	weights, err := a.StandardWeights()
	if err != nil {
		return res, err
	}
	res.Rates = standardize.New(weights, a.Domain).Rates(res.Records)

	est, err := a.Estimator()
	if err != nil {
		return res, err
	}
	if res.Series, res.Excluded, err = reference.Evaluate(ctx, est, res.Rates, a.OutputYears); err != nil {
		return res, fmt.Errorf("reference: %w", err)
	}
	for _, ex := range res.Excluded {
		log.Printf("pipeline: %s: excluded %s: %v", a.Name, ex.Country, ex.Err)
	}
	metrics.CountriesExcluded.WithLabelValues(a.Name).Add(float64(len(res.Excluded)))

	if err := r.writeOutputs(a, weights, res); err != nil {
		return res, fmt.Errorf("write outputs: %w", err)
	}

	if run != nil {
		if err := r.store.SaveTidy(run.ID, res.Records); err != nil {
			return res, fmt.Errorf("archive tidy: %w", err)
		}
		if err := r.store.SaveSeries(run.ID, res.Series); err != nil {
			return res, fmt.Errorf("archive series: %w", err)
		}
	}

	log.Printf("pipeline: %s: %d countries, %d excluded, done in %s",
		a.Name, countries(res.Series), len(res.Excluded), time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (r *Runner) writeOutputs(a config.Analysis, weights *standardize.Weights, res *Result) error {
	dir := a.Output.Dir
	tidy := filepath.Join(dir, TidyFile)
	if err := export.WriteTidyFile(tidy, a.Domain, res.Records); err != nil {
		return err
	}
	rates := filepath.Join(dir, RatesFile)
	if err := export.WriteRatesFile(rates, a.Domain, res.Rates); err != nil {
		return err
	}
	series := filepath.Join(dir, SeriesFile)
	if err := export.WriteSeriesFile(series, res.Series); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, tidy, rates, series)

	title := Title(a)
	if a.Output.XLSX {
		path := filepath.Join(dir, XLSXFile)
		if err := export.WriteXLSX(path, export.WorkbookInput{
			Title:   title,
			Domain:  a.Domain,
			Series:  res.Series,
			Weights: weights.Entries(),
		}); err != nil {
			return err
		}
		res.Outputs = append(res.Outputs, path)
	}
	if a.Output.Chart {
		charts := filepath.Join(dir, ChartsDir)
		n, err := export.WriteCharts(charts, title, a.Domain, res.Series)
		if err != nil {
			return err
		}
		if r.verbose {
			log.Printf("pipeline: %s: wrote %d charts", a.Name, n)
		}
		res.Outputs = append(res.Outputs, charts)
	}
	return nil
}

func (r *Runner) completeRun(run *store.Run, res *Result, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	run.RowsRead = count(res.Numerator.Read + res.Population.Read)
	run.RowsKept = count(res.Numerator.Kept + res.Population.Kept)
	run.RowsDropped = count(res.Numerator.DroppedTotal() + res.Population.DroppedTotal())
	run.RowsRejected = count(res.Numerator.Rejected + res.Population.Rejected)
	if res.Records != nil {
		run.TidyRows = count(len(res.Records))
	}
	if res.Series != nil || res.Excluded != nil {
		run.CountriesExcluded = count(len(res.Excluded))
	}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if cerr := r.store.CompleteRun(run); cerr != nil {
		log.Printf("pipeline: %s: complete run: %v", run.Analysis, cerr)
	}
}

// Title describes an analysis, e.g. "ASMR ages 0-19, deviation from 2017-2019 mean baseline".
func Title(a config.Analysis) string {
	t := a.Domain.RateName()
	if a.AgeRange != nil {
		if a.AgeRange.To < 0 {
			t += fmt.Sprintf(" ages %d+", a.AgeRange.From)
		} else {
			t += fmt.Sprintf(" ages %d-%d", a.AgeRange.From, a.AgeRange.To)
		}
	}
	strategy := "linear trend"
	if a.Reference.Strategy == reference.StrategyMeanBaseline {
		strategy = "mean baseline"
	}
	return fmt.Sprintf("%s, deviation from %s %s", t, a.Reference.Window, strategy)
}

// IsIntegrityError reports whether err is a fatal data integrity violation.
func IsIntegrityError(err error) bool {
	return errors.Is(err, models.ErrDuplicatePopulation) || errors.Is(err, models.ErrMissingPopulation)
}

func count(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: true}
}

func countries(rows []models.SeriesRow) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		seen[r.Country] = struct{}{}
	}
	return len(seen)
}
