// Package reference fits per-country reference series (a linear trend or a
// flat baseline) to standardized rates and compares observed rates with them.
package reference

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/eurorates/internal/models"
)

type Strategy string

const (
	StrategyLinearTrend  Strategy = "linear_trend"
	StrategyMeanBaseline Strategy = "mean_baseline"
)

// Window is an inclusive range of years.
type Window struct {
	From int `yaml:"from" validate:"required"`
	To   int `yaml:"to" validate:"required,gtefield=From"`
}

func (w Window) Contains(year int) bool {
	return year >= w.From && year <= w.To
}

func (w Window) Years() []int {
	years := make([]int, 0, w.To-w.From+1)
	for y := w.From; y <= w.To; y++ {
		years = append(years, y)
	}
	return years
}

func (w Window) String() string {
	return fmt.Sprintf("%d-%d", w.From, w.To)
}

// Model predicts a reference rate for any year.
type Model interface {
	Predict(year int) float64
}

// Estimator fits a Model to one country's rates. Rates outside the fitting
// window or without a value are ignored.
type Estimator interface {
	Strategy() Strategy
	Window() Window
	Fit(rates []models.Rate) (Model, error)
}

func NewEstimator(s Strategy, w Window) (Estimator, error) {
	switch s {
	case StrategyLinearTrend:
		return LinearTrend{Fitting: w}, nil
	case StrategyMeanBaseline:
		return MeanBaseline{Fitting: w}, nil
	default:
		return nil, fmt.Errorf("unknown reference strategy %q", s)
	}
}

// Line is rate = Intercept + Slope*year.
type Line struct {
	Intercept float64
	Slope     float64
}

func (l Line) Predict(year int) float64 {
	return l.Intercept + l.Slope*float64(year)
}

// LinearTrend fits an ordinary least squares line over the window.
type LinearTrend struct {
	Fitting Window
}

func (e LinearTrend) Strategy() Strategy { return StrategyLinearTrend }
func (e LinearTrend) Window() Window     { return e.Fitting }

// Fit fails with models.ErrInsufficientData unless the window holds values
// for at least two distinct years.
func (e LinearTrend) Fit(rates []models.Rate) (Model, error) {
	xs, ys := points(rates, e.Fitting)
	if distinct(xs) < 2 {
		return nil, fmt.Errorf("%w: %d points in %s, linear trend needs 2 years", models.ErrInsufficientData, len(xs), e.Fitting)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return Line{Intercept: alpha, Slope: beta}, nil
}

// Baseline is a flat reference.
type Baseline float64

func (b Baseline) Predict(int) float64 {
	return float64(b)
}

// MeanBaseline uses the arithmetic mean over the window for every year.
type MeanBaseline struct {
	Fitting Window
}

func (e MeanBaseline) Strategy() Strategy { return StrategyMeanBaseline }
func (e MeanBaseline) Window() Window     { return e.Fitting }

func (e MeanBaseline) Fit(rates []models.Rate) (Model, error) {
	_, ys := points(rates, e.Fitting)
	if len(ys) == 0 {
		return nil, fmt.Errorf("%w: no points in %s", models.ErrInsufficientData, e.Fitting)
	}
	return Baseline(stat.Mean(ys, nil)), nil
}

// points returns the valid rates within w, ordered by year.
func points(rates []models.Rate, w Window) (xs, ys []float64) {
	in := make([]models.Rate, 0, len(rates))
	for _, r := range rates {
		if r.Value.Valid && w.Contains(r.Year) {
			in = append(in, r)
		}
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Year < in[j].Year })
	for _, r := range in {
		xs = append(xs, float64(r.Year))
		ys = append(ys, r.Value.Float64)
	}
	return xs, ys
}

func distinct(xs []float64) int {
	seen := make(map[float64]struct{}, len(xs))
	for _, x := range xs {
		seen[x] = struct{}{}
	}
	return len(seen)
}
