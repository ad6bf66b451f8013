// Package export writes tidy datasets and deviation series as CSV, xlsx and
// PNG charts.
package export

import (
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lox/eurorates/internal/models"
)

// TidyHeader returns the header of the tidy CSV for a domain.
func TidyHeader(d models.Domain) []string {
	return []string{"country", "year", "age_group_5", d.Numerator().String(), "population"}
}

var SeriesHeader = []string{"country", "year", "observed", "reference", "deviation_pct"}

// WriteTidy writes records in the order given. Callers pass the sorted
// output of the tidy builder.
func WriteTidy(w io.Writer, d models.Domain, records []models.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TidyHeader(d)); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.Country,
			strconv.Itoa(r.Year),
			string(r.AgeGroup),
			formatFloat(r.Numerator),
			formatFloat(r.Population),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSeries writes one row per (country, year); missing values are empty cells.
func WriteSeries(w io.Writer, rows []models.SeriesRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Country,
			strconv.Itoa(r.Year),
			formatNull(r.Observed),
			formatNull(r.Reference),
			formatNull(r.Deviation),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRates writes standardized rates as country,year,<rate name>.
func WriteRates(w io.Writer, d models.Domain, rates []models.Rate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"country", "year", d.RateName()}); err != nil {
		return err
	}
	for _, r := range rates {
		if err := cw.Write([]string{r.Country, strconv.Itoa(r.Year), formatNull(r.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteTidyFile(path string, d models.Domain, records []models.Record) error {
	return WriteFile(path, func(fw *FileWriter) error { return WriteTidy(fw, d, records) })
}

func WriteSeriesFile(path string, rows []models.SeriesRow) error {
	return WriteFile(path, func(fw *FileWriter) error { return WriteSeries(fw, rows) })
}

func WriteRatesFile(path string, d models.Domain, rates []models.Rate) error {
	return WriteFile(path, func(fw *FileWriter) error { return WriteRates(fw, d, rates) })
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNull(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}
