package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lox/eurorates/internal/ageband"
	"github.com/lox/eurorates/internal/models"
)

// Columns names the SDMX-CSV header fields the loader reads.
type Columns struct {
	Geo   string `yaml:"geo"`
	Age   string `yaml:"age"`
	Time  string `yaml:"time"`
	Value string `yaml:"value"`
	Sex   string `yaml:"sex"`
}

func DefaultColumns() Columns {
	return Columns{
		Geo:   "geo",
		Age:   "age",
		Time:  "TIME_PERIOD",
		Value: "OBS_VALUE",
		Sex:   "sex",
	}
}

// WithDefaults fills unset column names from DefaultColumns.
func (c Columns) WithDefaults() Columns {
	d := DefaultColumns()
	if c.Geo == "" {
		c.Geo = d.Geo
	}
	if c.Age == "" {
		c.Age = d.Age
	}
	if c.Time == "" {
		c.Time = d.Time
	}
	if c.Value == "" {
		c.Value = d.Value
	}
	if c.Sex == "" {
		c.Sex = d.Sex
	}
	return c
}

// FileSpec describes one downloaded snapshot file.
type FileSpec struct {
	Dataset    string             `yaml:"dataset"` // Eurostat dataset code, used by fetch
	Path       string             `yaml:"path" validate:"required"`
	Vocabulary ageband.Vocabulary `yaml:"vocabulary" validate:"required,oneof=single_year range code"`
	Columns    Columns            `yaml:"columns"`
	Sex        string             `yaml:"sex"` // keep only rows with this sex when set
	// ExcludeGeos adds geo exclusions for this file only.
	ExcludeGeos []string `yaml:"exclude_geos"`
}

// Reader turns SDMX-CSV rows into raw observations. Columns are located by
// header name once; rows are then read by index.
type Reader struct {
	r        *csv.Reader
	measure  models.Measure
	geoCol   int
	ageCol   int
	timeCol  int
	valueCol int
	sexCol   int // -1 when the file has no sex column
	width    int
	line     int
}

// NewReader reads and validates the header. A missing required column fails
// with models.ErrSchemaDrift. requireSex makes the sex column mandatory.
func NewReader(r io.Reader, measure models.Measure, cols Columns, requireSex bool) (*Reader, error) {
	cols = cols.WithDefaults()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := func(name string) int {
		for i, h := range header {
			h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			if strings.EqualFold(h, name) {
				return i
			}
		}
		return -1
	}

	rd := &Reader{r: cr, measure: measure, sexCol: index(cols.Sex), line: 1}
	for name, dst := range map[string]*int{
		cols.Geo:   &rd.geoCol,
		cols.Age:   &rd.ageCol,
		cols.Time:  &rd.timeCol,
		cols.Value: &rd.valueCol,
	} {
		i := index(name)
		if i < 0 {
			return nil, fmt.Errorf("%w: missing column %q", models.ErrSchemaDrift, name)
		}
		*dst = i
	}
	if requireSex && rd.sexCol < 0 {
		return nil, fmt.Errorf("%w: missing column %q", models.ErrSchemaDrift, cols.Sex)
	}

	for _, i := range []int{rd.geoCol, rd.ageCol, rd.timeCol, rd.valueCol, rd.sexCol} {
		if i+1 > rd.width {
			rd.width = i + 1
		}
	}
	return rd, nil
}

// Line returns the 1-based line number of the last row read.
func (rd *Reader) Line() int {
	return rd.line
}

// Next returns the next observation, io.EOF at the end of input, or an error
// wrapping models.ErrMalformedValue for a row that cannot be parsed. A bad
// value cell is reported as *ValueError. The reader stays usable after a
// malformed row.
func (rd *Reader) Next() (models.RawObservation, error) {
	vals, err := rd.r.Read()
	rd.line++
	if err == io.EOF {
		return models.RawObservation{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return models.RawObservation{}, fmt.Errorf("%w: line %d: %v", models.ErrMalformedValue, rd.line, pe.Err)
		}
		return models.RawObservation{}, err
	}
	if len(vals) < rd.width {
		return models.RawObservation{}, fmt.Errorf("%w: line %d: %d fields, want at least %d",
			models.ErrMalformedValue, rd.line, len(vals), rd.width)
	}

	obs := models.RawObservation{
		Geo:      strings.TrimSpace(vals[rd.geoCol]),
		AgeLabel: strings.TrimSpace(vals[rd.ageCol]),
		Measure:  rd.measure,
		Line:     rd.line,
	}
	if rd.sexCol >= 0 {
		obs.Sex = strings.TrimSpace(vals[rd.sexCol])
	}

	s := strings.TrimSpace(vals[rd.timeCol])
	if obs.Year, err = strconv.Atoi(s); err != nil {
		return obs, fmt.Errorf("%w: line %d: year %q", models.ErrMalformedValue, rd.line, s)
	}

	s = strings.TrimSpace(vals[rd.valueCol])
	if s == "" || s == ":" {
		return obs, &ValueError{Line: rd.line, Measure: rd.measure, Cell: s}
	}
	if obs.Value, err = strconv.ParseFloat(s, 64); err != nil {
		return obs, &ValueError{Line: rd.line, Measure: rd.measure, Cell: s}
	}
	return obs, nil
}

// ValueError is a value cell that does not parse. The observation returned
// with it has every other field set, so the row can still be filtered.
type ValueError struct {
	Line    int
	Measure models.Measure
	Cell    string
}

func (e *ValueError) Error() string {
	if e.Cell == "" || e.Cell == ":" {
		return fmt.Sprintf("%v: line %d: missing %s value", models.ErrMalformedValue, e.Line, e.Measure)
	}
	return fmt.Sprintf("%v: line %d: %s value %q", models.ErrMalformedValue, e.Line, e.Measure, e.Cell)
}

func (e *ValueError) Unwrap() error { return models.ErrMalformedValue }
