package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/standardize"
)

const (
	sheetDeviation = "Deviation"
	sheetSeries    = "Series"
	sheetWeights   = "Weights"
)

// Deviation buckets, in percent. Fill colors run from dark blue (far below
// the reference) to dark red (far above).
var deviationFills = []struct {
	below float64
	color string
}{
	{-10, "2166AC"},
	{-5, "67A9CF"},
	{0, "D1E5F0"},
	{5, "FDDBC7"},
	{10, "EF8A62"},
}

const deviationFillMax = "B2182B"

func deviationColor(pct float64) string {
	for _, f := range deviationFills {
		if pct < f.below {
			return f.color
		}
	}
	return deviationFillMax
}

// WorkbookInput is everything the deviation workbook renders.
type WorkbookInput struct {
	Title   string
	Domain  models.Domain
	Series  []models.SeriesRow
	Weights []standardize.Entry
}

// WriteXLSX writes a workbook with a country by year deviation table colored
// by magnitude, the full series and the weights used.
func WriteXLSX(path string, in WorkbookInput) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetDeviation); err != nil {
		return err
	}
	if err := writeDeviationSheet(f, in); err != nil {
		return fmt.Errorf("deviation sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetSeries); err != nil {
		return err
	}
	if err := writeSeriesSheet(f, in); err != nil {
		return fmt.Errorf("series sheet: %w", err)
	}
	if _, err := f.NewSheet(sheetWeights); err != nil {
		return err
	}
	if err := writeWeightsSheet(f, in.Weights); err != nil {
		return fmt.Errorf("weights sheet: %w", err)
	}

	return WriteFile(path, func(fw *FileWriter) error { return f.Write(fw) })
}

func writeDeviationSheet(f *excelize.File, in WorkbookInput) error {
	countries, years := axes(in.Series)

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	styles := make(map[string]int)
	styleFor := func(color string) (int, error) {
		if id, ok := styles[color]; ok {
			return id, nil
		}
		id, err := f.NewStyle(&excelize.Style{
			Fill:          excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
			DecimalPlaces: intPtr(1),
			NumFmt:        2,
		})
		if err != nil {
			return 0, err
		}
		styles[color] = id
		return id, nil
	}

	if err := f.SetCellValue(sheetDeviation, "A1", in.Title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetDeviation, "A1", "A1", header); err != nil {
		return err
	}

	row := 2
	if err := f.SetCellValue(sheetDeviation, cell(1, row), "Country"); err != nil {
		return err
	}
	for i, y := range years {
		if err := f.SetCellInt(sheetDeviation, cell(i+2, row), int(y)); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetDeviation, cell(1, row), cell(len(years)+1, row), header); err != nil {
		return err
	}

	yearCol := make(map[int]int, len(years))
	for i, y := range years {
		yearCol[y] = i + 2
	}
	countryRow := make(map[string]int, len(countries))
	for i, c := range countries {
		countryRow[c] = row + 1 + i
		if err := f.SetCellStr(sheetDeviation, cell(1, row+1+i), c); err != nil {
			return err
		}
	}

	for _, r := range in.Series {
		if !r.Deviation.Valid {
			continue
		}
		ref := cell(yearCol[r.Year], countryRow[r.Country])
		if err := f.SetCellFloat(sheetDeviation, ref, r.Deviation.Float64, -1, 64); err != nil {
			return err
		}
		style, err := styleFor(deviationColor(r.Deviation.Float64))
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetDeviation, ref, ref, style); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheetDeviation, "A", "A", 24); err != nil {
		return err
	}
	return f.SetPanes(sheetDeviation, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      row,
		TopLeftCell: cell(2, row+1),
		ActivePane:  "bottomRight",
	})
}

func writeSeriesSheet(f *excelize.File, in WorkbookInput) error {
	header := []interface{}{"Country", "Year", "Observed " + in.Domain.RateName(), "Reference", "Deviation %"}
	if err := f.SetSheetRow(sheetSeries, "A1", &header); err != nil {
		return err
	}
	for i, r := range in.Series {
		vals := []interface{}{r.Country, r.Year, nil, nil, nil}
		if r.Observed.Valid {
			vals[2] = r.Observed.Float64
		}
		if r.Reference.Valid {
			vals[3] = r.Reference.Float64
		}
		if r.Deviation.Valid {
			vals[4] = r.Deviation.Float64
		}
		if err := f.SetSheetRow(sheetSeries, cell(1, i+2), &vals); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSeries, "A", "A", 24)
}

func writeWeightsSheet(f *excelize.File, weights []standardize.Entry) error {
	header := []interface{}{"Age group", "Weight"}
	if err := f.SetSheetRow(sheetWeights, "A1", &header); err != nil {
		return err
	}
	for i, w := range weights {
		vals := []interface{}{string(w.AgeGroup), w.Weight}
		if err := f.SetSheetRow(sheetWeights, cell(1, i+2), &vals); err != nil {
			return err
		}
	}
	return nil
}

// axes returns the sorted countries and years present in rows.
func axes(rows []models.SeriesRow) (countries []string, years []int) {
	cs := make(map[string]bool)
	ys := make(map[int]bool)
	for _, r := range rows {
		cs[r.Country] = true
		ys[r.Year] = true
	}
	for c := range cs {
		countries = append(countries, c)
	}
	for y := range ys {
		years = append(years, y)
	}
	sort.Strings(countries)
	sort.Ints(years)
	return countries, years
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		panic(err)
	}
	return name
}

func intPtr(v int) *int {
	return &v
}
