package export

import (
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"unicode"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lox/eurorates/internal/models"
)

var (
	observedColor  = color.RGBA{R: 0xB2, G: 0x18, B: 0x2B, A: 0xFF}
	referenceColor = color.RGBA{R: 0x21, G: 0x66, B: 0xAC, A: 0xFF}
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 4 * vg.Inch
)

// WriteCharts renders one PNG per country into dir, plotting the observed
// rate against the reference. It returns the number of charts written.
func WriteCharts(dir, title string, domain models.Domain, rows []models.SeriesRow) (int, error) {
	byCountry := make(map[string][]models.SeriesRow)
	countries, _ := axes(rows)
	for _, r := range rows {
		byCountry[r.Country] = append(byCountry[r.Country], r)
	}

	names := chartFilenames(countries)
	for _, c := range countries {
		p, err := countryPlot(fmt.Sprintf("%s: %s", title, c), domain, byCountry[c])
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c, err)
		}
		wt, err := p.WriterTo(chartWidth, chartHeight, "png")
		if err != nil {
			return 0, fmt.Errorf("%s: %w", c, err)
		}
		path := filepath.Join(dir, names[c])
		if err := WriteFile(path, func(fw *FileWriter) error {
			_, err := wt.WriteTo(fw)
			return err
		}); err != nil {
			return 0, fmt.Errorf("%s: %w", c, err)
		}
	}
	return len(countries), nil
}

func countryPlot(title string, domain models.Domain, rows []models.SeriesRow) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Year"
	p.Y.Label.Text = fmt.Sprintf("%s per %s", domain.RateName(), scaleLabel(domain))
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	var observed, ref plotter.XYs
	for _, r := range rows {
		if r.Observed.Valid {
			observed = append(observed, plotter.XY{X: float64(r.Year), Y: r.Observed.Float64})
		}
		if r.Reference.Valid {
			ref = append(ref, plotter.XY{X: float64(r.Year), Y: r.Reference.Float64})
		}
	}

	if len(observed) > 0 {
		l, err := plotter.NewLine(observed)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = observedColor
		l.LineStyle.Width = vg.Points(2)
		p.Add(l)
		p.Legend.Add("observed", l)
	}
	if len(ref) > 0 {
		l, err := plotter.NewLine(ref)
		if err != nil {
			return nil, err
		}
		l.LineStyle.Color = referenceColor
		l.LineStyle.Width = vg.Points(1.5)
		l.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(l)
		p.Legend.Add("reference", l)
	}
	return p, nil
}

func scaleLabel(d models.Domain) string {
	if d == models.Fertility {
		return "1,000"
	}
	return "100,000"
}

// ChartFilename maps a country name to a file name, e.g. "Czechia" to
// "czechia.png".
func ChartFilename(country string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(country) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_") + ".png"
}

// chartFilenames assigns each country a distinct file name. Countries whose
// names differ only in punctuation get a numeric suffix in the order given, e.g.
// "Kosovo" -> "kosovo.png" and "Kosovo*" -> "kosovo_2.png".
func chartFilenames(countries []string) map[string]string {
	names := make(map[string]string, len(countries))
	used := make(map[string]bool, len(countries))
	for _, c := range countries {
		name := ChartFilename(c)
		base := strings.TrimSuffix(name, ".png")
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s_%d.png", base, i)
		}
		used[name] = true
		names[c] = name
	}
	return names
}
