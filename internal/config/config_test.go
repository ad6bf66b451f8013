package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/eurorates/internal/ageband"
	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/reference"
)

const validYAML = `
analyses:
  - name: asmr-test
    domain: mortality
    numerator:
      dataset: demo_magec
      path: data/deaths.csv
      vocabulary: single_year
      sex: Total
    population:
      path: data/population.csv
      vocabulary: range
      columns:
        geo: land
    filter:
      exclude_ages: [Total, Unknown]
      exclude_geos: [EU27_2020]
      geo_aliases:
        "Germany (until 1990 former territory of the FRG)": Germany
      min_year: 2011
      skip_years: [2024]
    age_range:
      from: 0
      to: 19
    reference:
      strategy: linear_trend
      window: {from: 2015, to: 2019}
    output_years: {from: 2011, to: 2023}
    output:
      dir: out/asmr-test
      xlsx: true
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analyses.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	f, err := Load(writeFile(t, validYAML))
	require.NoError(t, err)
	require.Len(t, f.Analyses, 1)

	a := f.Analyses[0]
	assert.Equal(t, "asmr-test", a.Name)
	assert.Equal(t, models.Mortality, a.Domain)
	assert.Equal(t, ageband.SingleYear, a.Numerator.Vocabulary)
	assert.Equal(t, "demo_magec", a.Numerator.Dataset)
	assert.Equal(t, "land", a.Population.Columns.Geo)
	assert.Equal(t, "OBS_VALUE", a.Population.Columns.Value, "unset columns take defaults")
	assert.Equal(t, ingest.Reject, a.Severity, "severity defaults to reject")
	assert.Equal(t, []int{2024}, a.Filter.SkipYears)
	assert.Equal(t, "Germany", a.Filter.GeoAliases["Germany (until 1990 former territory of the FRG)"])
	assert.True(t, a.Output.XLSX)
	assert.False(t, a.Output.Chart)

	ws, err := a.StandardWeights()
	require.NoError(t, err)
	assert.Equal(t, 4, ws.Len())
	assert.InDelta(t, 1.0, ws.Sum(), 1e-9)

	est, err := a.Estimator()
	require.NoError(t, err)
	assert.Equal(t, reference.StrategyLinearTrend, est.Strategy())
	assert.Equal(t, reference.Window{From: 2015, To: 2019}, est.Window())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no analyses",
			content: "analyses: []\n",
			wantErr: "analyses: ",
		},
		{
			name:    "unknown field",
			content: "analyses:\n  - name: x\n    colour: red\n",
			wantErr: "colour",
		},
		{
			name: "bad domain",
			content: `
analyses:
  - name: x
    domain: morbidity
    numerator: {path: a.csv, vocabulary: range}
    population: {path: b.csv, vocabulary: range}
    reference: {strategy: mean_baseline, window: {from: 2017, to: 2019}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "analyses[0].domain: must be one of: mortality, fertility",
		},
		{
			name: "missing path and bad vocabulary",
			content: `
analyses:
  - name: x
    domain: mortality
    numerator: {vocabulary: ages}
    population: {path: b.csv, vocabulary: range}
    reference: {strategy: mean_baseline, window: {from: 2017, to: 2019}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "analyses[0].numerator.path: is required",
		},
		{
			name: "window outside output years",
			content: `
analyses:
  - name: x
    domain: mortality
    numerator: {path: a.csv, vocabulary: single_year}
    population: {path: b.csv, vocabulary: range}
    reference: {strategy: linear_trend, window: {from: 2005, to: 2009}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "reference window 2005-2009 outside output years 2011-2023",
		},
		{
			name: "window reversed",
			content: `
analyses:
  - name: x
    domain: mortality
    numerator: {path: a.csv, vocabulary: single_year}
    population: {path: b.csv, vocabulary: range}
    reference: {strategy: linear_trend, window: {from: 2019, to: 2015}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "analyses[0].reference.window.to: must not be before From",
		},
		{
			name: "empty age range",
			content: `
analyses:
  - name: x
    domain: fertility
    numerator: {path: a.csv, vocabulary: single_year}
    population: {path: b.csv, vocabulary: range}
    age_range: {from: 60, to: 64}
    reference: {strategy: mean_baseline, window: {from: 2017, to: 2019}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "no age groups within 60-64",
		},
		{
			name: "weights outside domain",
			content: `
analyses:
  - name: x
    domain: fertility
    numerator: {path: a.csv, vocabulary: single_year}
    population: {path: b.csv, vocabulary: range}
    weights:
      - {age_group: "5-9", weight: 1}
      - {age_group: "15-19", weight: 1}
    reference: {strategy: mean_baseline, window: {from: 2017, to: 2019}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "weight for 5-9 outside the fertility age groups",
		},
		{
			name: "skipped year in window",
			content: `
analyses:
  - name: x
    domain: mortality
    numerator: {path: a.csv, vocabulary: single_year}
    population: {path: b.csv, vocabulary: range}
    filter: {skip_years: [2020]}
    reference: {strategy: linear_trend, window: {from: 2015, to: 2020}}
    output_years: {from: 2011, to: 2023}
    output: {dir: out}
`,
			wantErr: "contains skipped year 2020",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DuplicateNames(t *testing.T) {
	f := &File{Analyses: DefaultAnalyses("data", "out")}
	f.Analyses[1].Name = f.Analyses[0].Name

	err := f.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `analysis "asmr": duplicate name`)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, os.IsNotExist(err))
}

func TestDefaults(t *testing.T) {
	f, err := Defaults("data", "out")
	require.NoError(t, err)

	names := make([]string, 0, len(f.Analyses))
	for _, a := range f.Analyses {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"asmr", "asmr-0-19", "asfr", "asmr-mean"}, names)

	byName := make(map[string]Analysis)
	for _, a := range f.Analyses {
		byName[a.Name] = a
	}

	asfr := byName["asfr"]
	assert.Equal(t, models.Fertility, asfr.Domain)
	assert.Contains(t, asfr.Population.ExcludeGeos, "Germany", "fertility population excludes Germany")
	assert.Contains(t, asfr.Numerator.ExcludeGeos, "Germany", "births follow the population exclusion")
	assert.NotContains(t, asfr.Filter.ExcludeGeos, "Germany", "exclusion is per file")
	assert.NotContains(t, byName["asmr"].Filter.ExcludeGeos, "Germany")
	assert.Empty(t, byName["asmr"].Population.ExcludeGeos)
	assert.Equal(t, "Females", asfr.Population.Sex)
	assert.Equal(t, filepath.Join("data", DatasetBirths+".csv"), asfr.Numerator.Path)

	ws, err := byName["asmr-0-19"].StandardWeights()
	require.NoError(t, err)
	assert.Equal(t, 4, ws.Len())

	ws, err = asfr.StandardWeights()
	require.NoError(t, err)
	assert.Equal(t, len(models.FertilityAgeGroups), ws.Len())

	assert.Equal(t, reference.StrategyLinearTrend, byName["asmr"].Reference.Strategy)
	assert.Equal(t, reference.StrategyMeanBaseline, byName["asmr-mean"].Reference.Strategy)
}

func TestDefaults_ExclusionListsIndependent(t *testing.T) {
	analyses := DefaultAnalyses("data", "out")
	analyses[0].Filter.ExcludeGeos[0] = "changed"
	assert.NotEqual(t, "changed", DefaultAnalyses("data", "out")[0].Filter.ExcludeGeos[0])
}

func TestLoad_ExampleConfig(t *testing.T) {
	f, err := Load(filepath.Join("..", "..", "configs", "analyses.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Analyses, 3)

	plus := f.Analyses[1]
	assert.Equal(t, "asmr-65-plus", plus.Name)
	assert.Equal(t, ingest.Fail, plus.Severity)
	assert.Equal(t, f.Analyses[0].Filter.ExcludeAges, plus.Filter.ExcludeAges, "filter shared via anchor")
	ws, err := plus.StandardWeights()
	require.NoError(t, err)
	assert.Equal(t, 5, ws.Len())

	asfr := f.Analyses[2]
	assert.Equal(t, models.Fertility, asfr.Domain)
	assert.Equal(t, "Females", asfr.Population.Sex)
	assert.Equal(t, []string{"Germany"}, asfr.Population.ExcludeGeos)
	ws, err = asfr.StandardWeights()
	require.NoError(t, err)
	assert.InDelta(t, 5500.0/45000.0, func() float64 { w, _ := ws.Weight("15-19"); return w }(), 1e-12)
}
