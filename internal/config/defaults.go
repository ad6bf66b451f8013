package config

import (
	"path/filepath"

	"github.com/lox/eurorates/internal/ageband"
	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/models"
	"github.com/lox/eurorates/internal/reference"
)

// Eurostat dataset codes of the default inputs.
const (
	DatasetDeaths     = "demo_magec"     // deaths by single year of age and sex
	DatasetBirths     = "demo_fasec"     // live births by mother's age and newborn's sex
	DatasetPopulation = "demo_pjangroup" // population on 1 January by 5-year age group and sex
)

// aggregateAges are age classes that overlap the canonical bands. The finer
// open classes would otherwise collapse into 85+ next to "85 years or over".
var aggregateAges = []string{
	"Total", "TOTAL",
	"Unknown", "UNK",
	"75 years or over", "Y_GE75",
	"80 years or over", "Y_GE80",
	"90 years or over", "Y_GE90",
	"95 years or over", "Y_GE95",
	"100 years or over", "Y_GE100",
	"From 15 to 64 years", "Y15-64",
	"65 years or over", "Y_GE65",
}

// aggregateGeos are groupings and historical territories, never countries.
var aggregateGeos = []string{
	"European Union - 27 countries (from 2020)", "EU27_2020",
	"European Union - 28 countries (2013-2020)", "EU28",
	"European Union - 27 countries (2007-2013)", "EU27_2007",
	"Euro area - 19 countries  (2015-2022)", "EA19",
	"Euro area - 20 countries (from 2023)", "EA20",
	"Euro area (EA11-1999, EA12-2001, EA13-2007, EA15-2008, EA16-2009, EA17-2011, EA18-2014, EA19-2015, EA20-2023)", "EA",
	"European Economic Area (EU27 - 2020 and IS, LI, NO)", "EEA30_2020",
	"European Free Trade Association", "EFTA",
	"Germany including former GDR", "DE_TOT",
	"France (metropolitan)", "FX",
}

var geoAliases = map[string]string{
	"Germany (until 1990 former territory of the FRG)":                  "Germany",
	"Kosovo (under United Nations Security Council Resolution 1244/99)": "Kosovo",
	"T\u00fcrkiye": "Turkey",
}

func rules(extraGeos ...string) ingest.Rules {
	return ingest.Rules{
		ExcludeAges: append([]string(nil), aggregateAges...),
		ExcludeGeos: append(append([]string(nil), aggregateGeos...), extraGeos...),
		GeoAliases:  geoAliases,
		MinYear:     2011,
		SkipYears:   []int{2024},
	}
}

func deaths(dataDir string) ingest.FileSpec {
	return ingest.FileSpec{
		Dataset:    DatasetDeaths,
		Path:       filepath.Join(dataDir, DatasetDeaths+".csv"),
		Vocabulary: ageband.SingleYear,
		Columns:    ingest.DefaultColumns(),
		Sex:        "Total",
	}
}

func population(dataDir, sex string) ingest.FileSpec {
	return ingest.FileSpec{
		Dataset:    DatasetPopulation,
		Path:       filepath.Join(dataDir, DatasetPopulation+".csv"),
		Vocabulary: ageband.Range,
		Columns:    ingest.DefaultColumns(),
		Sex:        sex,
	}
}

// fertilityExcludedGeos lists entities left out of the fertility analysis.
func fertilityExcludedGeos() []string {
	return []string{"Germany", "DE"}
}

func femalePopulation(dataDir string) ingest.FileSpec {
	spec := population(dataDir, "Females")
	spec.ExcludeGeos = fertilityExcludedGeos()
	return spec
}

var (
	outputYears = reference.Window{From: 2011, To: 2023}
	trendWindow = reference.Window{From: 2015, To: 2019}
	meanWindow  = reference.Window{From: 2017, To: 2019}
)

// DefaultAnalyses returns the standard analyses reading snapshots from
// dataDir and writing under outDir.
func DefaultAnalyses(dataDir, outDir string) []Analysis {
	out := func(name string) Output {
		return Output{Dir: filepath.Join(outDir, name), XLSX: true, Chart: true}
	}

	return []Analysis{
		{
			Name:        "asmr",
			Domain:      models.Mortality,
			Numerator:   deaths(dataDir),
			Population:  population(dataDir, "Total"),
			Filter:      rules(),
			Reference:   Reference{Strategy: reference.StrategyLinearTrend, Window: trendWindow},
			OutputYears: outputYears,
			Output:      out("asmr"),
			Severity:    ingest.Reject,
		},
		{
			Name:        "asmr-0-19",
			Domain:      models.Mortality,
			Numerator:   deaths(dataDir),
			Population:  population(dataDir, "Total"),
			Filter:      rules(),
			AgeRange:    &AgeRange{From: 0, To: 19},
			Reference:   Reference{Strategy: reference.StrategyMeanBaseline, Window: meanWindow},
			OutputYears: outputYears,
			Output:      out("asmr-0-19"),
			Severity:    ingest.Reject,
		},
		{
			Name:   "asfr",
			Domain: models.Fertility,
			Numerator: ingest.FileSpec{
				Dataset:    DatasetBirths,
				Path:       filepath.Join(dataDir, DatasetBirths+".csv"),
				Vocabulary: ageband.SingleYear,
				Columns:    ingest.DefaultColumns(),
				Sex:        "Total",
				// a birth without population is fatal, so births follow the population exclusion
				ExcludeGeos: fertilityExcludedGeos(),
			},
			Population:  femalePopulation(dataDir),
			Filter:      rules(),
			Reference:   Reference{Strategy: reference.StrategyMeanBaseline, Window: meanWindow},
			OutputYears: outputYears,
			Output:      out("asfr"),
			Severity:    ingest.Reject,
		},
		{
			Name:        "asmr-mean",
			Domain:      models.Mortality,
			Numerator:   deaths(dataDir),
			Population:  population(dataDir, "Total"),
			Filter:      rules(),
			Reference:   Reference{Strategy: reference.StrategyMeanBaseline, Window: meanWindow},
			OutputYears: outputYears,
			Output:      out("asmr-mean"),
			Severity:    ingest.Reject,
		},
	}
}

// Defaults wraps DefaultAnalyses in a validated File.
func Defaults(dataDir, outDir string) (*File, error) {
	f := &File{Analyses: DefaultAnalyses(dataDir, outDir)}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}
