package standardize

import (
	"math"
	"testing"

	"github.com/lox/eurorates/internal/models"
)

func TestWeights_SumToOne(t *testing.T) {
	tests := []struct {
		name    string
		weights func() (*Weights, error)
		groups  int
	}{
		{"esp2013", func() (*Weights, error) { return ESP2013(), nil }, 18},
		{"fertility", func() (*Weights, error) { return ForDomain(models.Fertility), nil }, 7},
		{"ages 0-19", func() (*Weights, error) { return ESP2013().Subset(0, 19) }, 4},
		{"ages 65 and over", func() (*Weights, error) { return ESP2013().Subset(65, -1) }, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, err := tt.weights()
			if err != nil {
				t.Fatalf("weights: %v", err)
			}
			if got := ws.Sum(); math.Abs(got-1) > 1e-9 {
				t.Errorf("Sum() = %v, want 1 within 1e-9", got)
			}
			if ws.Len() != tt.groups {
				t.Errorf("Len() = %d, want %d", ws.Len(), tt.groups)
			}
		})
	}
}

func TestWeights_SubsetRescales(t *testing.T) {
	ws, err := ESP2013().Subset(0, 19)
	if err != nil {
		t.Fatal(err)
	}
	// 5000 / (5000 + 3*5500)
	want := 5000.0 / 21500.0
	if got, _ := ws.Weight("0-4"); math.Abs(got-want) > 1e-12 {
		t.Errorf("Weight(0-4) = %v, want %v", got, want)
	}
	if _, ok := ws.Weight("20-24"); ok {
		t.Error("Weight(20-24) present in 0-19 subset")
	}
	groups := ws.Groups()
	if groups[0] != "0-4" || groups[3] != "15-19" {
		t.Errorf("Groups() = %v, want declared order", groups)
	}
}

func TestNewWeights_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
	}{
		{"empty", nil},
		{"duplicate", []Entry{{"0-4", 1}, {"0-4", 2}}},
		{"negative", []Entry{{"0-4", 1}, {"5-9", -1}}},
		{"nan", []Entry{{"0-4", math.NaN()}}},
		{"zero total", []Entry{{"0-4", 0}, {"5-9", 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWeights(tt.entries); err == nil {
				t.Errorf("NewWeights(%v) succeeded, want error", tt.entries)
			}
		})
	}
}

func TestWeights_SubsetEmpty(t *testing.T) {
	if _, err := ForDomain(models.Fertility).Subset(60, 64); err == nil {
		t.Error("Subset(60, 64) of fertility weights succeeded, want error")
	}
}

func records(country string, year int, numerator, population float64, groups []models.AgeGroup) []models.Record {
	out := make([]models.Record, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.Record{
			Key:        models.Key{Country: country, Year: year, AgeGroup: g},
			Numerator:  numerator,
			Population: population,
		})
	}
	return out
}

func TestStandardizer_UniformRate(t *testing.T) {
	// every group at 1 per 100 gives 1000 per 100,000 whatever the weights
	recs := records("Austria", 2019, 10, 1000, models.MortalityAgeGroups)
	rates := New(ESP2013(), models.Mortality).Rates(recs)

	if len(rates) != 1 {
		t.Fatalf("Rates() returned %d rows, want 1", len(rates))
	}
	r := rates[0]
	if !r.Value.Valid || math.Abs(r.Value.Float64-1000) > 1e-9 {
		t.Errorf("rate = %+v, want 1000", r.Value)
	}
}

func TestStandardizer_Fertility(t *testing.T) {
	recs := records("Austria", 2019, 50, 1000, models.FertilityAgeGroups)
	rates := New(ForDomain(models.Fertility), models.Fertility).Rates(recs)

	if got := rates[0].Value; !got.Valid || math.Abs(got.Float64-50) > 1e-9 {
		t.Errorf("ASFR = %+v, want 50 per 1000", got)
	}
}

func TestStandardizer_MissingGroupIsUndefined(t *testing.T) {
	recs := records("Austria", 2019, 10, 1000, models.MortalityAgeGroups[1:])
	rates := New(ESP2013(), models.Mortality).Rates(recs)

	if rates[0].Value.Valid {
		t.Errorf("rate = %v, want missing when 0-4 has no record", rates[0].Value.Float64)
	}
}

func TestStandardizer_ZeroPopulationExcluded(t *testing.T) {
	ws, err := NewWeights([]Entry{{"0-4", 1}, {"5-9", 1}})
	if err != nil {
		t.Fatal(err)
	}
	recs := []models.Record{
		{Key: models.Key{Country: "Malta", Year: 2019, AgeGroup: "0-4"}, Numerator: 2, Population: 1000},
		{Key: models.Key{Country: "Malta", Year: 2019, AgeGroup: "5-9"}, Numerator: 1, Population: 0},
	}

	rates := New(ws, models.Mortality).Rates(recs)
	// 0.5 * 2/1000 * 100000
	if got := rates[0].Value; !got.Valid || math.Abs(got.Float64-100) > 1e-9 {
		t.Errorf("rate = %+v, want 100", got)
	}
}

func TestStandardizer_UnweightedGroupsIgnored(t *testing.T) {
	ws, err := ESP2013().Subset(0, 19)
	if err != nil {
		t.Fatal(err)
	}
	recs := records("Austria", 2019, 1, 1000, models.MortalityAgeGroups)
	recs[len(recs)-1].Numerator = 900 // 85+ is outside the subset

	rates := New(ws, models.Mortality).Rates(recs)
	if got := rates[0].Value; !got.Valid || math.Abs(got.Float64-100) > 1e-9 {
		t.Errorf("rate = %+v, want 100", got)
	}
}

func TestStandardizer_NonNegativeFinite(t *testing.T) {
	var recs []models.Record
	for i, g := range models.MortalityAgeGroups {
		recs = append(recs, models.Record{
			Key:        models.Key{Country: "Belgium", Year: 2020, AgeGroup: g},
			Numerator:  float64(i * i),
			Population: float64(1000 + 37*i),
		})
	}
	recs = append(recs, records("Austria", 2020, 0, 500, models.MortalityAgeGroups)...)

	rates := New(ESP2013(), models.Mortality).Rates(recs)
	if len(rates) != 2 || rates[0].Country != "Austria" || rates[1].Country != "Belgium" {
		t.Fatalf("Rates() = %+v, want Austria then Belgium", rates)
	}
	for _, r := range rates {
		if !r.Value.Valid || r.Value.Float64 < 0 || math.IsNaN(r.Value.Float64) || math.IsInf(r.Value.Float64, 0) {
			t.Errorf("%s %d: rate = %+v, want non-negative finite", r.Country, r.Year, r.Value)
		}
	}
}

func TestStandardizer_SortedOutput(t *testing.T) {
	var recs []models.Record
	recs = append(recs, records("Belgium", 2012, 1, 100, models.MortalityAgeGroups)...)
	recs = append(recs, records("Austria", 2013, 1, 100, models.MortalityAgeGroups)...)
	recs = append(recs, records("Austria", 2012, 1, 100, models.MortalityAgeGroups)...)

	rates := New(ESP2013(), models.Mortality).Rates(recs)
	want := []struct {
		country string
		year    int
	}{{"Austria", 2012}, {"Austria", 2013}, {"Belgium", 2012}}
	for i, w := range want {
		if rates[i].Country != w.country || rates[i].Year != w.year {
			t.Errorf("rates[%d] = %s %d, want %s %d", i, rates[i].Country, rates[i].Year, w.country, w.year)
		}
	}
}
