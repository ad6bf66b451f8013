package ageband

import (
	"errors"
	"strconv"
	"testing"

	"github.com/lox/eurorates/internal/models"
)

func TestBucket(t *testing.T) {
	tests := []struct {
		age  int
		want models.AgeGroup
	}{
		{0, "0-4"},
		{4, "0-4"},
		{5, "5-9"},
		{17, "15-19"},
		{84, "80-84"},
		{85, "85+"},
		{101, "85+"},
	}
	for _, tt := range tests {
		if got := Bucket(tt.age); got != tt.want {
			t.Errorf("Bucket(%d) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		vocab   Vocabulary
		domain  models.Domain
		label   string
		want    models.AgeGroup
		wantErr error
	}{
		{"infant", SingleYear, models.Mortality, "Less than 1 year", "0-4", nil},
		{"one year", SingleYear, models.Mortality, "1 year", "0-4", nil},
		{"plural years", SingleYear, models.Mortality, "37 years", "35-39", nil},
		{"single year at open bound", SingleYear, models.Mortality, "85 years", "85+", nil},
		{"single year over", SingleYear, models.Mortality, "100 years or over", "85+", nil},
		{"open-ended class", SingleYear, models.Mortality, "Open-ended age class", "85+", nil},
		{"sdmx both labels", SingleYear, models.Mortality, "Y12:12 years", "10-14", nil},
		{"range", Range, models.Mortality, "From 40 to 44 years", "40-44", nil},
		{"range open", Range, models.Mortality, "85 years or over", "85+", nil},
		{"range inside one group", Range, models.Mortality, "From 1 to 4 years", "0-4", nil},
		{"range less than five", Range, models.Mortality, "Less than 5 years", "0-4", nil},
		{"range umbrella 75+", Range, models.Mortality, "75 years or over", "", models.ErrOutOfDomain},
		{"range too wide", Range, models.Mortality, "From 15 to 64 years", "", models.ErrOutOfDomain},
		{"fertility keeps 15-19", Range, models.Fertility, "From 15 to 19 years", "15-19", nil},
		{"fertility keeps 45-49", Range, models.Fertility, "From 45 to 49 years", "45-49", nil},
		{"fertility drops 10-14", Range, models.Fertility, "From 10 to 14 years", "", models.ErrOutOfDomain},
		{"fertility drops 50-54", Range, models.Fertility, "From 50 to 54 years", "", models.ErrOutOfDomain},
		{"fertility drops 50+", Range, models.Fertility, "50 years or over", "", models.ErrOutOfDomain},
		{"fertility single year", SingleYear, models.Fertility, "23 years", "20-24", nil},
		{"fertility less than 15", SingleYear, models.Fertility, "Less than 15 years", "", models.ErrOutOfDomain},
		{"code infant", Code, models.Mortality, "Y_LT1", "0-4", nil},
		{"code single", Code, models.Mortality, "Y62", "60-64", nil},
		{"code band", Code, models.Mortality, "Y5-9", "5-9", nil},
		{"code partial band", Code, models.Mortality, "Y1-4", "0-4", nil},
		{"code under five", Code, models.Mortality, "Y_LT5", "0-4", nil},
		{"code open", Code, models.Mortality, "Y_GE85", "85+", nil},
		{"code open-ended", Code, models.Mortality, "Y_OPEN", "85+", nil},
		{"code with label", Code, models.Mortality, "Y_GE90:90 years or over", "85+", nil},
		{"garbage", SingleYear, models.Mortality, "about forty", "", models.ErrUnparseableAge},
		{"total is not an age", Range, models.Mortality, "Total", "", models.ErrUnparseableAge},
		{"single-year label in range file", Range, models.Mortality, "7 years", "", models.ErrUnparseableAge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.vocab, tt.domain).Normalize(tt.label)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Normalize(%q) error = %v, want %v", tt.label, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tt.label, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalize_CanonicalLabelsRejected(t *testing.T) {
	for _, vocab := range []Vocabulary{SingleYear, Range, Code} {
		for _, g := range models.MortalityAgeGroups {
			_, err := New(vocab, models.Mortality).Normalize(string(g))
			if !errors.Is(err, models.ErrUnparseableAge) {
				t.Errorf("%s: Normalize(%q) error = %v, want ErrUnparseableAge", vocab, g, err)
			}
		}
	}
}

func TestNormalize_OutputInDomain(t *testing.T) {
	n := New(SingleYear, models.Mortality)
	for age := 0; age <= 110; age++ {
		label := "Less than 1 year"
		if age == 1 {
			label = "1 year"
		} else if age > 1 {
			label = strconv.Itoa(age) + " years"
		}
		g, err := n.Normalize(label)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", label, err)
		}
		if !models.Mortality.Contains(g) {
			t.Errorf("Normalize(%q) = %q, not in mortality vocabulary", label, g)
		}
	}
}

func TestParseVocabulary(t *testing.T) {
	if v, err := ParseVocabulary(" Range "); err != nil || v != Range {
		t.Errorf("ParseVocabulary(\" Range \") = %q, %v; want range", v, err)
	}
	if _, err := ParseVocabulary("decades"); err == nil {
		t.Error("ParseVocabulary(\"decades\") succeeded, want error")
	}
}
