package models

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

type Measure int

const (
	Deaths Measure = iota
	Births
	Population
)

func (m Measure) String() string {
	switch m {
	case Deaths:
		return "deaths"
	case Births:
		return "births"
	case Population:
		return "population"
	default:
		return fmt.Sprintf("measure(%d)", int(m))
	}
}

// Domain selects the age vocabulary, numerator and scale of an analysis.
type Domain string

const (
	Mortality Domain = "mortality"
	Fertility Domain = "fertility"
)

// AgeGroup is a canonical 5-year band such as "0-4", or the open band "85+".
type AgeGroup string

const OpenEnded AgeGroup = "85+"

const openEndedFrom = 85

var MortalityAgeGroups = []AgeGroup{
	"0-4", "5-9", "10-14", "15-19", "20-24", "25-29", "30-34", "35-39", "40-44",
	"45-49", "50-54", "55-59", "60-64", "65-69", "70-74", "75-79", "80-84", OpenEnded,
}

var FertilityAgeGroups = []AgeGroup{
	"15-19", "20-24", "25-29", "30-34", "35-39", "40-44", "45-49",
}

// Band formats a closed band as "from-to".
func Band(from, to int) AgeGroup {
	return AgeGroup(strconv.Itoa(from) + "-" + strconv.Itoa(to))
}

// Bounds returns the inclusive bounds of g. The open band reports to = -1.
func (g AgeGroup) Bounds() (from, to int, ok bool) {
	if g == OpenEnded {
		return openEndedFrom, -1, true
	}
	a, b, found := strings.Cut(string(g), "-")
	if !found {
		return 0, 0, false
	}
	from, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, false
	}
	to, err = strconv.Atoi(b)
	if err != nil || to < from {
		return 0, 0, false
	}
	return from, to, true
}

func (d Domain) Valid() bool {
	return d == Mortality || d == Fertility
}

// AgeGroups returns the closed vocabulary of d in declared order.
func (d Domain) AgeGroups() []AgeGroup {
	switch d {
	case Fertility:
		return FertilityAgeGroups
	default:
		return MortalityAgeGroups
	}
}

func (d Domain) Contains(g AgeGroup) bool {
	for _, ag := range d.AgeGroups() {
		if ag == g {
			return true
		}
	}
	return false
}

// Scale is the per-population multiplier of standardized rates.
func (d Domain) Scale() float64 {
	if d == Fertility {
		return 1000
	}
	return 100000
}

func (d Domain) Numerator() Measure {
	if d == Fertility {
		return Births
	}
	return Deaths
}

// RateName is the conventional abbreviation of the domain's standardized rate.
func (d Domain) RateName() string {
	if d == Fertility {
		return "ASFR"
	}
	return "ASMR"
}

type RawObservation struct {
	Geo      string
	Year     int
	AgeLabel string
	Sex      string
	Value    float64
	Measure  Measure
	Line     int
}

type Key struct {
	Country  string
	Year     int
	AgeGroup AgeGroup
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%s", k.Country, k.Year, k.AgeGroup)
}

// Less orders keys by country, year and age group as written.
func (k Key) Less(o Key) bool {
	if k.Country != o.Country {
		return k.Country < o.Country
	}
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.AgeGroup < o.AgeGroup
}

// Record is one tidy row: a numerator and its population for a key.
type Record struct {
	Key
	Numerator  float64
	Population float64
}

type Rate struct {
	Country string
	Year    int
	Value   sql.NullFloat64
}

type SeriesRow struct {
	Country   string
	Year      int
	Observed  sql.NullFloat64
	Reference sql.NullFloat64
	Deviation sql.NullFloat64 // percent
}
