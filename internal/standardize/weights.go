package standardize

import (
	"fmt"
	"math"

	"github.com/lox/eurorates/internal/models"
)

// Entry is one age group weight as written in configuration.
type Entry struct {
	AgeGroup models.AgeGroup `yaml:"age_group" validate:"required"`
	Weight   float64         `yaml:"weight" validate:"gte=0"`
}

// Weights is a reference population age distribution, normalized to sum to 1.
// Groups keep their declared order, which is also the summation order.
type Weights struct {
	groups []models.AgeGroup
	w      map[models.AgeGroup]float64
}

// esp2013 is the 2013 European Standard Population per 100,000, with 85-89,
// 90-94 and 95+ merged into 85+.
var esp2013 = []Entry{
	{"0-4", 5000}, {"5-9", 5500}, {"10-14", 5500}, {"15-19", 5500},
	{"20-24", 6000}, {"25-29", 6000}, {"30-34", 6500}, {"35-39", 7000},
	{"40-44", 7000}, {"45-49", 7000}, {"50-54", 7000}, {"55-59", 6500},
	{"60-64", 6000}, {"65-69", 5500}, {"70-74", 5000}, {"75-79", 4000},
	{"80-84", 2500}, {models.OpenEnded, 2500},
}

// NewWeights normalizes entries to sum to 1. Entries must name distinct
// groups, carry non-negative finite weights and have a positive total.
func NewWeights(entries []Entry) (*Weights, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("weights: no entries")
	}
	var total float64
	seen := make(map[models.AgeGroup]bool, len(entries))
	for _, e := range entries {
		if seen[e.AgeGroup] {
			return nil, fmt.Errorf("weights: duplicate age group %s", e.AgeGroup)
		}
		seen[e.AgeGroup] = true
		if e.Weight < 0 || math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, fmt.Errorf("weights: invalid weight %v for %s", e.Weight, e.AgeGroup)
		}
		total += e.Weight
	}
	if total <= 0 {
		return nil, fmt.Errorf("weights: total weight is %v", total)
	}

	ws := &Weights{
		groups: make([]models.AgeGroup, 0, len(entries)),
		w:      make(map[models.AgeGroup]float64, len(entries)),
	}
	for _, e := range entries {
		ws.groups = append(ws.groups, e.AgeGroup)
		ws.w[e.AgeGroup] = e.Weight / total
	}
	return ws, nil
}

// ESP2013 returns the European Standard Population over all mortality age groups.
func ESP2013() *Weights {
	ws, err := NewWeights(esp2013)
	if err != nil {
		panic(err)
	}
	return ws
}

// ForDomain returns the default weights of a domain: the full ESP2013 for
// mortality, its 15-49 subset for fertility.
func ForDomain(d models.Domain) *Weights {
	if d == models.Fertility {
		ws, err := ESP2013().Subset(15, 49)
		if err != nil {
			panic(err)
		}
		return ws
	}
	return ESP2013()
}

// Subset keeps the groups lying within [from, to] and rescales them to sum
// to 1. A negative to keeps the open-ended group as well.
func (ws *Weights) Subset(from, to int) (*Weights, error) {
	var entries []Entry
	for _, g := range ws.groups {
		lo, hi, ok := g.Bounds()
		if !ok || lo < from {
			continue
		}
		if to >= 0 && (hi < 0 || hi > to) {
			continue
		}
		entries = append(entries, Entry{AgeGroup: g, Weight: ws.w[g]})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("weights: no age groups within %d-%d", from, to)
	}
	return NewWeights(entries)
}

// Groups returns the weighted age groups in declared order.
func (ws *Weights) Groups() []models.AgeGroup {
	return append([]models.AgeGroup(nil), ws.groups...)
}

func (ws *Weights) Weight(g models.AgeGroup) (float64, bool) {
	v, ok := ws.w[g]
	return v, ok
}

func (ws *Weights) Len() int {
	return len(ws.groups)
}

// Sum adds the weights in declared order. It is 1 up to rounding.
func (ws *Weights) Sum() float64 {
	var s float64
	for _, g := range ws.groups {
		s += ws.w[g]
	}
	return s
}

// Entries returns the normalized weights in declared order.
func (ws *Weights) Entries() []Entry {
	out := make([]Entry, 0, len(ws.groups))
	for _, g := range ws.groups {
		out = append(out, Entry{AgeGroup: g, Weight: ws.w[g]})
	}
	return out
}
