package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/lox/eurorates/internal/models"
)

// Drop reasons, also used as metric labels.
const (
	DropAgeAggregate   = "age_aggregate"
	DropAgeOutOfDomain = "age_out_of_domain"
	DropGeoExcluded    = "geo_excluded"
	DropGeoNotIncluded = "geo_not_included"
	DropYearBeforeMin  = "year_before_min"
	DropYearSkipped    = "year_skipped"
	DropSex            = "sex"
)

// Rules is the configurable part of the entity filter. Names may be given as
// SDMX codes ("DE") or labels ("Germany").
type Rules struct {
	ExcludeAges []string          `yaml:"exclude_ages"`
	ExcludeGeos []string          `yaml:"exclude_geos"`
	IncludeGeos []string          `yaml:"include_geos"` // empty means every non-excluded entity
	GeoAliases  map[string]string `yaml:"geo_aliases"`
	MinYear     int               `yaml:"min_year"`
	SkipYears   []int             `yaml:"skip_years"`
}

type Filter struct {
	excludeAges map[string]struct{}
	excludeGeos map[string]struct{}
	includeGeos map[string]struct{}
	aliases     map[string]string
	minYear     int
	skipYears   map[int]struct{}
}

func NewFilter(r Rules) *Filter {
	f := &Filter{
		excludeAges: stringSet(r.ExcludeAges),
		excludeGeos: stringSet(r.ExcludeGeos),
		includeGeos: stringSet(r.IncludeGeos),
		aliases:     make(map[string]string, len(r.GeoAliases)),
		minYear:     r.MinYear,
		skipYears:   make(map[int]struct{}, len(r.SkipYears)),
	}
	for from, to := range r.GeoAliases {
		f.aliases[Canonical(from)] = Canonical(to)
	}
	for _, y := range r.SkipYears {
		f.skipYears[y] = struct{}{}
	}
	return f
}

// WithExcludedGeos returns a filter that also excludes geos. f is unchanged.
func (f *Filter) WithExcludedGeos(geos []string) *Filter {
	if len(geos) == 0 {
		return f
	}
	g := *f
	g.excludeGeos = make(map[string]struct{}, len(f.excludeGeos)+len(geos))
	for k := range f.excludeGeos {
		g.excludeGeos[k] = struct{}{}
	}
	for k := range stringSet(geos) {
		g.excludeGeos[k] = struct{}{}
	}
	return &g
}

// Country returns the canonical country name for a geo cell.
func (f *Filter) Country(geo string) string {
	name := Canonical(labelOf(geo))
	if alias, ok := f.aliases[name]; ok {
		return alias
	}
	return name
}

// Apply canonicalizes obs.Geo in place and reports whether the row is kept.
// When it is not, reason is one of the Drop* constants.
func (f *Filter) Apply(obs *models.RawObservation) (reason string, keep bool) {
	if matchAny(f.excludeAges, obs.AgeLabel) {
		return DropAgeAggregate, false
	}

	raw := obs.Geo
	obs.Geo = f.Country(raw)
	if matchAny(f.excludeGeos, raw) || contains(f.excludeGeos, obs.Geo) {
		return DropGeoExcluded, false
	}
	if len(f.includeGeos) > 0 && !matchAny(f.includeGeos, raw) && !contains(f.includeGeos, obs.Geo) {
		return DropGeoNotIncluded, false
	}

	if obs.Year < f.minYear {
		return DropYearBeforeMin, false
	}
	if _, ok := f.skipYears[obs.Year]; ok {
		return DropYearSkipped, false
	}
	return "", true
}

// MatchSex reports whether a sex cell matches the wanted value, by code or label.
func MatchSex(cell, want string) bool {
	if want == "" {
		return true
	}
	w := Canonical(want)
	for _, p := range cellParts(cell) {
		if strings.EqualFold(p, w) {
			return true
		}
	}
	return false
}

// Canonical trims, NFC-normalizes and collapses inner whitespace of a name.
func Canonical(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func stringSet(vals []string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[Canonical(v)] = struct{}{}
	}
	return m
}

func contains(set map[string]struct{}, v string) bool {
	_, ok := set[v]
	return ok
}

func matchAny(set map[string]struct{}, cell string) bool {
	for _, p := range cellParts(cell) {
		if contains(set, p) {
			return true
		}
	}
	return false
}

// cellParts returns the whole cell plus its code and label for "CODE:Label" cells.
func cellParts(cell string) []string {
	c := Canonical(cell)
	code, label, found := strings.Cut(c, ":")
	if !found {
		return []string{c}
	}
	return []string{c, Canonical(code), Canonical(label)}
}

func labelOf(cell string) string {
	if _, label, found := strings.Cut(cell, ":"); found {
		return label
	}
	return cell
}
