// Package ageband maps agency age labels onto canonical 5-year age groups.
package ageband

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lox/eurorates/internal/models"
)

// Vocabulary identifies the labelling scheme of an input file.
type Vocabulary string

const (
	SingleYear Vocabulary = "single_year" // "Less than 1 year", "1 year", "N years"
	Range      Vocabulary = "range"       // "From X to Y years", "85 years or over"
	Code       Vocabulary = "code"        // SDMX codes: "Y_LT1", "Y7", "Y5-9", "Y_GE85"
)

func ParseVocabulary(s string) (Vocabulary, error) {
	switch v := Vocabulary(strings.ToLower(strings.TrimSpace(s))); v {
	case SingleYear, Range, Code:
		return v, nil
	case "":
		return "", fmt.Errorf("empty age vocabulary")
	default:
		return "", fmt.Errorf("unknown age vocabulary %q", s)
	}
}

var (
	lessThanRe   = regexp.MustCompile(`^Less than (\d+) years?$`)
	singleYearRe = regexp.MustCompile(`^(\d+) years?$`)
	orOverRe     = regexp.MustCompile(`^(\d+) years or over$`)
	fromToRe     = regexp.MustCompile(`^From (\d+) to (\d+) years$`)
	openClassRe  = regexp.MustCompile(`^Open-ended age class$`)

	codeLessRe   = regexp.MustCompile(`^Y_LT(\d+)$`)
	codeSingleRe = regexp.MustCompile(`^Y(\d+)$`)
	codeRangeRe  = regexp.MustCompile(`^Y(\d+)-(\d+)$`)
	codeOverRe   = regexp.MustCompile(`^Y_GE(\d+)$`)
)

const openFrom = 85

type Normalizer struct {
	vocab  Vocabulary
	domain models.Domain
}

func New(vocab Vocabulary, domain models.Domain) *Normalizer {
	return &Normalizer{vocab: vocab, domain: domain}
}

// Normalize returns the canonical age group for a raw label. It fails with
// models.ErrUnparseableAge when the label matches no pattern of the vocabulary,
// and with models.ErrOutOfDomain when the band exists but lies outside the domain.
func (n *Normalizer) Normalize(label string) (models.AgeGroup, error) {
	s := n.labelPart(label)

	var g models.AgeGroup
	var ok bool
	switch n.vocab {
	case SingleYear:
		g, ok = parseSingleYear(s)
	case Range:
		g, ok = parseRange(s)
	case Code:
		g, ok = parseCode(s)
	default:
		return "", fmt.Errorf("unknown age vocabulary %q", n.vocab)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnparseableAge, label)
	}
	if !n.domain.Contains(g) {
		return "", fmt.Errorf("%w: %q -> %s", models.ErrOutOfDomain, label, g)
	}
	return g, nil
}

// labelPart picks the relevant side of an SDMX "CODE:Label" cell.
func (n *Normalizer) labelPart(label string) string {
	s := strings.TrimSpace(label)
	code, text, found := strings.Cut(s, ":")
	if !found {
		return s
	}
	if n.vocab == Code {
		return strings.TrimSpace(code)
	}
	return strings.TrimSpace(text)
}

func parseSingleYear(s string) (models.AgeGroup, bool) {
	if m := lessThanRe.FindStringSubmatch(s); m != nil {
		return lessThan(m[1])
	}
	if m := singleYearRe.FindStringSubmatch(s); m != nil {
		age, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return Bucket(age), true
	}
	if m := orOverRe.FindStringSubmatch(s); m != nil {
		return orOver(m[1])
	}
	if openClassRe.MatchString(s) {
		return models.OpenEnded, true
	}
	return "", false
}

func parseRange(s string) (models.AgeGroup, bool) {
	if m := fromToRe.FindStringSubmatch(s); m != nil {
		from, err1 := strconv.Atoi(m[1])
		to, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || to < from {
			return "", false
		}
		return closedBand(from, to), true
	}
	if m := orOverRe.FindStringSubmatch(s); m != nil {
		return orOver(m[1])
	}
	if m := lessThanRe.FindStringSubmatch(s); m != nil {
		return lessThan(m[1])
	}
	if openClassRe.MatchString(s) {
		return models.OpenEnded, true
	}
	return "", false
}

func parseCode(s string) (models.AgeGroup, bool) {
	switch {
	case s == "Y_OPEN":
		return models.OpenEnded, true
	case codeLessRe.MatchString(s):
		return lessThan(codeLessRe.FindStringSubmatch(s)[1])
	case codeOverRe.MatchString(s):
		return orOver(codeOverRe.FindStringSubmatch(s)[1])
	case codeRangeRe.MatchString(s):
		m := codeRangeRe.FindStringSubmatch(s)
		from, err1 := strconv.Atoi(m[1])
		to, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || to < from {
			return "", false
		}
		return closedBand(from, to), true
	case codeSingleRe.MatchString(s):
		age, err := strconv.Atoi(codeSingleRe.FindStringSubmatch(s)[1])
		if err != nil {
			return "", false
		}
		return Bucket(age), true
	}
	return "", false
}

// lessThan handles "Less than N", the band 0..N-1.
func lessThan(n string) (models.AgeGroup, bool) {
	v, err := strconv.Atoi(n)
	if err != nil || v < 1 {
		return "", false
	}
	return closedBand(0, v-1), true
}

// closedBand collapses a band lying inside one 5-year group ("1-4", "0") into
// that group. Wider bands are returned as written.
func closedBand(from, to int) models.AgeGroup {
	if from < openFrom && Bucket(from) == Bucket(to) {
		return Bucket(from)
	}
	return models.Band(from, to)
}

// orOver handles open-ended labels. Bands opening below 85 are umbrella classes
// that overlap the 5-year bands; they are reported as a non-canonical "N+" group.
func orOver(n string) (models.AgeGroup, bool) {
	v, err := strconv.Atoi(n)
	if err != nil {
		return "", false
	}
	if v >= openFrom {
		return models.OpenEnded, true
	}
	return models.AgeGroup(strconv.Itoa(v) + "+"), true
}

// Bucket maps a single year of age to its 5-year group.
func Bucket(age int) models.AgeGroup {
	if age >= openFrom {
		return models.OpenEnded
	}
	if age < 0 {
		age = 0
	}
	lo := age / 5 * 5
	return models.Band(lo, lo+4)
}
