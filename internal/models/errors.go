package models

import "errors"

// Malformed input.
var (
	ErrUnparseableAge = errors.New("unparseable age label")
	ErrMalformedValue = errors.New("malformed value")
	ErrSchemaDrift    = errors.New("unexpected csv header")
)

// ErrOutOfDomain marks a well-formed age band outside the analysis' closed vocabulary.
// Such rows are dropped, not rejected.
var ErrOutOfDomain = errors.New("age band outside target domain")

// Integrity violations abort the affected analysis.
var (
	ErrDuplicatePopulation = errors.New("duplicate population value")
	ErrMissingPopulation   = errors.New("missing population value")
)

var ErrInsufficientData = errors.New("insufficient data")
