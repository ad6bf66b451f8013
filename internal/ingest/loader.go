package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/lox/eurorates/internal/ageband"
	"github.com/lox/eurorates/internal/metrics"
	"github.com/lox/eurorates/internal/models"
)

// Severity controls how malformed rows are handled.
type Severity string

const (
	Reject Severity = "reject" // drop the row and keep loading
	Fail   Severity = "fail"   // abort the load on the first malformed row
)

const maxLoggedRejections = 10

type LoadStats struct {
	Read       int
	Kept       int
	Dropped    map[string]int
	Rejected   int
	Rejections error // *multierror.Error with one entry per rejected row, or nil
}

func (s LoadStats) DroppedTotal() int {
	n := 0
	for _, v := range s.Dropped {
		n += v
	}
	return n
}

// Loader reads snapshot files through the entity filter and age normalizer
// into an Aggregator.
type Loader struct {
	Analysis string
	Domain   models.Domain
	Filter   *Filter
	Severity Severity
	Verbose  bool
}

func (l *Loader) LoadFile(ctx context.Context, spec FileSpec, measure models.Measure, agg *Aggregator) (LoadStats, error) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return LoadStats{}, err
	}
	defer f.Close()

	stats, err := l.Load(ctx, f, spec, measure, agg)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", spec.Path, err)
	}
	return stats, nil
}

func (l *Loader) Load(ctx context.Context, r io.Reader, spec FileSpec, measure models.Measure, agg *Aggregator) (LoadStats, error) {
	stats := LoadStats{Dropped: make(map[string]int)}
	ms := measure.String()

	rd, err := NewReader(r, measure, spec.Columns, spec.Sex != "")
	if err != nil {
		return stats, err
	}
	normalizer := ageband.New(spec.Vocabulary, l.Domain)
	filter := l.Filter.WithExcludedGeos(spec.ExcludeGeos)

	var rejections *multierror.Error
	reject := func(err error) error {
		stats.Rejected++
		metrics.RowsRejected.WithLabelValues(l.Analysis, ms).Inc()
		if l.Severity == Fail {
			return err
		}
		rejections = multierror.Append(rejections, err)
		if l.Verbose || stats.Rejected <= maxLoggedRejections {
			log.Printf("ingest: %s: rejected row: %v", l.Analysis, err)
		}
		return nil
	}
	drop := func(reason string) {
		stats.Dropped[reason]++
		metrics.RowsDropped.WithLabelValues(l.Analysis, ms, reason).Inc()
	}

	for {
		if stats.Read%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}

		obs, err := rd.Next()
		if err == io.EOF {
			break
		}
		stats.Read++
		metrics.RowsRead.WithLabelValues(l.Analysis, ms).Inc()
		var valueErr *ValueError
		if err != nil && !errors.As(err, &valueErr) {
			if !errors.Is(err, models.ErrMalformedValue) {
				return stats, err
			}
			if err := reject(err); err != nil {
				return stats, err
			}
			continue
		}

		// Rows the filter drops are dropped even when their value is bad.
		if !MatchSex(obs.Sex, spec.Sex) {
			drop(DropSex)
			continue
		}
		if reason, keep := filter.Apply(&obs); !keep {
			drop(reason)
			continue
		}
		if valueErr != nil {
			if err := reject(valueErr); err != nil {
				return stats, err
			}
			continue
		}

		if flags := ValidateObservation(&obs); len(flags) > 0 {
			err := fmt.Errorf("%w: line %d: %s", models.ErrMalformedValue, obs.Line, flagsString(flags))
			if err := reject(err); err != nil {
				return stats, err
			}
			continue
		}

		group, err := normalizer.Normalize(obs.AgeLabel)
		if errors.Is(err, models.ErrOutOfDomain) {
			drop(DropAgeOutOfDomain)
			continue
		}
		if err != nil {
			if err := reject(fmt.Errorf("line %d: %w", obs.Line, err)); err != nil {
				return stats, err
			}
			continue
		}

		key := models.Key{Country: obs.Geo, Year: obs.Year, AgeGroup: group}
		if err := agg.Add(measure, key, obs.Value); err != nil {
			return stats, fmt.Errorf("line %d: %w", obs.Line, err)
		}
		stats.Kept++
	}

	if rejections != nil {
		stats.Rejections = rejections.ErrorOrNil()
		log.Printf("ingest: %s: %s: rejected %d of %d rows", l.Analysis, ms, stats.Rejected, stats.Read)
	}
	if l.Verbose {
		for reason, n := range stats.Dropped {
			log.Printf("ingest: %s: %s: dropped %d rows (%s)", l.Analysis, ms, n, reason)
		}
	}
	return stats, nil
}
