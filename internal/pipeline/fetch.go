package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/lox/eurorates/internal/config"
	"github.com/lox/eurorates/internal/export"
	"github.com/lox/eurorates/internal/ingest"
	"github.com/lox/eurorates/internal/store"
)

// Snapshot is one dataset download target.
type Snapshot struct {
	Dataset string
	Path    string
}

// Snapshots lists the distinct dataset files the analyses read, sorted by
// path. Files without a dataset code are skipped.
func Snapshots(analyses []config.Analysis) []Snapshot {
	seen := make(map[string]bool)
	var out []Snapshot
	for _, a := range analyses {
		for _, spec := range []ingest.FileSpec{a.Numerator, a.Population} {
			if spec.Dataset == "" || seen[spec.Path] {
				continue
			}
			seen[spec.Path] = true
			out = append(out, Snapshot{Dataset: spec.Dataset, Path: spec.Path})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Fetch downloads each snapshot and replaces its file atomically. When st is
// set the payload is archived too. A failed download leaves the previous
// file in place.
func Fetch(ctx context.Context, f *ingest.Fetcher, st *store.Store, snapshots []Snapshot) error {
	var errs *multierror.Error
	for _, s := range snapshots {
		if err := ctx.Err(); err != nil {
			return err
		}
		url := f.DatasetURL(s.Dataset)
		body, err := f.Fetch(ctx, url)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.Dataset, err))
			continue
		}
		if err := export.WriteFile(s.Path, func(fw *export.FileWriter) error {
			_, err := fw.Write(body)
			return err
		}); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: write %s: %w", s.Dataset, s.Path, err))
			continue
		}
		if st != nil {
			id, err := st.StoreRawPayload(s.Dataset, url, body)
			if err != nil {
				log.Printf("fetch: %s: archive payload: %v", s.Dataset, err)
			} else if id == 0 {
				log.Printf("fetch: %s: unchanged since last archive", s.Dataset)
			}
		}
	}
	if st != nil {
		logArchive(st)
	}
	return errs.ErrorOrNil()
}

func logArchive(st *store.Store) {
	stats, err := st.GetRawPayloadStats()
	if err != nil {
		log.Printf("fetch: archive stats: %v", err)
		return
	}
	log.Printf("fetch: archive holds %d payloads, %s stored for %s fetched",
		stats.TotalCount, humanize.Bytes(uint64(stats.StoredBytes)), humanize.Bytes(uint64(stats.TotalSizeBytes)))
}
