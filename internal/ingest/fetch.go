package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/lox/eurorates/internal/httputil"
	"github.com/lox/eurorates/internal/metrics"
)

const DefaultBaseURL = "https://ec.europa.eu/eurostat/api/dissemination/sdmx/2.1/data"

// Fetcher downloads snapshot files over HTTP(S) or FTP.
type Fetcher struct {
	baseURL        string
	client         *http.Client
	maxElapsedTime time.Duration
}

func NewFetcher(baseURL string) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         httputil.NewClient(),
		maxElapsedTime: 5 * time.Minute,
	}
}

// DatasetURL returns the SDMX-CSV URL of a dataset, with labels instead of codes.
func (f *Fetcher) DatasetURL(dataset string) string {
	if strings.HasPrefix(f.baseURL, "ftp://") {
		return fmt.Sprintf("%s/%s.csv", f.baseURL, dataset)
	}
	return fmt.Sprintf("%s/%s?format=SDMX-CSV&labels=label", f.baseURL, url.PathEscape(dataset))
}

// Fetch downloads rawURL. HTTP 429 and 5xx responses are retried with
// exponential backoff; other failures are permanent.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	start := time.Now()
	var body []byte
	switch u.Scheme {
	case "http", "https":
		body, err = f.fetchHTTP(ctx, rawURL)
	case "ftp":
		body, err = fetchFTP(ctx, u)
	default:
		return nil, fmt.Errorf("fetch %s: unsupported scheme %q", rawURL, u.Scheme)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FetchLatency.WithLabelValues(u.Scheme, status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.FetchBytes.WithLabelValues(u.Scheme).Add(float64(len(body)))
	log.Printf("fetch: %s: %s in %s", u.Redacted(), humanize.Bytes(uint64(len(body))), time.Since(start).Round(time.Millisecond))
	return body, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := httputil.NewRequest(rawURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if wait, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
				return fmt.Errorf("fetch: status %d (retry after %s)", resp.StatusCode, wait)
			}
			return fmt.Errorf("fetch: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = f.maxElapsedTime
	notify := func(err error, wait time.Duration) {
		log.Printf("fetch: %v, retrying in %s", err, wait.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func parseRetryAfter(v string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
