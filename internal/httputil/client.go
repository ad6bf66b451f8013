package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 2 * time.Minute

// UserAgent identifies snapshot downloads to the Eurostat API.
const UserAgent = "eurorates/1.0 (+https://github.com/lox/eurorates)"

// NewClient returns an HTTP client with standard timeout configuration.
// Bulk SDMX-CSV extracts are large, so the timeout is generous.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
	}
}

// NewRequest builds a GET request carrying the package user agent.
func NewRequest(url string) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/csv, application/vnd.sdmx.data+csv")
	return req, nil
}
