package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/ztrace-go/ztrace/wire"
)

// HTTPReporter ships spans to a Zipkin-v1-compatible HTTP collector (the
// POST /api/v1/spans endpoint), gzip-compressing the JSON body the way a
// collector-facing client in this ecosystem does.
type HTTPReporter struct {
	URL    string
	Client *http.Client
	// Timeout bounds a single Ingest call; zero means no bound beyond
	// whatever the Client itself enforces.
	Timeout time.Duration
}

// NewHTTPReporter returns an HTTPReporter posting to url with a sane
// default client and timeout.
func NewHTTPReporter(url string) *HTTPReporter {
	return &HTTPReporter{
		URL:     url,
		Client:  &http.Client{Timeout: 10 * time.Second},
		Timeout: 5 * time.Second,
	}
}

// Ingest implements Reporter by gzip-encoding spans as a JSON array and
// POSTing them. A non-2xx response is returned as an error; the caller
// (the aggregator) logs and drops it rather than retrying.
func (r *HTTPReporter) Ingest(spans []wire.Span) error {
	if len(spans) == 0 {
		return nil
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gw).Encode(spans); err != nil {
		return fmt.Errorf("reporter: encode spans: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("reporter: close gzip writer: %w", err)
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if r.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, &buf)
	if err != nil {
		return fmt.Errorf("reporter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reporter: post spans: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("reporter: collector returned status %d", resp.StatusCode)
	}
	return nil
}
