package feed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/storage"
	"resty.dev/v3"
)

type Fetcher struct {
	client      *resty.Client
	ignoreCache bool
}

func NewFetcher(cfg *config.Config) *Fetcher {
	if cfg == nil {
		cfg = config.TestConfig()
	}
	timeout := cfg.Catalog.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Fetcher{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", cfg.Catalog.UserAgent).
			SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml"),
	}
}

// SetIgnoreCache makes the next fetches skip conditional headers.
func (f *Fetcher) SetIgnoreCache(ignore bool) {
	f.ignoreCache = ignore
}

// Fetch downloads the feed described by meta. It returns updated=false and
// no body when the server reports the feed unchanged. On success the
// conditional headers in meta are refreshed.
func (f *Fetcher) Fetch(ctx context.Context, meta *storage.FeedMeta) ([]byte, bool, error) {
	req := f.client.R().SetContext(ctx)

	if !f.ignoreCache {
		if meta.ETag != "" {
			req.SetHeader("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.SetHeader("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := req.Get(meta.URL)
	if err != nil {
		return nil, false, fmt.Errorf("fetching feed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotModified {
		meta.LastFetched = time.Now()
		return nil, false, nil
	}

	if resp.IsError() {
		return nil, false, fmt.Errorf("HTTP error: %d", resp.StatusCode())
	}

	if etag := resp.Header().Get("ETag"); etag != "" {
		meta.ETag = etag
	}
	if lastMod := resp.Header().Get("Last-Modified"); lastMod != "" {
		meta.LastModified = lastMod
	}
	meta.LastFetched = time.Now()

	return []byte(resp.String()), true, nil
}
