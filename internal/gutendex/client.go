// Package gutendex is the HTTP client for the Gutendex catalog API.
package gutendex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/debuglog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// imageMimeFilter restricts listings to books that carry a cover image.
const imageMimeFilter = "image/"

// Client fetches catalog pages and single books. It performs no caching and
// no retries; identical calls issue independent requests.
type Client struct {
	baseURL string
	http    *resty.Client
	limiter *rate.Limiter
	group   singleflight.Group
}

// listResponse is the wire shape of GET /books.
type listResponse struct {
	Count    int            `json:"count"`
	Next     *string        `json:"next"`
	Previous *string        `json:"previous"`
	Results  []catalog.Item `json:"results"`
}

// NewClient builds a client from the catalog section of the config. A nil
// config falls back to the test defaults.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil {
		cfg = config.TestConfig()
	}
	cc := cfg.Catalog

	timeout := cc.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	hc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", cc.UserAgent).
		SetHeader("Accept", "application/json")

	var limiter *rate.Limiter
	if cc.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cc.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL: strings.TrimRight(cc.BaseURL, "/"),
		http:    hc,
		limiter: limiter,
	}
}

// FetchPage retrieves one page of the catalog narrowed by filters.
func (c *Client) FetchPage(ctx context.Context, page int, filters catalog.Filters) (catalog.PageResult, error) {
	if page < 1 {
		return catalog.PageResult{}, fmt.Errorf("invalid page number %d", page)
	}

	params := map[string]string{
		"page":      strconv.Itoa(page),
		"mime_type": imageMimeFilter,
	}
	for k, v := range filterParams(filters) {
		params[k] = v
	}

	var body listResponse
	if err := c.get(ctx, "fetch page", "/books", params, &body); err != nil {
		return catalog.PageResult{}, err
	}

	debuglog.Debugf("page %d: %d of %d results, next=%t", page, len(body.Results), body.Count, body.Next != nil)
	return body.pageResult(), nil
}

// FetchByID retrieves a single book. Concurrent lookups of the same ID share
// one request.
func (c *Client) FetchByID(ctx context.Context, id int) (catalog.Item, error) {
	key := strconv.Itoa(id)
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		var item catalog.Item
		if err := c.get(ctx, "fetch book", "/books/"+key, nil, &item); err != nil {
			return catalog.Item{}, err
		}
		return item, nil
	})
	if shared {
		debuglog.Debugf("book %d lookup shared with a concurrent caller", id)
	}
	if err != nil {
		return catalog.Item{}, err
	}
	return v.(catalog.Item), nil
}

// FetchByIDs retrieves the listed books in one request.
func (c *Client) FetchByIDs(ctx context.Context, ids []int) (catalog.PageResult, error) {
	if len(ids) == 0 {
		return catalog.PageResult{}, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	params := map[string]string{
		"ids":       strings.Join(parts, ","),
		"mime_type": imageMimeFilter,
	}

	var body listResponse
	if err := c.get(ctx, "fetch books", "/books", params, &body); err != nil {
		return catalog.PageResult{}, err
	}
	return body.pageResult(), nil
}

// filterParams maps filters to query parameters, skipping empty fields.
func filterParams(f catalog.Filters) map[string]string {
	params := make(map[string]string)
	if f.Genre != "" {
		params["topic"] = f.Genre
	}
	if q := strings.TrimSpace(f.SearchQuery); q != "" {
		params["search"] = q
	}
	if len(f.Languages) > 0 {
		params["languages"] = strings.Join(f.Languages, ",")
	}
	return params
}

func (c *Client) get(ctx context.Context, op, path string, params map[string]string, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &catalog.RemoteFetchError{Op: op, Err: err}
		}
	}

	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return &catalog.RemoteFetchError{Op: op, Err: err}
	}
	if resp.IsError() {
		return &catalog.RemoteFetchError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    resp.Status(),
		}
	}

	if err := json.Unmarshal([]byte(resp.String()), out); err != nil {
		return &catalog.RemoteFetchError{
			Op:      op,
			Message: "malformed response",
			Err:     fmt.Errorf("decoding response: %w", err),
		}
	}
	return nil
}

func (r listResponse) pageResult() catalog.PageResult {
	return catalog.PageResult{
		TotalCount: r.Count,
		HasNext:    r.Next != nil && *r.Next != "",
		Items:      r.Results,
	}
}
