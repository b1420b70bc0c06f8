package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/storage"
	"github.com/pders01/shelf/internal/validation"
)

// DefaultPageSize matches the catalog API's page size.
const DefaultPageSize = 32

// BookLookup resolves ebook IDs to catalog items.
type BookLookup interface {
	FetchByIDs(ctx context.Context, ids []int) (catalog.PageResult, error)
}

// Manager serves the new-releases feed as a paginated catalog. It
// implements catalog.PageFetcher; filters are ignored.
type Manager struct {
	store        *storage.Store
	lookup       BookLookup
	fetcher      *Fetcher
	parser       *Parser
	url          string
	pageSize     int
	urlValidator *validation.URLValidator

	mu       sync.Mutex
	releases []Release
	ids      []int
	loaded   bool
}

// NewManager creates a releases manager. store may be nil, in which case
// conditional-request state is kept in memory only.
func NewManager(store *storage.Store, lookup BookLookup, cfg *config.Config) *Manager {
	if cfg == nil {
		cfg = config.TestConfig()
	}
	return &Manager{
		store:        store,
		lookup:       lookup,
		fetcher:      NewFetcher(cfg),
		parser:       NewParser(),
		url:          cfg.Catalog.ReleasesURL,
		pageSize:     DefaultPageSize,
		urlValidator: validation.NewLinkValidator(),
	}
}

// SetForceRefresh configures the manager to ignore ETag/Last-Modified headers
func (m *Manager) SetForceRefresh(force bool) {
	m.fetcher.SetIgnoreCache(force)
}

// SetPermissiveValidation allows local feed URLs, for development and tests.
func (m *Manager) SetPermissiveValidation(permissive bool) {
	if permissive {
		m.urlValidator = validation.NewAPIValidator()
	} else {
		m.urlValidator = validation.NewLinkValidator()
	}
}

// SetPageSize changes how many releases make up one page.
func (m *Manager) SetPageSize(n int) {
	if n > 0 {
		m.pageSize = n
	}
}

// Refresh downloads the feed and returns its releases. When the server
// reports no change the previously stored IDs are used.
func (m *Manager) Refresh(ctx context.Context) ([]Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) ([]Release, error) {
	url, err := m.urlValidator.ValidateAndNormalize(m.url)
	if err != nil {
		return nil, fmt.Errorf("invalid releases URL: %w", err)
	}

	meta := &storage.FeedMeta{URL: url}
	if m.store != nil {
		if stored, getErr := m.store.GetFeedMeta(url); getErr == nil {
			meta = stored
		} else if !errors.Is(getErr, storage.ErrNotFound) {
			return nil, fmt.Errorf("loading feed metadata: %w", getErr)
		}
	}

	body, updated, err := m.fetcher.Fetch(ctx, meta)
	if err != nil {
		return nil, err
	}

	if updated {
		releases, parseErr := m.parser.Parse(bytes.NewReader(body))
		if parseErr != nil {
			return nil, parseErr
		}
		m.releases = releases
		meta.BookIDs = BookIDs(releases)
	} else {
		debuglog.Debugf("releases feed not modified, reusing %d stored IDs", len(meta.BookIDs))
		if len(m.releases) == 0 {
			m.releases = make([]Release, len(meta.BookIDs))
			for i, id := range meta.BookIDs {
				m.releases[i] = Release{BookID: id}
			}
		}
	}
	m.ids = meta.BookIDs
	m.loaded = true

	if m.store != nil {
		if err := m.store.SaveFeedMeta(meta); err != nil {
			return nil, fmt.Errorf("saving feed metadata: %w", err)
		}
	}

	out := make([]Release, len(m.releases))
	copy(out, m.releases)
	return out, nil
}

// FetchPage returns the books of one page of releases, in feed order. The
// feed is downloaded on the first page request.
func (m *Manager) FetchPage(ctx context.Context, page int, _ catalog.Filters) (catalog.PageResult, error) {
	if page < 1 {
		return catalog.PageResult{}, fmt.Errorf("invalid page number %d", page)
	}

	m.mu.Lock()
	if !m.loaded || page == 1 {
		if _, err := m.refreshLocked(ctx); err != nil {
			m.mu.Unlock()
			return catalog.PageResult{}, &catalog.RemoteFetchError{Op: "fetch releases", Err: err}
		}
	}
	ids := m.ids
	size := m.pageSize
	m.mu.Unlock()

	start := (page - 1) * size
	if start >= len(ids) {
		return catalog.PageResult{TotalCount: len(ids)}, nil
	}
	end := start + size
	if end > len(ids) {
		end = len(ids)
	}

	res, err := m.lookup.FetchByIDs(ctx, ids[start:end])
	if err != nil {
		return catalog.PageResult{}, err
	}

	return catalog.PageResult{
		TotalCount: len(ids),
		HasNext:    end < len(ids),
		Items:      orderByIDs(res.Items, ids[start:end]),
	}, nil
}

// orderByIDs sorts items into the order of ids, dropping unknown items.
func orderByIDs(items []catalog.Item, ids []int) []catalog.Item {
	byID := make(map[int]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]catalog.Item, 0, len(items))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}
