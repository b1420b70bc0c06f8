package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/storage"
)

type fetchCall struct {
	page    int
	filters catalog.Filters
}

// pagedFetcher serves a fixed catalog of total items in pages of size.
type pagedFetcher struct {
	mu       sync.Mutex
	total    int
	size     int
	failNext int
	calls    []fetchCall
}

func (f *pagedFetcher) FetchPage(_ context.Context, page int, filters catalog.Filters) (catalog.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{page: page, filters: filters.Clone()})
	if f.failNext > 0 {
		f.failNext--
		return catalog.PageResult{}, errors.New("connection refused")
	}

	start := (page - 1) * f.size
	end := min(start+f.size, f.total)
	var items []catalog.Item
	for id := start + 1; id <= end; id++ {
		items = append(items, catalog.Item{ID: id, Title: fmt.Sprintf("Book %d", id)})
	}
	return catalog.PageResult{TotalCount: f.total, HasNext: end < f.total, Items: items}, nil
}

func (f *pagedFetcher) lastCall(t *testing.T) fetchCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type fakeOpener struct {
	mu     sync.Mutex
	opened []catalog.Rendition
	err    error
}

func (o *fakeOpener) Open(r catalog.Rendition) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.opened = append(o.opened, r)
	return nil
}

type stubLookup map[int]catalog.Item

func (s stubLookup) FetchByID(_ context.Context, id int) (catalog.Item, error) {
	item, ok := s[id]
	if !ok {
		return catalog.Item{}, &catalog.RemoteFetchError{Op: "fetch book", StatusCode: 404, Message: "Not Found"}
	}
	return item, nil
}

func newTestBrowser(t *testing.T, f catalog.PageFetcher) *catalog.Browser {
	t.Helper()
	b := catalog.NewBrowser(catalog.NewStore(f), catalog.WithSearchDelay(time.Hour))
	t.Cleanup(b.Close)
	return b
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	if opts.Config == nil {
		opts.Config = config.TestConfig()
	}
	app := NewApp(opts)
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return app
}

// settle waits for dispatched store actions and applies their result as the
// Bubble Tea loop would.
func settle(app *App) {
	if app.browser != nil {
		app.browser.Wait()
		app.applyState(ViewBooks)
	}
	if app.releases != nil {
		app.releases.Wait()
		app.applyState(ViewReleases)
	}
}

func press(app *App, msg tea.KeyMsg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func viewableItem(id int, title string) catalog.Item {
	return catalog.Item{
		ID:      id,
		Title:   title,
		Authors: []catalog.Person{{Name: "Plato"}},
		Formats: map[string]string{
			"text/html":                fmt.Sprintf("https://www.gutenberg.org/ebooks/%d.html.images", id),
			"application/octet-stream": fmt.Sprintf("https://www.gutenberg.org/cache/epub/%d/pg%d-h.zip", id, id),
		},
	}
}
