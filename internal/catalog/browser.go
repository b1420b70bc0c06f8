package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pders01/shelf/internal/debounce"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/scroll"
)

// DefaultSearchDelay is how long search input must be stable before it
// becomes a filter change.
const DefaultSearchDelay = 500 * time.Millisecond

// Browser is the surface the presentation layer talks to. It debounces
// search input, turns sentinel visibility into page loads and runs network
// fetches off the caller's goroutine. Filter changes are applied to the store
// before the call returns, so they take effect in call order.
type Browser struct {
	store   *Store
	search  *debounce.Debouncer[string]
	trigger *scroll.Trigger

	maxQueryLength int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool

	unsubscribe func()
	closeOnce   sync.Once
}

// BrowserOption configures a Browser.
type BrowserOption func(*browserOptions)

type browserOptions struct {
	delay          time.Duration
	clock          clock.Clock
	maxQueryLength int
}

// WithSearchDelay overrides DefaultSearchDelay.
func WithSearchDelay(d time.Duration) BrowserOption {
	return func(o *browserOptions) { o.delay = d }
}

// WithSearchClock sets the clock driving the search debounce.
func WithSearchClock(c clock.Clock) BrowserOption {
	return func(o *browserOptions) { o.clock = c }
}

// WithMaxQueryLength truncates longer search input. Zero means unlimited.
func WithMaxQueryLength(n int) BrowserOption {
	return func(o *browserOptions) { o.maxQueryLength = n }
}

// NewBrowser wires a browser around store.
func NewBrowser(store *Store, opts ...BrowserOption) *Browser {
	o := browserOptions{delay: DefaultSearchDelay}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Browser{
		store:          store,
		maxQueryLength: o.maxQueryLength,
		ctx:            ctx,
		cancel:         cancel,
	}

	var debounceOpts []debounce.Option
	if o.clock != nil {
		debounceOpts = append(debounceOpts, debounce.WithClock(o.clock))
	}
	b.search = debounce.New(o.delay, b.applySearch, debounceOpts...)

	b.trigger = scroll.NewTrigger(b.OnLoadMoreVisible, func() (bool, bool) {
		st := store.Snapshot()
		return st.HasMore, st.Loading()
	})

	// a settled load re-mounts the sentinel so a still-visible one fires again
	b.unsubscribe = store.Subscribe(func(st State) {
		if !st.Loading() {
			b.trigger.Rearm()
		}
	})

	return b
}

// Store returns the underlying store.
func (b *Browser) Store() *Store { return b.store }

// Snapshot returns the current catalog state.
func (b *Browser) Snapshot() State { return b.store.Snapshot() }

// Subscribe forwards to Store.Subscribe.
func (b *Browser) Subscribe(fn func(State)) (unsubscribe func()) {
	return b.store.Subscribe(fn)
}

// Start loads the first page unless items are already present or loading.
func (b *Browser) Start() {
	st := b.store.Snapshot()
	if len(st.Items) > 0 || st.Loading() {
		return
	}
	b.dispatch(func(ctx context.Context) {
		b.store.FetchBooks(ctx, true)
	})
}

// Restore applies a complete filter set, typically the previous session's.
func (b *Browser) Restore(f Filters) {
	b.changeFilters(f.Patch())
}

// OnSearch is called on every keystroke. The query reaches the store once it
// has been stable for the search delay.
func (b *Browser) OnSearch(query string) {
	if b.maxQueryLength > 0 && len([]rune(query)) > b.maxQueryLength {
		query = string([]rune(query)[:b.maxQueryLength])
	}
	b.search.Set(query)
}

// FlushSearch applies pending search input immediately.
func (b *Browser) FlushSearch() {
	b.search.Flush()
}

// OnGenreSelect switches to topic and clears the search text. Pending search
// input is dropped.
func (b *Browser) OnGenreSelect(topic string) {
	b.search.Cancel()
	empty := ""
	b.changeFilters(FilterPatch{Genre: &topic, SearchQuery: &empty})
}

// OnLanguagesSelect replaces the language filter.
func (b *Browser) OnLanguagesSelect(langs ...string) {
	b.changeFilters(WithLanguages(langs...))
}

// ClearFilters drops every filter and reloads.
func (b *Browser) ClearFilters() {
	b.search.Cancel()
	if b.isClosed() {
		return
	}
	b.store.clearFilters()
	b.dispatch(b.store.fetchFirstPage)
}

// OnLoadMoreVisible requests the next page.
func (b *Browser) OnLoadMoreVisible() {
	b.dispatch(func(ctx context.Context) {
		b.store.LoadMore(ctx)
	})
}

// ReportSentinel feeds the load-more sentinel's visibility. It returns
// whether a page load was requested.
func (b *Browser) ReportSentinel(visible bool) bool {
	return b.trigger.Update(visible)
}

// Retry repeats the failed request: the first page when nothing is loaded,
// otherwise the next page.
func (b *Browser) Retry() {
	st := b.store.Snapshot()
	if st.Loading() {
		return
	}
	b.dispatch(func(ctx context.Context) {
		if len(st.Items) == 0 {
			b.store.FetchBooks(ctx, true)
			return
		}
		b.store.LoadMore(ctx)
	})
}

// Wait blocks until every dispatched action has finished.
func (b *Browser) Wait() {
	b.wg.Wait()
}

// Close stops the debounce timer and the sentinel, cancels in-flight
// requests and waits for them to return.
func (b *Browser) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		b.search.Stop()
		b.trigger.Detach()
		b.unsubscribe()
		b.cancel()
		b.wg.Wait()
	})
}

func (b *Browser) applySearch(query string) {
	current := b.store.Snapshot().Filters.SearchQuery
	if strings.TrimSpace(query) == strings.TrimSpace(current) {
		return
	}
	debuglog.Debugf("search settled: %q", query)
	b.changeFilters(WithSearch(query))
}

// changeFilters merges patch on the calling goroutine and fetches the first
// page in the background.
func (b *Browser) changeFilters(patch FilterPatch) {
	if b.isClosed() {
		return
	}
	b.store.applyFilters(patch)
	b.dispatch(b.store.fetchFirstPage)
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) dispatch(fn func(ctx context.Context)) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		fn(b.ctx)
	}()
}
