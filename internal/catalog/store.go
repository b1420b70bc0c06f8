package catalog

import (
	"context"
	"sync"

	"github.com/pders01/shelf/internal/debuglog"
)

// PageFetcher retrieves one page of the remote catalog.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int, filters Filters) (PageResult, error)
}

// Store owns the catalog state. All mutation goes through its actions; reads
// go through Snapshot. At most one fetch is outstanding at any time.
type Store struct {
	fetcher PageFetcher

	mu    sync.Mutex
	state State
	// generation changes on every filter change or reset; responses tagged
	// with an older generation are discarded
	generation uint64
	// active identifies the fetch that owns the loading flags (0 = none)
	active  uint64
	nextSeq uint64

	// activeReset is set when the active fetch is a first-page fetch for
	// activeGeneration
	activeReset      bool
	activeGeneration uint64
	// pendingReset holds the context of a filter-driven reset dropped by
	// the guard; nil when nothing is pending
	pendingReset context.Context
	lastErr      error

	listeners    map[int]func(State)
	nextListener int
}

type ticket struct {
	seq        uint64
	generation uint64
	reset      bool
	page       int
	filters    Filters
}

// NewStore creates a store with the initial empty snapshot.
func NewStore(fetcher PageFetcher) *Store {
	return &Store{
		fetcher:   fetcher,
		state:     initialState(),
		listeners: make(map[int]func(State)),
	}
}

// Snapshot returns a copy of the current state. Items is shared with the
// store but never written after publication.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Filters = st.Filters.Clone()
	return st
}

// LastErr returns the underlying error of the last failed fetch, if any.
func (s *Store) LastErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe registers fn to be called after every state change.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	st := s.snapshotLocked()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// FetchBooks fetches page 1 (reset) or the current page (append). It is a
// no-op returning false while another fetch is in flight.
func (s *Store) FetchBooks(ctx context.Context, reset bool) bool {
	s.mu.Lock()
	if s.state.Loading() {
		s.mu.Unlock()
		debuglog.Debugf("fetch dropped: request already in flight (reset=%t)", reset)
		return false
	}
	page := 1
	if !reset {
		page = s.state.CurrentPage
	}
	t := s.startLocked(reset, page)
	s.mu.Unlock()

	s.execute(ctx, t)
	return true
}

// SetFilters merges patch into the current filters, clears the accumulated
// items and fetches the first page. A reset requested while another fetch is
// in flight is issued once that fetch settles.
func (s *Store) SetFilters(ctx context.Context, patch FilterPatch) {
	s.applyFilters(patch)
	s.fetchFirstPage(ctx)
}

// ResetFilters clears all filters and fetches the unfiltered first page.
func (s *Store) ResetFilters(ctx context.Context) {
	s.clearFilters()
	s.fetchFirstPage(ctx)
}

// applyFilters is the synchronous half of SetFilters: merge, reset
// pagination, publish. Calls made in order are applied in order.
func (s *Store) applyFilters(patch FilterPatch) {
	s.mu.Lock()
	s.state.Filters = s.state.Filters.Merge(patch)
	s.state.CurrentPage = 1
	s.state.Items = nil
	s.generation++
	filters := s.state.Filters.Clone()
	s.mu.Unlock()

	debuglog.WithFields(map[string]interface{}{
		"genre":     filters.Genre,
		"search":    filters.SearchQuery,
		"languages": filters.Languages,
	}).Infof("filters changed")

	s.notify()
}

func (s *Store) clearFilters() {
	s.mu.Lock()
	s.state.Filters = Filters{}
	s.state.CurrentPage = 1
	s.state.Items = nil
	s.generation++
	s.mu.Unlock()

	s.notify()
}

// LoadMore fetches the next page and appends it. It is a no-op returning
// false when there is nothing more to load or a fetch is in flight.
func (s *Store) LoadMore(ctx context.Context) bool {
	s.mu.Lock()
	if !s.state.HasMore || s.state.Loading() {
		s.mu.Unlock()
		return false
	}
	t := s.startLocked(false, s.state.CurrentPage+1)
	s.mu.Unlock()

	s.execute(ctx, t)
	return true
}

// Reset restores the initial empty snapshot. A fetch still in flight is
// orphaned and its response ignored; it no longer holds the loading flags,
// so a fetch started right after Reset may overlap it on the network.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = initialState()
	s.generation++
	s.active = 0
	s.pendingReset = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.notify()
}

func (s *Store) fetchFirstPage(ctx context.Context) {
	s.mu.Lock()
	if s.state.Loading() {
		if s.activeReset && s.activeGeneration == s.generation {
			s.mu.Unlock()
			return
		}
		s.pendingReset = ctx
		s.mu.Unlock()
		debuglog.Debugf("reset deferred until in-flight fetch settles")
		return
	}
	t := s.startLocked(true, 1)
	s.mu.Unlock()

	s.execute(ctx, t)
}

func (s *Store) startLocked(reset bool, page int) ticket {
	s.nextSeq++
	s.active = s.nextSeq
	s.activeReset = reset
	s.activeGeneration = s.generation
	s.pendingReset = nil
	s.state.IsInitialLoading = reset
	s.state.IsLoadingMore = !reset
	s.state.LastError = ""
	return ticket{
		seq:        s.nextSeq,
		generation: s.generation,
		reset:      reset,
		page:       page,
		filters:    s.state.Filters.Clone(),
	}
}

func (s *Store) execute(ctx context.Context, t ticket) {
	for {
		s.notify()

		res, err := s.fetcher.FetchPage(ctx, t.page, t.filters)

		s.mu.Lock()
		s.applyLocked(t, res, err)
		next, nextCtx, again := s.takePendingLocked()
		s.mu.Unlock()

		if !again {
			s.notify()
			return
		}
		t, ctx = next, nextCtx
	}
}

func (s *Store) applyLocked(t ticket, res PageResult, err error) {
	if s.active != t.seq {
		debuglog.Debugf("discarding orphaned response for page %d", t.page)
		return
	}
	s.active = 0
	s.state.IsInitialLoading = false
	s.state.IsLoadingMore = false

	if t.generation != s.generation {
		debuglog.Debugf("discarding stale response for page %d", t.page)
		return
	}

	if err != nil {
		s.lastErr = err
		s.state.LastError = FetchFailedMessage
		debuglog.Errorf("fetching page %d: %v", t.page, err)
		return
	}

	var items []Item
	if t.reset {
		items = make([]Item, len(res.Items))
		copy(items, res.Items)
	} else {
		items = make([]Item, 0, len(s.state.Items)+len(res.Items))
		items = append(items, s.state.Items...)
		items = append(items, res.Items...)
	}

	s.lastErr = nil
	s.state.Items = items
	s.state.CurrentPage = t.page
	s.state.TotalCount = res.TotalCount
	s.state.HasMore = res.HasNext && len(items) < res.TotalCount

	debuglog.Debugf("page %d applied: %d items (%d/%d), hasMore=%t",
		t.page, len(res.Items), len(items), res.TotalCount, s.state.HasMore)
}

func (s *Store) takePendingLocked() (ticket, context.Context, bool) {
	ctx := s.pendingReset
	if ctx == nil || s.state.Loading() {
		return ticket{}, nil, false
	}
	if ctx.Err() != nil {
		s.pendingReset = nil
		return ticket{}, nil, false
	}
	return s.startLocked(true, 1), ctx, true
}
