package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBrowser(t *testing.T, f PageFetcher, opts ...BrowserOption) (*Browser, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append([]BrowserOption{WithSearchClock(mock)}, opts...)
	b := NewBrowser(NewStore(f), opts...)
	t.Cleanup(b.Close)
	return b, mock
}

func TestBrowser_StartLoadsFirstPage(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(64, true, makeItems(1, 32)), nil)
	b, _ := newTestBrowser(t, f)

	b.Start()
	b.Wait()

	assert.Len(t, b.Snapshot().Items, 32)

	// already populated: no second request
	b.Start()
	b.Wait()
	assert.Equal(t, 1, f.callCount())
}

func TestBrowser_OnSearchDebounces(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(3, false, makeItems(10, 3)), nil)
	b, mock := newTestBrowser(t, f)

	b.OnSearch("p")
	mock.Add(100 * time.Millisecond)
	b.OnSearch("pla")
	mock.Add(100 * time.Millisecond)
	b.OnSearch("plato")

	mock.Add(499 * time.Millisecond)
	b.Wait()
	assert.Zero(t, f.callCount(), "nothing propagates before the value is stable")

	mock.Add(1 * time.Millisecond)
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Wait()

	assert.Equal(t, "plato", f.call(0).filters.SearchQuery)
	assert.Equal(t, "plato", b.Snapshot().Filters.SearchQuery)
}

func TestBrowser_OnSearchSkipsUnchangedQuery(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(3, false, makeItems(10, 3)), nil)
	b, _ := newTestBrowser(t, f)

	b.OnSearch("dickens")
	b.FlushSearch()
	b.Wait()
	require.Equal(t, 1, f.callCount())

	b.OnSearch("dickens ")
	b.FlushSearch()
	b.Wait()
	assert.Equal(t, 1, f.callCount())
}

func TestBrowser_MaxQueryLength(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(0, false, nil), nil)
	b, _ := newTestBrowser(t, f, WithMaxQueryLength(4))

	b.OnSearch("shakespeare")
	b.FlushSearch()
	b.Wait()

	assert.Equal(t, "shak", f.call(0).filters.SearchQuery)
}

func TestBrowser_OnGenreSelectClearsSearch(t *testing.T) {
	f := (&queueFetcher{}).
		push(pageOf(3, false, makeItems(1, 3)), nil).
		push(pageOf(50, true, makeItems(100, 32)), nil)
	b, mock := newTestBrowser(t, f)

	b.OnSearch("whale")
	b.FlushSearch()
	b.Wait()

	// typing that has not settled yet is dropped by the genre switch
	b.OnSearch("ahab")
	b.OnGenreSelect("adventure")
	b.Wait()
	mock.Add(time.Second)
	b.Wait()

	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, Filters{Genre: "adventure"}, f.call(1).filters)
	assert.Equal(t, Filters{Genre: "adventure"}, b.Snapshot().Filters)
}

func TestBrowser_FilterChangesApplyInCallOrder(t *testing.T) {
	topicIDs := map[string]int{"fiction": 100, "drama": 200}
	f := fetcherFunc(func(_ context.Context, page int, filters Filters) (PageResult, error) {
		return pageOf(1, false, makeItems(topicIDs[filters.Genre]+len(filters.Languages), 1)), nil
	})

	for i := 0; i < 50; i++ {
		b, _ := newTestBrowser(t, f)

		b.OnGenreSelect("fiction")
		b.OnGenreSelect("drama")
		b.OnLanguagesSelect("fr")
		assert.Equal(t, Filters{Genre: "drama", Languages: []string{"fr"}}, b.Snapshot().Filters,
			"filters are merged before the call returns")
		b.Wait()

		st := b.Snapshot()
		require.Equal(t, Filters{Genre: "drama", Languages: []string{"fr"}}, st.Filters)
		require.Len(t, st.Items, 1)
		assert.Equal(t, 201, st.Items[0].ID, "items belong to the latest filters")
		assert.False(t, st.Loading())
		b.Close()
	}
}

func TestBrowser_ClearFiltersAfterGenreWithoutWaiting(t *testing.T) {
	f := fetcherFunc(func(_ context.Context, page int, filters Filters) (PageResult, error) {
		if filters.Genre != "" {
			return pageOf(1, false, makeItems(500, 1)), nil
		}
		return pageOf(2, false, makeItems(1, 2)), nil
	})
	b, _ := newTestBrowser(t, f)

	b.OnGenreSelect("humor")
	b.ClearFilters()
	b.Wait()

	st := b.Snapshot()
	assert.Equal(t, Filters{}, st.Filters)
	assert.Len(t, st.Items, 2)
}

func TestBrowser_SentinelLoadsNextPage(t *testing.T) {
	f := (&queueFetcher{}).
		push(pageOf(96, true, makeItems(1, 32)), nil).
		push(pageOf(96, true, makeItems(33, 32)), nil).
		push(pageOf(96, false, makeItems(65, 32)), nil)
	b, _ := newTestBrowser(t, f)

	b.Start()
	b.Wait()

	assert.True(t, b.ReportSentinel(true))
	b.Wait()
	assert.Len(t, b.Snapshot().Items, 64)

	// the settled load re-arms a sentinel that is still on screen
	assert.True(t, b.ReportSentinel(true))
	b.Wait()
	st := b.Snapshot()
	assert.Len(t, st.Items, 96)
	assert.False(t, st.HasMore)

	// no more pages: the gate keeps the trigger closed
	assert.False(t, b.ReportSentinel(true))
	b.ReportSentinel(false)
	assert.False(t, b.ReportSentinel(true))
	b.Wait()
	assert.Equal(t, 3, f.callCount())
}

func TestBrowser_RetryAfterFailure(t *testing.T) {
	f := (&queueFetcher{}).
		push(PageResult{}, &RemoteFetchError{Op: "fetch page", StatusCode: 502, Message: "502 Bad Gateway"}).
		push(pageOf(10, false, makeItems(1, 10)), nil)
	b, _ := newTestBrowser(t, f)

	b.OnGenreSelect("humor")
	b.Wait()
	require.Equal(t, PhaseError, b.Snapshot().Phase())

	b.Retry()
	b.Wait()

	st := b.Snapshot()
	assert.Equal(t, PhaseIdle, st.Phase())
	assert.Len(t, st.Items, 10)
	assert.Equal(t, 1, f.call(1).page)
	assert.Equal(t, "humor", f.call(1).filters.Genre)
}

func TestBrowser_Restore(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(1, false, makeItems(1, 1)), nil)
	b, _ := newTestBrowser(t, f)

	saved := Filters{Genre: "history", SearchQuery: "rome", Languages: []string{"la"}}
	b.Restore(saved)
	b.Wait()

	assert.Equal(t, saved, b.Snapshot().Filters)
}

func TestBrowser_CloseStopsEverything(t *testing.T) {
	f := newBlockingFetcher()
	b, mock := newTestBrowser(t, f)

	b.OnGenreSelect("politics")
	p := f.next(t)

	b.OnSearch("marx")

	closed := async(b.Close)
	// the in-flight request sees the canceled context
	select {
	case <-p.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled on Close")
	}
	p.fail(p.ctx.Err())
	waitDone(t, closed)

	mock.Add(time.Second)
	b.OnGenreSelect("drama")
	assert.False(t, b.ReportSentinel(true))
	f.assertIdle(t)
}

func TestBrowser_SubscribeDeliversStates(t *testing.T) {
	f := (&queueFetcher{}).push(pageOf(2, false, makeItems(1, 2)), nil)
	b, _ := newTestBrowser(t, f)

	got := make(chan State, 8)
	unsubscribe := b.Subscribe(func(st State) { got <- st })
	defer unsubscribe()

	b.OnGenreSelect("fiction")
	b.Wait()

	var last State
	for len(got) > 0 {
		last = <-got
	}
	assert.Len(t, last.Items, 2)
	assert.Equal(t, "fiction", last.Filters.Genre)
}
