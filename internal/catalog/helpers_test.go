package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fetcherFunc adapts a function to PageFetcher.
type fetcherFunc func(ctx context.Context, page int, filters Filters) (PageResult, error)

func (f fetcherFunc) FetchPage(ctx context.Context, page int, filters Filters) (PageResult, error) {
	return f(ctx, page, filters)
}

// queueFetcher answers calls from a fixed list of replies and records them.
type queueFetcher struct {
	mu      sync.Mutex
	replies []fetchReply
	calls   []fetchArgs
}

type fetchArgs struct {
	page    int
	filters Filters
}

type fetchReply struct {
	res PageResult
	err error
}

func (q *queueFetcher) push(res PageResult, err error) *queueFetcher {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.replies = append(q.replies, fetchReply{res: res, err: err})
	return q
}

func (q *queueFetcher) FetchPage(_ context.Context, page int, filters Filters) (PageResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, fetchArgs{page: page, filters: filters})
	if len(q.replies) == 0 {
		return PageResult{}, fmt.Errorf("unexpected fetch of page %d", page)
	}
	r := q.replies[0]
	q.replies = q.replies[1:]
	return r.res, r.err
}

func (q *queueFetcher) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *queueFetcher) call(i int) fetchArgs {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[i]
}

// blockingFetcher hands every call to the test, which decides when and how
// it returns.
type blockingFetcher struct {
	calls chan *pendingFetch
}

type pendingFetch struct {
	page    int
	filters Filters
	ctx     context.Context
	reply   chan fetchReply
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{calls: make(chan *pendingFetch, 8)}
}

func (b *blockingFetcher) FetchPage(ctx context.Context, page int, filters Filters) (PageResult, error) {
	p := &pendingFetch{page: page, filters: filters, ctx: ctx, reply: make(chan fetchReply, 1)}
	b.calls <- p
	r := <-p.reply
	return r.res, r.err
}

func (b *blockingFetcher) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-b.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch")
		return nil
	}
}

func (b *blockingFetcher) assertIdle(t *testing.T) {
	t.Helper()
	select {
	case p := <-b.calls:
		t.Fatalf("unexpected fetch of page %d", p.page)
	case <-time.After(50 * time.Millisecond):
	}
}

func (p *pendingFetch) succeed(res PageResult) { p.reply <- fetchReply{res: res} }
func (p *pendingFetch) fail(err error)         { p.reply <- fetchReply{err: err} }

func async(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store action")
	}
}

func makeItems(firstID, n int) []Item {
	items := make([]Item, n)
	for i := range items {
		id := firstID + i
		items[i] = Item{ID: id, Title: fmt.Sprintf("Book %d", id)}
	}
	return items
}

func pageOf(total int, hasNext bool, items []Item) PageResult {
	return PageResult{TotalCount: total, HasNext: hasNext, Items: items}
}

func ids(items []Item) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
