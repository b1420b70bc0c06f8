// Package scroll turns sentinel visibility into an edge-triggered
// "load more" signal.
package scroll

import "sync"

// Gate reports whether more data exists and whether a load is running.
type Gate func() (hasMore, loading bool)

// Trigger fires its callback once per not-visible to visible transition of
// the sentinel, and only while the gate allows it.
type Trigger struct {
	onEnter func()
	gate    Gate

	mu       sync.Mutex
	visible  bool
	detached bool
}

// NewTrigger creates a trigger. A nil gate always allows firing.
func NewTrigger(onEnter func(), gate Gate) *Trigger {
	return &Trigger{onEnter: onEnter, gate: gate}
}

// Update reports the sentinel's current visibility and returns whether the
// callback was invoked.
func (t *Trigger) Update(visible bool) bool {
	t.mu.Lock()
	if t.detached {
		t.mu.Unlock()
		return false
	}
	entered := visible && !t.visible
	t.visible = visible
	t.mu.Unlock()

	if !entered {
		return false
	}
	if t.gate != nil {
		if hasMore, loading := t.gate(); !hasMore || loading {
			return false
		}
	}
	t.onEnter()
	return true
}

// Rearm forgets the last observed visibility, as if the sentinel had just
// been mounted. A sentinel that is still visible fires on the next Update.
func (t *Trigger) Rearm() {
	t.mu.Lock()
	t.visible = false
	t.mu.Unlock()
}

// Detach stops observing; Update never fires afterwards.
func (t *Trigger) Detach() {
	t.mu.Lock()
	t.detached = true
	t.visible = false
	t.mu.Unlock()
}

// Visible returns the last observed visibility.
func (t *Trigger) Visible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible
}
