package search

import "github.com/pders01/shelf/internal/storage"

// Searcher defines the minimal search API used by the TUI.
type Searcher interface {
	Search(query string, limit int) ([]*Result, error)
}

// UpdateListener can be implemented by search engines that maintain
// an external index and want to be notified about history changes.
type UpdateListener interface {
	OnHistoryUpdated(entry *storage.HistoryEntry)
}

// DeleteListener can be implemented to get notified when history entries
// are removed. An id of 0 means the whole history was cleared.
type DeleteListener interface {
	OnHistoryDeleted(id int)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}

// Result is one matching history entry.
type Result struct {
	Entry   *storage.HistoryEntry
	Score   float64
	Matches []Match
}

// New returns a bleve-backed searcher, or the scanning engine when the index
// cannot be opened. An empty indexPath keeps the index in memory.
func New(store *storage.Store, indexPath string) (Searcher, error) {
	s, err := NewBleveEngine(store, indexPath)
	if err != nil {
		return NewEngine(store), err
	}
	return s, nil
}
