package storage

import (
	"time"

	"github.com/pders01/shelf/internal/catalog"
)

// HistoryEntry records a book the user opened.
type HistoryEntry struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	Subjects  []string  `json:"subjects"`
	Languages []string  `json:"languages"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	OpenCount int       `json:"open_count"`
	FirstOpen time.Time `json:"first_open"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Session is what is restored on the next start.
type Session struct {
	Filters catalog.Filters `json:"filters"`
	SavedAt time.Time       `json:"saved_at"`
}

// FeedMeta caches conditional-request headers and the last parsed ebook IDs
// of a feed.
type FeedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"last_modified"`
	LastFetched  time.Time `json:"last_fetched"`
	BookIDs      []int     `json:"book_ids"`
}
