package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/search"
	"github.com/pders01/shelf/internal/storage"
)

type genreItem struct {
	genre catalog.Genre
}

func (i genreItem) Title() string {
	if i.genre.Icon == "" {
		return i.genre.Label
	}
	return GenreIconStyle.Render(i.genre.Icon) + " " + i.genre.Label
}

func (i genreItem) Description() string { return i.genre.Description }
func (i genreItem) FilterValue() string { return i.genre.Label }

// allBooksGenre is the unfiltered catalog entry at the top of the genre list.
var allBooksGenre = catalog.Genre{
	ID:          "all",
	Label:       "All books",
	Icon:        "∗",
	Description: "The whole catalog, most downloaded first",
}

func genreListItems() []genreItem {
	genres := catalog.Genres()
	items := make([]genreItem, 0, len(genres)+1)
	items = append(items, genreItem{genre: allBooksGenre})
	for _, g := range genres {
		items = append(items, genreItem{genre: g})
	}
	return items
}

type bookItem struct {
	item     catalog.Item
	maxTitle int
}

func (i bookItem) Title() string {
	return truncateEnd(i.item.Title, i.maxTitle)
}

func (i bookItem) Description() string {
	parts := []string{catalog.FormatAuthors(i.item)}
	if i.item.DownloadCount > 0 {
		parts = append(parts, "↓ "+catalog.FormatDownloadCount(i.item.DownloadCount))
	}
	if len(i.item.Languages) > 0 {
		parts = append(parts, strings.Join(i.item.Languages, ","))
	}
	return lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(strings.Join(parts, " • "))
}

func (i bookItem) FilterValue() string { return i.item.Title }

type historyItem struct {
	entry *storage.HistoryEntry
	score float64
}

func (i historyItem) Title() string { return i.entry.Title }

func (i historyItem) Description() string {
	desc := i.entry.Authors
	if desc == "" {
		desc = "Unknown Author"
	}
	opened := fmt.Sprintf("opened %d×", i.entry.OpenCount)
	if !i.entry.OpenedAt.IsZero() {
		opened += ", last " + i.entry.OpenedAt.Format("Jan 2, 15:04")
	}
	return lipgloss.NewStyle().
		Foreground(MutedColor).
		Render(desc + " • " + i.entry.Kind + " • " + opened)
}

func (i historyItem) FilterValue() string { return i.entry.Title }

func historyItemsFromEntries(entries []*storage.HistoryEntry) []historyItem {
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{entry: e}
	}
	return items
}

func historyItemsFromResults(results []*search.Result) []historyItem {
	items := make([]historyItem, 0, len(results))
	for _, r := range results {
		if r.Entry == nil {
			continue
		}
		items = append(items, historyItem{entry: r.Entry, score: r.Score})
	}
	return items
}
