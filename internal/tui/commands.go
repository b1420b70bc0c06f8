package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/search"
	"github.com/pders01/shelf/internal/storage"
)

const historyLimit = 100

func (a *App) waitForState() tea.Cmd {
	return func() tea.Msg {
		select {
		case source := <-a.states:
			return stateChangedMsg{source: source}
		case <-a.ctx.Done():
			return nil
		}
	}
}

// detailMarkdown lays out an item's metadata for glamour.
func detailMarkdown(item catalog.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)

	if len(item.Authors) == 0 {
		b.WriteString("*Unknown Author*\n\n")
	}
	for _, p := range item.Authors {
		fmt.Fprintf(&b, "**%s** %s\n\n", p.Name, catalog.FormatLifespan(p))
	}
	if len(item.Translators) > 0 {
		names := make([]string, len(item.Translators))
		for i, p := range item.Translators {
			names[i] = p.Name
		}
		fmt.Fprintf(&b, "Translated by %s\n\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(&b, "- Downloads: %s\n", catalog.FormatDownloadCount(item.DownloadCount))
	if len(item.Languages) > 0 {
		fmt.Fprintf(&b, "- Languages: %s\n", strings.Join(item.Languages, ", "))
	}
	if item.Copyright != nil {
		if *item.Copyright {
			b.WriteString("- Copyright: protected in the US\n")
		} else {
			b.WriteString("- Copyright: public domain in the US\n")
		}
	}
	if r, err := catalog.ViewableLink(item); err == nil {
		fmt.Fprintf(&b, "- Read as %s: %s\n", r.Kind, r.URL)
	} else {
		b.WriteString("- No viewable version available\n")
	}
	if cover := catalog.CoverURL(item); cover != "" {
		fmt.Fprintf(&b, "- Cover: %s\n", cover)
	}
	b.WriteString("\n")

	if len(item.Subjects) > 0 {
		b.WriteString("## Subjects\n\n")
		for _, s := range item.Subjects {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(item.Bookshelves) > 0 {
		b.WriteString("## Bookshelves\n\n")
		for _, s := range item.Bookshelves {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderDetail(item catalog.Item) tea.Cmd {
	return func() tea.Msg {
		md := detailMarkdown(item)

		r, err := a.getRenderer()
		if err != nil {
			return detailRenderedMsg{item: item, content: md}
		}
		rendered, err := r.Render(md)
		if err != nil {
			debuglog.Warnf("rendering details of book %d: %v", item.ID, err)
			return detailRenderedMsg{item: item, content: md}
		}
		return detailRenderedMsg{item: item, content: rendered}
	}
}

// fetchDetail looks a book up by ID and renders it.
func (a *App) fetchDetail(id int) tea.Cmd {
	return func() tea.Msg {
		if a.lookup == nil {
			return errorMsg{err: fmt.Errorf("book lookup is not configured")}
		}
		item, err := a.lookup.FetchByID(a.ctx, id)
		if err != nil {
			return errorMsg{err: wrapErr(fmt.Sprintf("loading book %d", id), err)}
		}
		return a.renderDetail(item)()
	}
}

// openBook hands the item's best rendition to the opener and records it in
// the history.
func (a *App) openBook(item catalog.Item) tea.Cmd {
	return func() tea.Msg {
		r, err := catalog.ViewableLink(item)
		if err != nil {
			return errorMsg{err: err}
		}
		return a.openRendition(item, r)
	}
}

// reopenEntry opens a history entry's recorded rendition without a lookup.
func (a *App) reopenEntry(entry *storage.HistoryEntry) tea.Cmd {
	return func() tea.Msg {
		item := catalog.Item{ID: entry.ID, Title: entry.Title, Subjects: entry.Subjects, Languages: entry.Languages}
		if entry.Authors != "" {
			item.Authors = []catalog.Person{{Name: entry.Authors}}
		}
		r := catalog.Rendition{Kind: catalog.RenditionKind(entry.Kind), URL: entry.URL}
		return a.openRendition(item, r)
	}
}

func (a *App) openRendition(item catalog.Item, r catalog.Rendition) tea.Msg {
	if a.launcher == nil {
		return errorMsg{err: errors.New("no opener configured")}
	}
	if err := a.launcher.Open(r); err != nil {
		return errorMsg{err: wrapErr("failed to open "+truncateMiddle(r.URL, 60), err)}
	}

	entry := &storage.HistoryEntry{ID: item.ID, Title: item.Title, Kind: string(r.Kind), URL: r.URL}
	if a.store != nil {
		recorded, err := a.store.RecordOpen(item, r, time.Now())
		if err != nil {
			debuglog.Errorf("recording book %d in history: %v", item.ID, err)
		} else {
			entry = recorded
			if l, ok := a.searcher.(search.UpdateListener); ok {
				l.OnHistoryUpdated(recorded)
			}
		}
	}
	return bookOpenedMsg{entry: entry}
}

func (a *App) loadHistory(query string, seq int) tea.Cmd {
	return func() tea.Msg {
		if a.store == nil {
			return historyLoadedMsg{query: query, seq: seq}
		}
		query = strings.TrimSpace(query)
		if len([]rune(query)) < 2 || a.searcher == nil {
			entries, err := a.store.History(historyLimit)
			if err != nil {
				return errorMsg{err: wrapErr("loading history", err)}
			}
			return historyLoadedMsg{seq: seq, items: historyItemsFromEntries(entries)}
		}

		results, err := a.searcher.Search(query, historyLimit)
		if err != nil {
			return errorMsg{err: wrapErr("searching history", err)}
		}
		return historyLoadedMsg{query: query, seq: seq, items: historyItemsFromResults(results)}
	}
}

func (a *App) reloadHistory() tea.Cmd {
	a.historySeq++
	return a.loadHistory(a.historyInput.Value(), a.historySeq)
}

func (a *App) deleteHistoryEntry(id int) tea.Cmd {
	return func() tea.Msg {
		if a.store == nil {
			return nil
		}
		if err := a.store.DeleteHistoryEntry(id); err != nil {
			return errorMsg{err: wrapErr("removing from history", err)}
		}
		if l, ok := a.searcher.(search.DeleteListener); ok {
			l.OnHistoryDeleted(id)
		}
		return historyDeletedMsg{id: id}
	}
}

// saveSession stores the current filters for the next start.
func (a *App) saveSession() {
	if a.store == nil || a.browser == nil {
		return
	}
	if err := a.store.SaveSession(a.browser.Snapshot().Filters, time.Now()); err != nil {
		debuglog.Errorf("saving session: %v", err)
	}
}

// wrapErr prefixes err with what the command was doing; nil stays nil.
func wrapErr(doing string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", doing, err)
}
