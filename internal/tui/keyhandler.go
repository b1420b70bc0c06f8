package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/search"
)

// keyMap holds the resolved key strings as reported by tea.KeyMsg.String.
type keyMap struct {
	quit     string
	search   string
	back     string
	open     string
	details  string
	history  string
	releases string
	retry    string
	remove   string
}

func resolveKeys(cfg *config.Config) keyMap {
	mod := cfg.Keys.Modifier + "+"
	b := cfg.Keys.Bindings
	withMod := func(k, fallback string) string {
		if k == "" {
			k = fallback
		}
		return mod + k
	}
	plain := func(k, fallback string) string {
		if k == "" {
			return fallback
		}
		return k
	}
	return keyMap{
		quit:     plain(b.Quit, "q"),
		search:   plain(b.Search, "/"),
		back:     plain(b.Back, "esc"),
		open:     withMod(b.Open, "o"),
		details:  withMod(b.Details, "d"),
		history:  withMod(b.History, "h"),
		releases: withMod(b.Releases, "n"),
		retry:    withMod(b.Retry, "r"),
		remove:   mod + "x",
	}
}

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
	keys        keyMap
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	return &KeyHandler{
		app:         app,
		config:      cfg,
		modifierKey: cfg.Keys.Modifier + "+",
		keys:        resolveKeys(cfg),
	}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	kh.app.err = nil

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewBooks:
		return kh.app.searchInput.Focused()
	case ViewHistory:
		return kh.app.historyInput.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "ctrl+c":
		return kh.app.quit()
	case "esc", "tab", "down":
		kh.blurInput()
		return kh.app, nil
	case "enter":
		return kh.handleTextInputEnter()
	default:
		return kh.delegateToTextInput(msg)
	}
}

func (kh *KeyHandler) blurInput() {
	switch kh.app.view {
	case ViewBooks:
		kh.app.searchInput.Blur()
	case ViewHistory:
		kh.app.historyInput.Blur()
	}
}

func (kh *KeyHandler) handleTextInputEnter() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewBooks:
		kh.app.searchInput.Blur()
		if kh.app.browser != nil {
			kh.app.browser.FlushSearch()
		}
		return kh.app, kh.app.ensureSpinner()

	case ViewHistory:
		kh.app.historyInput.Blur()
		if items := kh.app.historyList.Items(); len(items) > 0 {
			kh.app.historyList.Select(0)
		}
		return kh.app, nil

	default:
		return kh.app, nil
	}
}

// delegateToTextInput passes the key to the focused input and reacts to
// value changes.
func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewBooks:
		prev := kh.app.searchInput.Value()
		newInput, cmd := kh.app.searchInput.Update(msg)
		kh.app.searchInput = newInput
		if v := kh.app.searchInput.Value(); v != prev && kh.app.browser != nil {
			kh.app.browser.OnSearch(sanitizeSearchInput(v, kh.config.Search.MaxQueryLength))
		}
		return kh.app, cmd

	case ViewHistory:
		prev := kh.app.historyInput.Value()
		newInput, cmd := kh.app.historyInput.Update(msg)
		kh.app.historyInput = newInput
		if kh.app.historyInput.Value() != prev {
			return kh.app, tea.Batch(cmd, kh.app.reloadHistory())
		}
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	// Global custom keys
	switch key {
	case "ctrl+c", kh.keys.quit:
		model, cmd := kh.app.quit()
		return model, cmd, true
	case kh.keys.back:
		model, cmd := kh.navigateBack()
		return model, cmd, true
	case kh.keys.history:
		model, cmd := kh.enterHistory()
		return model, cmd, true
	case kh.keys.releases:
		model, cmd := kh.enterReleases()
		return model, cmd, true
	}

	// View-specific custom keys
	switch kh.app.view {
	case ViewGenres:
		return kh.handleGenresCustomKeys(key)
	case ViewBooks:
		return kh.handleBookListKeys(key, kh.app.browser, &kh.app.bookList)
	case ViewReleases:
		return kh.handleBookListKeys(key, kh.app.releases, &kh.app.releaseList)
	case ViewDetail:
		return kh.handleDetailCustomKeys(key)
	case ViewHistory:
		return kh.handleHistoryCustomKeys(key)
	default:
		return kh.app, nil, false
	}
}

func (kh *KeyHandler) handleGenresCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case kh.keys.search:
		kh.app.view = ViewBooks
		return kh.app, kh.app.searchInput.Focus(), true
	case "enter":
		if i, ok := kh.app.genreList.SelectedItem().(genreItem); ok {
			return kh.app, kh.selectGenre(i.genre), true
		}
		return kh.app, nil, true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) selectGenre(g catalog.Genre) tea.Cmd {
	if kh.app.browser == nil {
		return nil
	}
	kh.app.view = ViewBooks
	kh.app.searchInput.Reset()
	kh.app.bookList.Select(0)
	if g.Topic == "" {
		kh.app.browser.ClearFilters()
	} else {
		kh.app.browser.OnGenreSelect(g.Topic)
	}
	return kh.app.ensureSpinner()
}

// handleBookListKeys serves the catalog list and the releases list.
func (kh *KeyHandler) handleBookListKeys(key string, b *catalog.Browser, l *list.Model) (tea.Model, tea.Cmd, bool) {
	switch key {
	case kh.keys.search:
		if kh.app.view != ViewBooks {
			return kh.app, nil, false
		}
		return kh.app, kh.app.searchInput.Focus(), true
	case "enter", kh.keys.details:
		if i, ok := l.SelectedItem().(bookItem); ok {
			return kh.app, kh.showDetail(i.item), true
		}
		return kh.app, nil, true
	case kh.keys.open:
		if i, ok := l.SelectedItem().(bookItem); ok {
			kh.app.setStatus(MsgOpening, StatusInfo, 0)
			return kh.app, kh.app.openBook(i.item), true
		}
		return kh.app, nil, true
	case kh.keys.retry:
		if b != nil {
			b.Retry()
		}
		return kh.app, kh.app.ensureSpinner(), true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleDetailCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "enter", kh.keys.open:
		if kh.app.currentItem != nil {
			kh.app.setStatus(MsgOpening, StatusInfo, 0)
			return kh.app, kh.app.openBook(*kh.app.currentItem), true
		}
		return kh.app, nil, true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleHistoryCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	i, ok := kh.app.historyList.SelectedItem().(historyItem)

	switch key {
	case kh.keys.search:
		return kh.app, kh.app.historyInput.Focus(), true
	case "enter", kh.keys.details:
		if !ok {
			return kh.app, nil, true
		}
		kh.app.previousView = ViewHistory
		kh.app.view = ViewDetail
		kh.app.loadingDetail = true
		kh.app.currentItem = nil
		return kh.app, tea.Batch(kh.app.ensureSpinner(), kh.app.fetchDetail(i.entry.ID)), true
	case kh.keys.open:
		if !ok {
			return kh.app, nil, true
		}
		return kh.app, kh.app.reopenEntry(i.entry), true
	case kh.keys.remove:
		if !ok {
			return kh.app, nil, true
		}
		return kh.app, kh.app.deleteHistoryEntry(i.entry.ID), true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) showDetail(item catalog.Item) tea.Cmd {
	kh.app.previousView = kh.app.view
	kh.app.view = ViewDetail
	kh.app.loadingDetail = true
	kh.app.currentItem = &item
	return tea.Batch(kh.app.ensureSpinner(), kh.app.renderDetail(item))
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewGenres:
		kh.app.genreList, cmd = kh.app.genreList.Update(msg)
		return kh.app, cmd

	case ViewBooks:
		kh.app.bookList, cmd = kh.app.bookList.Update(msg)
		kh.app.checkSentinel(ViewBooks)
		return kh.app, tea.Batch(cmd, kh.app.ensureSpinner())

	case ViewReleases:
		kh.app.releaseList, cmd = kh.app.releaseList.Update(msg)
		kh.app.checkSentinel(ViewReleases)
		return kh.app, tea.Batch(cmd, kh.app.ensureSpinner())

	case ViewHistory:
		// up from the first row returns to the search box
		if msg.String() == "up" && kh.app.historyList.Index() == 0 {
			return kh.app, kh.app.historyInput.Focus()
		}
		kh.app.historyList, cmd = kh.app.historyList.Update(msg)
		return kh.app, cmd

	case ViewDetail:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewDetail:
		kh.app.view = kh.app.previousView
		kh.app.loadingDetail = false
		return kh.app, nil

	case ViewBooks:
		kh.app.view = ViewGenres
		return kh.app, nil

	case ViewHistory, ViewReleases:
		kh.app.view = kh.app.returnView
		return kh.app, nil

	default:
		return kh.app.quit()
	}
}

func (kh *KeyHandler) enterHistory() (tea.Model, tea.Cmd) {
	if kh.app.view != ViewHistory && kh.app.view != ViewReleases && kh.app.view != ViewDetail {
		kh.app.returnView = kh.app.view
	}
	kh.app.view = ViewHistory
	kh.app.historyInput.Reset()
	focus := kh.app.historyInput.Focus()

	engineName := fmt.Sprintf("%T", kh.app.searcher)
	if ds, ok := kh.app.searcher.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			engineName += fmt.Sprintf(" • idx: %d", n)
		}
	}
	status := kh.app.setStatus("History search: "+strings.TrimPrefix(engineName, "*"), StatusInfo, 0)
	return kh.app, tea.Batch(focus, status, kh.app.reloadHistory())
}

func (kh *KeyHandler) enterReleases() (tea.Model, tea.Cmd) {
	if kh.app.view != ViewHistory && kh.app.view != ViewReleases && kh.app.view != ViewDetail {
		kh.app.returnView = kh.app.view
	}
	kh.app.view = ViewReleases
	if kh.app.releases == nil {
		return kh.app, kh.app.setStatus(MsgNoReleases, StatusWarn, 3*time.Second)
	}
	kh.app.releases.Start()
	return kh.app, kh.app.ensureSpinner()
}

// sanitizeSearchInput flattens whitespace and limits the query length.
func sanitizeSearchInput(input string, maxLen int) string {
	input = strings.Join(strings.Fields(input), " ")
	if r := []rune(input); maxLen > 0 && len(r) > maxLen {
		input = strings.TrimSpace(string(r[:maxLen]))
	}
	return input
}

// GetHelpForCurrentView returns only our custom help text (Charm handles the rest)
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	k := kh.keys
	switch kh.app.view {
	case ViewGenres:
		return []string{"enter: browse", k.search + ": search", k.releases + ": new", k.history + ": history", k.quit + ": quit"}

	case ViewBooks:
		return []string{k.search + ": search", "enter: details", k.open + ": open", k.retry + ": retry", k.back + ": genres"}

	case ViewReleases:
		return []string{"enter: details", k.open + ": open", k.retry + ": retry", k.back + ": back"}

	case ViewDetail:
		return []string{k.open + ": open", k.back + ": back"}

	case ViewHistory:
		return []string{k.search + ": search", "enter: details", k.open + ": reopen", k.remove + ": remove", k.back + ": back"}

	default:
		return []string{}
	}
}
