package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/media"
	"github.com/pders01/shelf/internal/search"
	"github.com/pders01/shelf/internal/storage"
)

// BookLookup resolves a single book, used when reopening history entries.
type BookLookup interface {
	FetchByID(ctx context.Context, id int) (catalog.Item, error)
}

// Options wires the app to its collaborators. Store, Releases, Searcher and
// Lookup may be nil; the matching views are then unavailable.
type Options struct {
	Config   *config.Config
	Browser  *catalog.Browser
	Releases *catalog.Browser
	Store    *storage.Store
	Searcher search.Searcher
	Launcher media.Opener
	Lookup   BookLookup
	// Initial filters open the book list directly instead of the genre picker.
	Initial catalog.Filters
}

type App struct {
	config     *config.Config
	browser    *catalog.Browser
	releases   *catalog.Browser
	store      *storage.Store
	searcher   search.Searcher
	launcher   media.Opener
	lookup     BookLookup
	initial    catalog.Filters
	keyHandler *KeyHandler

	genreList    list.Model
	bookList     list.Model
	releaseList  list.Model
	historyList  list.Model
	searchInput  textinput.Model
	historyInput textinput.Model
	viewport     viewport.Model
	spinner      spinner.Model

	view         View
	previousView View // where the detail view returns to
	returnView   View // where history and releases return to

	books       catalog.State
	newReleases catalog.State

	currentItem   *catalog.Item
	loadingDetail bool
	historySeq    int

	states      chan View
	unsubscribe []func()
	spinning    bool

	status     string
	statusKind StatusKind
	statusSeq  int

	width           int
	height          int
	err             error
	glamourRenderer *glamour.TermRenderer
	rendererWidth   int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewApp(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.TestConfig()
	}

	genreList := newList("› genres")
	genres := genreListItems()
	items := make([]list.Item, len(genres))
	for i, g := range genres {
		items[i] = g
	}
	genreList.SetItems(items)

	bookList := newList("› books")
	releaseList := newList("› new releases")
	historyList := newList("› history")

	si := textinput.New()
	si.Placeholder = "Search titles and authors..."
	si.CharLimit = cfg.Search.MaxQueryLength

	hi := textinput.New()
	hi.Placeholder = "Search opened books..."
	hi.CharLimit = cfg.Search.MaxQueryLength

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(AccentColor)

	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		config:       cfg,
		browser:      opts.Browser,
		releases:     opts.Releases,
		store:        opts.Store,
		searcher:     opts.Searcher,
		launcher:     opts.Launcher,
		lookup:       opts.Lookup,
		initial:      opts.Initial.Clone(),
		genreList:    genreList,
		bookList:     bookList,
		releaseList:  releaseList,
		historyList:  historyList,
		searchInput:  si,
		historyInput: hi,
		viewport:     viewport.New(0, 0),
		spinner:      sp,
		view:         ViewGenres,
		previousView: ViewBooks,
		returnView:   ViewGenres,
		states:       make(chan View, 16),
		ctx:          ctx,
		cancel:       cancel,
	}
	if app.browser != nil {
		app.books = app.browser.Snapshot()
		app.watch(ViewBooks, app.browser)
	}
	if app.releases != nil {
		app.newReleases = app.releases.Snapshot()
		app.watch(ViewReleases, app.releases)
	}

	app.keyHandler = NewKeyHandler(app, cfg)

	return app
}

// newList builds a list without local filtering; "/" belongs to the search
// inputs.
func newList(title string) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return l
}

// watch forwards store changes into the Bubble Tea loop. Only the source is
// queued; the handler reads a fresh snapshot, so dropped notifications lose
// nothing.
func (a *App) watch(source View, b *catalog.Browser) {
	unsub := b.Subscribe(func(catalog.State) {
		select {
		case a.states <- source:
		default:
		}
	})
	a.unsubscribe = append(a.unsubscribe, unsub)
}

// Close detaches the app from its browsers.
func (a *App) Close() {
	for _, unsub := range a.unsubscribe {
		unsub()
	}
	a.unsubscribe = nil
	a.cancel()
}

func (a *App) getRenderer() (*glamour.TermRenderer, error) {
	wordWrapWidth := (a.width * 9) / 10
	if wordWrapWidth > 100 {
		wordWrapWidth = 100
	}
	if wordWrapWidth < 40 {
		wordWrapWidth = 40
	}
	if a.width > 0 && a.width < 50 {
		wordWrapWidth = max(a.width-4, 20)
	}

	if a.glamourRenderer == nil || abs(a.rendererWidth-wordWrapWidth) > 10 {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wordWrapWidth),
		)
		if err != nil {
			return nil, err
		}
		a.glamourRenderer = r
		a.rendererWidth = wordWrapWidth
	}

	return a.glamourRenderer, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.EnterAltScreen, a.waitForState()}

	if a.browser != nil {
		if !a.initial.IsEmpty() {
			a.view = ViewBooks
			a.searchInput.SetValue(a.initial.SearchQuery)
			a.browser.Restore(a.initial)
		} else {
			a.browser.Start()
		}
	}
	if cmd := a.ensureSpinner(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		return a.keyHandler.HandleKey(msg)

	case stateChangedMsg:
		a.applyState(msg.source)
		cmds = append(cmds, a.waitForState(), a.ensureSpinner())
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.busy() {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case detailRenderedMsg:
		a.loadingDetail = false
		if a.view == ViewDetail {
			item := msg.item
			a.currentItem = &item
			a.viewport.SetContent(msg.content)
			a.viewport.GotoTop()
			a.clearStatus()
		}

	case bookOpenedMsg:
		a.err = nil
		cmds = append(cmds, a.setStatus(MsgOpened(msg.entry.Title, msg.entry.Kind), StatusSuccess, 3*time.Second))
		if a.view == ViewHistory {
			cmds = append(cmds, a.reloadHistory())
		}

	case historyLoadedMsg:
		if msg.seq == a.historySeq {
			items := make([]list.Item, len(msg.items))
			for i, it := range msg.items {
				items[i] = it
			}
			a.historyList.SetItems(items)
			if msg.query != "" {
				a.historyList.Title = "› history: " + MsgResultsCount(len(items))
			} else {
				a.historyList.Title = "› history"
			}
		}

	case historyDeletedMsg:
		cmds = append(cmds, a.setStatus(MsgRemoved, StatusInfo, 3*time.Second), a.reloadHistory())

	case statusClearMsg:
		if msg.seq == a.statusSeq {
			a.clearStatus()
		}

	case errorMsg:
		a.loadingDetail = false
		a.err = msg.err
	}

	switch a.view {
	case ViewDetail:
		switch msg.(type) {
		case tea.MouseMsg:
			newViewport, cmd := a.viewport.Update(msg)
			a.viewport = newViewport
			cmds = append(cmds, cmd)
		}
	case ViewHistory:
		newInput, cmd := a.historyInput.Update(msg)
		a.historyInput = newInput
		cmds = append(cmds, cmd)
	case ViewBooks:
		newInput, cmd := a.searchInput.Update(msg)
		a.searchInput = newInput
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

// quit stores the session and stops the program.
func (a *App) quit() (tea.Model, tea.Cmd) {
	a.saveSession()
	return a, tea.Quit
}

func (a *App) resize(width, height int) {
	a.width = width
	a.height = height

	contentHeight := max(height-2, 3) // status bar and separator
	a.genreList.SetSize(width, contentHeight)
	// footer row
	a.releaseList.SetSize(width, max(contentHeight-1, 3))
	// two header rows, bordered input and footer row
	a.bookList.SetSize(width, max(contentHeight-6, 3))
	// bordered input
	a.historyList.SetSize(width, max(contentHeight-3, 3))
	a.viewport.Width = width
	a.viewport.Height = contentHeight

	inputWidth := width - 8
	if inputWidth < 10 {
		inputWidth = max(width-4, 1)
	}
	a.searchInput.Width = inputWidth
	a.historyInput.Width = inputWidth

	a.checkSentinel(a.view)
}

// applyState copies a fresh snapshot of source into the matching list.
func (a *App) applyState(source View) {
	switch source {
	case ViewBooks:
		if a.browser == nil {
			return
		}
		prev := a.books
		a.books = a.browser.Snapshot()
		a.syncList(&a.bookList, prev, a.books)
		a.afterSettle(source, prev, a.books)
	case ViewReleases:
		if a.releases == nil {
			return
		}
		prev := a.newReleases
		a.newReleases = a.releases.Snapshot()
		a.syncList(&a.releaseList, prev, a.newReleases)
		a.afterSettle(source, prev, a.newReleases)
	}
}

func (a *App) syncList(l *list.Model, prev, next catalog.State) {
	maxTitle := a.config.UI.List.MaxTitleLength
	if maxTitle <= 0 {
		maxTitle = 80
	}
	items := make([]list.Item, len(next.Items))
	for i, it := range next.Items {
		items[i] = bookItem{item: it, maxTitle: maxTitle}
	}
	l.SetItems(items)
	// a reset shrinks or replaces the list
	if len(next.Items) < len(prev.Items) || len(prev.Items) == 0 {
		l.Select(0)
	}
}

// afterSettle re-checks the sentinel once appended rows have pushed it down.
func (a *App) afterSettle(source View, prev, next catalog.State) {
	if next.Loading() || next.LastError != "" || len(next.Items) <= len(prev.Items) {
		return
	}
	if b := a.browserFor(source); b != nil {
		b.ReportSentinel(false)
	}
	if a.view == source {
		a.checkSentinel(source)
	}
}

func (a *App) browserFor(v View) *catalog.Browser {
	switch v {
	case ViewBooks:
		return a.browser
	case ViewReleases:
		return a.releases
	default:
		return nil
	}
}

// checkSentinel reports whether the end of the list is within the prefetch
// threshold of the cursor.
func (a *App) checkSentinel(v View) bool {
	b := a.browserFor(v)
	if b == nil {
		return false
	}
	l := &a.bookList
	if v == ViewReleases {
		l = &a.releaseList
	}
	return b.ReportSentinel(sentinelVisible(len(l.Items()), l.Index(), a.config.UI.List.PrefetchThreshold))
}

func sentinelVisible(count, index, threshold int) bool {
	if count == 0 {
		return false
	}
	return index >= count-1-max(threshold, 0)
}

func (a *App) busy() bool {
	return a.books.Loading() || a.newReleases.Loading() || a.loadingDetail
}

func (a *App) ensureSpinner() tea.Cmd {
	if a.spinning || !a.busy() {
		return nil
	}
	a.spinning = true
	return a.spinner.Tick
}

func (a *App) setStatus(text string, kind StatusKind, ttl time.Duration) tea.Cmd {
	a.statusSeq++
	a.status = text
	a.statusKind = kind
	if ttl <= 0 {
		return nil
	}
	seq := a.statusSeq
	return tea.Tick(ttl, func(time.Time) tea.Msg { return statusClearMsg{seq: seq} })
}

func (a *App) clearStatus() {
	a.statusSeq++
	a.status = ""
	a.statusKind = StatusInfo
}

func (a *App) View() string {
	var content string
	contentHeight := max(a.height-2, 0)

	switch a.view {
	case ViewGenres:
		content = a.genreList.View()
	case ViewBooks:
		content = a.booksView()
	case ViewDetail:
		if a.loadingDetail {
			content = renderCentered(a.width, contentHeight,
				a.spinner.View()+" "+renderMuted(MsgLoadingDetails))
		} else {
			content = a.viewport.View()
		}
	case ViewHistory:
		content = a.historyView()
	case ViewReleases:
		content = lipgloss.JoinVertical(lipgloss.Top,
			a.releasesBody(),
			a.footer(a.newReleases, MsgFetchingNew),
		)
	}

	content = ContentWrapper(a.width, contentHeight).Render(content)

	separatorWidth := max(a.width-2, 0)
	separator := SeparatorStyle.Render("─" + strings.Repeat("─", separatorWidth))
	return lipgloss.JoinVertical(lipgloss.Top, content, separator, a.statusBar())
}

// ContentWrapper returns a style for wrapping content with width and height constraints
func ContentWrapper(width, height int) lipgloss.Style {
	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height)
}

func (a *App) booksView() string {
	title := "› books"
	if g, ok := catalog.FindGenre(a.books.Filters.Genre); ok {
		title = "› " + strings.ToLower(g.Label)
	} else if a.books.Filters.Genre != "" {
		title = "› " + a.books.Filters.Genre
	}
	subtitle := ""
	if len(a.books.Items) > 0 {
		subtitle = MsgProgress(len(a.books.Items), a.books.TotalCount)
	}

	header := renderHeader(title, subtitle, a.width)
	input := renderInputFrame(a.searchInput.View(), a.searchInput.Focused(), a.searchInput.Width)

	var body string
	switch {
	case a.books.IsInitialLoading:
		body = renderCentered(a.width, a.bookList.Height(), a.spinner.View()+" "+renderMuted(MsgLoadingBooks))
	case len(a.books.Items) == 0 && a.books.LastError == "":
		body = renderCentered(a.width, a.bookList.Height(), renderMuted(MsgNoBooks))
	default:
		body = a.bookList.View()
	}

	return lipgloss.JoinVertical(lipgloss.Top, header, input, body, a.footer(a.books, MsgLoadingMore))
}

func (a *App) releasesBody() string {
	switch {
	case a.releases == nil:
		return renderCentered(a.width, a.releaseList.Height(), renderMuted(MsgNoReleases))
	case a.newReleases.IsInitialLoading:
		return renderCentered(a.width, a.releaseList.Height(), a.spinner.View()+" "+renderMuted(MsgFetchingNew))
	case len(a.newReleases.Items) == 0 && a.newReleases.LastError == "":
		return renderCentered(a.width, a.releaseList.Height(), renderMuted(MsgNoBooks))
	default:
		return a.releaseList.View()
	}
}

// footer is the row below a paginated list: the load-more sentinel.
func (a *App) footer(st catalog.State, loadingText string) string {
	switch {
	case st.IsLoadingMore:
		return a.spinner.View() + " " + renderMuted(loadingText)
	case st.LastError != "":
		return StatusErrorStyle.Render("✗ "+st.LastError) + renderMuted("  "+a.keyHandler.keys.retry+": retry")
	case !st.HasMore && len(st.Items) > 0:
		return renderMuted(MsgEndOfResults)
	default:
		return ""
	}
}

func (a *App) historyView() string {
	input := renderInputFrame(a.historyInput.View(), a.historyInput.Focused(), a.historyInput.Width)

	var body string
	if a.store == nil {
		body = renderCentered(a.width, a.historyList.Height(), renderMuted("History is unavailable"))
	} else if len(a.historyList.Items()) == 0 {
		body = renderCentered(a.width, a.historyList.Height(), renderMuted(MsgNoHistory))
	} else {
		body = a.historyList.View()
	}
	return lipgloss.JoinVertical(lipgloss.Top, input, body)
}

func (a *App) statusBar() string {
	style := lipgloss.NewStyle().Width(a.width).Padding(0, 1).Foreground(MutedColor)

	if a.err != nil {
		return style.Render(StatusErrorStyle.Render(fmt.Sprintf("✗ %v", a.err)))
	}

	if a.status != "" {
		return style.Render(a.statusKind.render(a.status))
	}

	return style.Render(strings.Join(a.keyHandler.GetHelpForCurrentView(), " • "))
}

type stateChangedMsg struct {
	source View
}

type detailRenderedMsg struct {
	item    catalog.Item
	content string
}

type bookOpenedMsg struct {
	entry *storage.HistoryEntry
}

type historyLoadedMsg struct {
	query string
	seq   int
	items []historyItem
}

type historyDeletedMsg struct {
	id int
}

type statusClearMsg struct {
	seq int
}

type errorMsg struct {
	err error
}
