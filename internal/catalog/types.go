package catalog

import "strings"

// Person is an author or translator as returned by the catalog API.
type Person struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birth_year"`
	DeathYear *int   `json:"death_year"`
}

// Item is a single book. Items are immutable once fetched; ID is the identity.
type Item struct {
	ID            int               `json:"id"`
	Title         string            `json:"title"`
	Authors       []Person          `json:"authors"`
	Translators   []Person          `json:"translators"`
	Subjects      []string          `json:"subjects"`
	Bookshelves   []string          `json:"bookshelves"`
	Languages     []string          `json:"languages"`
	Copyright     *bool             `json:"copyright"`
	MediaType     string            `json:"media_type"`
	Formats       map[string]string `json:"formats"`
	DownloadCount int               `json:"download_count"`
}

// PageResult is one fetch's worth of items plus pagination metadata.
type PageResult struct {
	TotalCount int
	HasNext    bool
	Items      []Item
}

// Filters is the current genre/search/language selection. Values are
// replaced on every change, never mutated in place.
type Filters struct {
	Genre       string   `json:"genre,omitempty"`
	SearchQuery string   `json:"search_query,omitempty"`
	Languages   []string `json:"languages,omitempty"`
}

// IsEmpty reports whether no filter narrows the catalog.
func (f Filters) IsEmpty() bool {
	return f.Genre == "" && strings.TrimSpace(f.SearchQuery) == "" && len(f.Languages) == 0
}

// FilterPatch is a partial Filters update. Nil fields are left untouched;
// Languages is applied only when SetLanguages is true so that an explicit
// empty list can clear the selection.
type FilterPatch struct {
	Genre        *string
	SearchQuery  *string
	Languages    []string
	SetLanguages bool
}

// WithGenre returns a patch setting the genre topic.
func WithGenre(topic string) FilterPatch {
	return FilterPatch{Genre: &topic}
}

// WithSearch returns a patch setting the free-text query.
func WithSearch(query string) FilterPatch {
	return FilterPatch{SearchQuery: &query}
}

// WithLanguages returns a patch replacing the language list.
func WithLanguages(langs ...string) FilterPatch {
	return FilterPatch{Languages: langs, SetLanguages: true}
}

// Patch returns a patch that replaces every field with f's values.
func (f Filters) Patch() FilterPatch {
	genre, query := f.Genre, f.SearchQuery
	return FilterPatch{
		Genre:        &genre,
		SearchQuery:  &query,
		Languages:    cloneStrings(f.Languages),
		SetLanguages: true,
	}
}

// Merge applies p on top of f and returns a new snapshot.
func (f Filters) Merge(p FilterPatch) Filters {
	out := Filters{
		Genre:       f.Genre,
		SearchQuery: f.SearchQuery,
		Languages:   cloneStrings(f.Languages),
	}
	if p.Genre != nil {
		out.Genre = *p.Genre
	}
	if p.SearchQuery != nil {
		out.SearchQuery = *p.SearchQuery
	}
	if p.SetLanguages {
		out.Languages = cloneStrings(p.Languages)
	}
	return out
}

// Clone returns a deep copy.
func (f Filters) Clone() Filters {
	f.Languages = cloneStrings(f.Languages)
	return f
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Phase is the externally visible state of the store.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitialLoading
	PhaseLoadingMore
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitialLoading:
		return "initial-loading"
	case PhaseLoadingMore:
		return "loading-more"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a read-only snapshot of the catalog.
type State struct {
	Items            []Item
	CurrentPage      int
	HasMore          bool
	TotalCount       int
	Filters          Filters
	IsInitialLoading bool
	IsLoadingMore    bool
	LastError        string
}

// Phase derives the state machine phase from the flags.
func (s State) Phase() Phase {
	switch {
	case s.IsInitialLoading:
		return PhaseInitialLoading
	case s.IsLoadingMore:
		return PhaseLoadingMore
	case s.LastError != "":
		return PhaseError
	default:
		return PhaseIdle
	}
}

// Loading reports whether any fetch is in flight.
func (s State) Loading() bool {
	return s.IsInitialLoading || s.IsLoadingMore
}

func initialState() State {
	return State{
		CurrentPage: 1,
		HasMore:     true,
	}
}
