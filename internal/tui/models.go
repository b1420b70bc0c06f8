package tui

type View int

const (
	ViewGenres View = iota
	ViewBooks
	ViewDetail
	ViewHistory
	ViewReleases
)

func (v View) String() string {
	switch v {
	case ViewGenres:
		return "genres"
	case ViewBooks:
		return "books"
	case ViewDetail:
		return "detail"
	case ViewHistory:
		return "history"
	case ViewReleases:
		return "releases"
	default:
		return "unknown"
	}
}
