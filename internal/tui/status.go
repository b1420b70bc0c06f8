package tui

import (
	"fmt"
	"strings"
)

// Canonical short status messages used across the app.
const (
	MsgLoadingBooks   = "Loading books…"
	MsgLoadingMore    = "Loading more…"
	MsgLoadingDetails = "Loading details…"
	MsgFetchingNew    = "Fetching new releases…"
	MsgOpening        = "Opening…"
	MsgNoBooks        = "No books found"
	MsgNoHistory      = "Nothing opened yet"
	MsgEndOfResults   = "End of results"
	MsgRemoved        = "Removed from history"
	MsgNoReleases     = "New releases are not configured"
)

// StatusKind selects the style of a transient status message.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
)

func (k StatusKind) render(text string) string {
	switch k {
	case StatusSuccess:
		return StatusSuccessStyle.Render(text)
	case StatusWarn:
		return StatusWarnStyle.Render(text)
	default:
		return StatusInfoStyle.Render(text)
	}
}

func MsgOpened(title string, kind string) string {
	return fmt.Sprintf("Opened '%s' (%s)", strings.TrimSpace(title), kind)
}

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

// MsgProgress summarises how much of the result set is loaded.
func MsgProgress(loaded, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%d books", loaded)
	}
	return fmt.Sprintf("%d of %d books", loaded, total)
}
