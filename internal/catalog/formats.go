package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// RenditionKind is the kind of a directly viewable format.
type RenditionKind string

const (
	RenditionHTML RenditionKind = "html"
	RenditionPDF  RenditionKind = "pdf"
	RenditionText RenditionKind = "txt"
)

// Rendition is a viewable format of an item.
type Rendition struct {
	Kind RenditionKind
	URL  string
}

var renditionOrder = []struct {
	kind RenditionKind
	mime string
}{
	{RenditionHTML, "text/html"},
	{RenditionPDF, "application/pdf"},
	{RenditionText, "text/plain"},
}

// ViewableLink picks the first of HTML, PDF, then plain text whose URL is
// not a zip archive.
func ViewableLink(item Item) (Rendition, error) {
	// map order is random; sort so that repeated lookups agree
	mimes := make([]string, 0, len(item.Formats))
	for mime := range item.Formats {
		mimes = append(mimes, mime)
	}
	sort.Strings(mimes)

	for _, want := range renditionOrder {
		for _, mime := range mimes {
			url := item.Formats[mime]
			if strings.Contains(mime, want.mime) && !strings.Contains(url, ".zip") {
				return Rendition{Kind: want.kind, URL: url}, nil
			}
		}
	}
	return Rendition{}, &NoViewableFormatError{ItemID: item.ID}
}

// CoverURL returns the jpeg cover, falling back to png, or "".
func CoverURL(item Item) string {
	if u := item.Formats["image/jpeg"]; u != "" {
		return u
	}
	return item.Formats["image/png"]
}

// FormatAuthors joins author names.
func FormatAuthors(item Item) string {
	if len(item.Authors) == 0 {
		return "Unknown Author"
	}
	names := make([]string, len(item.Authors))
	for i, a := range item.Authors {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// FormatLifespan renders "(1809-1849)" style years, or "" when unknown.
func FormatLifespan(p Person) string {
	switch {
	case p.BirthYear != nil && p.DeathYear != nil:
		return fmt.Sprintf("(%d-%d)", *p.BirthYear, *p.DeathYear)
	case p.BirthYear != nil:
		return fmt.Sprintf("(b. %d)", *p.BirthYear)
	case p.DeathYear != nil:
		return fmt.Sprintf("(d. %d)", *p.DeathYear)
	default:
		return ""
	}
}

// FormatDownloadCount abbreviates large counts: 1500 -> "1.5K".
func FormatDownloadCount(count int) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000)
	case count >= 1000:
		return fmt.Sprintf("%.1fK", float64(count)/1000)
	default:
		return fmt.Sprintf("%d", count)
	}
}
