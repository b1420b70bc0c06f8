package feed

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Release is one entry of the new-releases feed.
type Release struct {
	BookID    int
	Title     string
	Author    string
	Link      string
	Published time.Time
}

var ebookIDPattern = regexp.MustCompile(`/ebooks/(\d+)`)

type Parser struct {
	parser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: gofeed.NewParser(),
	}
}

// Parse reads a feed and returns its releases in feed order. Entries that
// do not link to an ebook are skipped; repeated IDs are kept once.
func (p *Parser) Parse(reader io.Reader) ([]Release, error) {
	feed, err := p.parser.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	seen := make(map[int]bool)
	releases := make([]Release, 0, len(feed.Items))
	for _, item := range feed.Items {
		id, ok := extractBookID(item)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true

		title, author := splitTitle(item.Title)
		if author == "" && item.Author != nil {
			author = item.Author.Name
		}

		release := Release{
			BookID: id,
			Title:  title,
			Author: author,
			Link:   item.Link,
		}
		if item.PublishedParsed != nil {
			release.Published = *item.PublishedParsed
		}

		releases = append(releases, release)
	}

	return releases, nil
}

func extractBookID(item *gofeed.Item) (int, bool) {
	for _, candidate := range []string{item.Link, item.GUID} {
		m := ebookIDPattern.FindStringSubmatch(candidate)
		if len(m) < 2 {
			continue
		}
		if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

// splitTitle separates "Title by Author" as used in the Gutenberg feed.
func splitTitle(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, " by "); i > 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:])
	}
	return s, ""
}

// BookIDs returns the IDs of releases in order.
func BookIDs(releases []Release) []int {
	ids := make([]int, len(releases))
	for i, r := range releases {
		ids[i] = r.BookID
	}
	return ids
}
