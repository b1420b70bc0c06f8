package search

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pders01/shelf/internal/storage"
)

// Match represents where text was found
type Match struct {
	Field  string // "title", "authors", "subjects"
	Text   string
	Weight float64
}

// Engine scans the history without an index. It backs up the bleve engine
// when no index can be opened.
type Engine struct {
	store *storage.Store
}

// NewEngine creates a new search engine
func NewEngine(store *storage.Store) *Engine {
	return &Engine{store: store}
}

// Search scores every history entry against query
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	entries, err := e.store.History(0)
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, entry := range entries {
		if result := e.searchEntry(entry, terms); result != nil {
			results = append(results, result)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func (e *Engine) searchEntry(entry *storage.HistoryEntry, terms []string) *Result {
	var matches []Match
	var totalScore float64

	fields := []struct {
		name   string
		text   string
		weight float64
	}{
		{"title", entry.Title, 4.0},
		{"authors", entry.Authors, 3.0},
		{"subjects", strings.Join(entry.Subjects, "; "), 1.5},
	}

	for _, f := range fields {
		if score := scoreField(f.text, terms, f.weight); score > 0 {
			matches = append(matches, Match{Field: f.name, Text: truncate(f.text, 120), Weight: score})
			totalScore += score
		}
	}

	if totalScore == 0 {
		return nil
	}

	// books opened often rank slightly higher
	totalScore *= 1.0 + math.Log1p(float64(entry.OpenCount))/10

	return &Result{Entry: entry, Score: totalScore, Matches: matches}
}

// scoreField calculates relevance score for a field
func scoreField(text string, terms []string, weight float64) float64 {
	if text == "" {
		return 0
	}

	lower := strings.ToLower(text)
	words := tokenize(text)
	if len(words) == 0 {
		return 0
	}

	var score float64
	matchedTerms := 0

	for _, term := range terms {
		if strings.Contains(lower, term) {
			score += 2.0
			matchedTerms++
		}

		for _, word := range words {
			switch {
			case word == term:
				score += 1.5
				matchedTerms++
			case strings.HasPrefix(word, term) || strings.HasSuffix(word, term):
				score += 1.0
				matchedTerms++
			case strings.Contains(word, term):
				score += 0.5
				matchedTerms++
			}
		}
	}

	if len(terms) > 1 && matchedTerms > 1 {
		score *= 1.0 + float64(matchedTerms)/float64(len(terms))
	}

	tf := float64(matchedTerms) / float64(len(words))
	score *= 1.0 + math.Log(1.0+tf)

	return score * weight
}

// tokenize breaks text into lower-case searchable terms
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len([]rune(term)) > 1 { // Skip single chars
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if len([]rune(current.String())) > 1 {
		terms = append(terms, current.String())
	}

	return terms
}

// truncate limits text length with ellipsis
func truncate(text string, maxLen int) string {
	r := []rune(text)
	if len(r) <= maxLen {
		return text
	}
	return string(r[:maxLen-1]) + "…"
}
