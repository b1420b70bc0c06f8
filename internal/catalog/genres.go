package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed genres.toml
var genresTOML []byte

// Genre is a browsable topic shown on the home screen.
type Genre struct {
	ID          string `toml:"id"`
	Label       string `toml:"label"`
	Icon        string `toml:"icon"`
	Topic       string `toml:"topic"`
	Description string `toml:"description"`
}

type genreFile struct {
	Genres []Genre `toml:"genre"`
}

var (
	genresOnce sync.Once
	genres     []Genre
	genresErr  error
)

// ParseGenres decodes a genre table.
func ParseGenres(data []byte) ([]Genre, error) {
	var f genreFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding genres: %w", err)
	}
	for i, g := range f.Genres {
		if g.Topic == "" {
			return nil, fmt.Errorf("genre %d (%q) has no topic", i, g.ID)
		}
	}
	return f.Genres, nil
}

// Genres returns the built-in genre list.
func Genres() []Genre {
	genresOnce.Do(func() {
		genres, genresErr = ParseGenres(genresTOML)
	})
	if genresErr != nil {
		panic(genresErr) // embedded data is validated by tests
	}
	out := make([]Genre, len(genres))
	copy(out, genres)
	return out
}

// FindGenre looks a genre up by topic.
func FindGenre(topic string) (Genre, bool) {
	for _, g := range Genres() {
		if g.Topic == topic {
			return g, true
		}
	}
	return Genre{}, false
}
