package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewableLink(t *testing.T) {
	tests := []struct {
		name    string
		formats map[string]string
		want    Rendition
		wantErr bool
	}{
		{
			name: "html preferred over pdf and text",
			formats: map[string]string{
				"text/plain; charset=us-ascii": "https://www.gutenberg.org/ebooks/84.txt.utf-8",
				"application/pdf":              "https://example.org/84.pdf",
				"text/html":                    "https://www.gutenberg.org/ebooks/84.html.images",
			},
			want: Rendition{Kind: RenditionHTML, URL: "https://www.gutenberg.org/ebooks/84.html.images"},
		},
		{
			name: "zipped html skipped in favour of pdf",
			formats: map[string]string{
				"text/html; charset=utf-8": "https://www.gutenberg.org/files/84/84-h.zip",
				"application/pdf":          "https://example.org/84.pdf",
			},
			want: Rendition{Kind: RenditionPDF, URL: "https://example.org/84.pdf"},
		},
		{
			name: "plain text as last resort",
			formats: map[string]string{
				"application/epub+zip":           "https://www.gutenberg.org/ebooks/84.epub3.images",
				"text/plain; charset=utf-8":      "https://www.gutenberg.org/ebooks/84.txt.utf-8",
				"application/x-mobipocket-ebook": "https://www.gutenberg.org/ebooks/84.kf8.images",
			},
			want: Rendition{Kind: RenditionText, URL: "https://www.gutenberg.org/ebooks/84.txt.utf-8"},
		},
		{
			name: "every candidate zipped",
			formats: map[string]string{
				"text/html":  "https://example.org/84-h.zip",
				"text/plain": "https://example.org/84.zip",
			},
			wantErr: true,
		},
		{
			name: "only images and ebooks",
			formats: map[string]string{
				"image/jpeg":           "https://example.org/cover.jpg",
				"application/epub+zip": "https://example.org/84.epub",
			},
			wantErr: true,
		},
		{
			name:    "no formats",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ViewableLink(Item{ID: 84, Formats: tt.formats})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNoViewableFormat))

				var nv *NoViewableFormatError
				require.True(t, errors.As(err, &nv))
				assert.Equal(t, 84, nv.ItemID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewableLink_Deterministic(t *testing.T) {
	item := Item{ID: 1, Formats: map[string]string{
		"text/html; charset=utf-8":    "https://example.org/a.html",
		"text/html; charset=us-ascii": "https://example.org/b.html",
	}}

	first, err := ViewableLink(item)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := ViewableLink(item)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCoverURL(t *testing.T) {
	assert.Equal(t, "j", CoverURL(Item{Formats: map[string]string{"image/jpeg": "j", "image/png": "p"}}))
	assert.Equal(t, "p", CoverURL(Item{Formats: map[string]string{"image/png": "p"}}))
	assert.Empty(t, CoverURL(Item{}))
}

func TestFormatAuthors(t *testing.T) {
	assert.Equal(t, "Unknown Author", FormatAuthors(Item{}))
	assert.Equal(t, "Austen, Jane", FormatAuthors(Item{Authors: []Person{{Name: "Austen, Jane"}}}))
	assert.Equal(t, "Marx, Karl, Engels, Friedrich", FormatAuthors(Item{Authors: []Person{
		{Name: "Marx, Karl"}, {Name: "Engels, Friedrich"},
	}}))
}

func TestFormatLifespan(t *testing.T) {
	born, died := 1809, 1849
	assert.Equal(t, "(1809-1849)", FormatLifespan(Person{BirthYear: &born, DeathYear: &died}))
	assert.Equal(t, "(b. 1809)", FormatLifespan(Person{BirthYear: &born}))
	assert.Equal(t, "(d. 1849)", FormatLifespan(Person{DeathYear: &died}))
	assert.Empty(t, FormatLifespan(Person{}))
}

func TestFormatDownloadCount(t *testing.T) {
	tests := map[int]string{
		0:         "0",
		999:       "999",
		1000:      "1.0K",
		1500:      "1.5K",
		98765:     "98.8K",
		1_000_000: "1.0M",
		2_345_678: "2.3M",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatDownloadCount(in), "count %d", in)
	}
}
