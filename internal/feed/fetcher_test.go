package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/storage"
)

func TestFetcher_Fetch(t *testing.T) {
	tests := []struct {
		name           string
		meta           *storage.FeedMeta
		serverResponse func(w http.ResponseWriter, r *http.Request)
		expectUpdated  bool
		expectError    bool
		expectETag     string
	}{
		{
			name: "successful fetch with new content",
			meta: &storage.FeedMeta{},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				expectedUserAgent := "shelf-test/1.0"
				if r.Header.Get("User-Agent") != expectedUserAgent {
					t.Errorf("expected User-Agent %s, got %s", expectedUserAgent, r.Header.Get("User-Agent"))
				}
				w.Header().Set("ETag", "\"123\"")
				w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("<rss></rss>"))
			},
			expectUpdated: true,
			expectETag:    "\"123\"",
		},
		{
			name: "not modified response with ETag",
			meta: &storage.FeedMeta{ETag: "\"123\""},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("If-None-Match") != "\"123\"" {
					t.Errorf("expected If-None-Match \"123\", got %s", r.Header.Get("If-None-Match"))
				}
				w.WriteHeader(http.StatusNotModified)
			},
			expectUpdated: false,
			expectETag:    "\"123\"",
		},
		{
			name: "not modified response with Last-Modified",
			meta: &storage.FeedMeta{LastModified: "Wed, 01 Jan 2025 00:00:00 GMT"},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("If-Modified-Since") != "Wed, 01 Jan 2025 00:00:00 GMT" {
					t.Errorf("expected If-Modified-Since header")
				}
				w.WriteHeader(http.StatusNotModified)
			},
			expectUpdated: false,
		},
		{
			name: "server error",
			meta: &storage.FeedMeta{},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			expectUpdated: false,
			expectError:   true,
		},
		{
			name: "not found",
			meta: &storage.FeedMeta{},
			serverResponse: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			expectUpdated: false,
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResponse))
			defer server.Close()

			tt.meta.URL = server.URL
			fetcher := NewFetcher(config.TestConfig())

			body, updated, err := fetcher.Fetch(context.Background(), tt.meta)

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if updated != tt.expectUpdated {
				t.Errorf("expected updated=%v, got %v", tt.expectUpdated, updated)
			}
			if updated && len(body) == 0 {
				t.Error("expected a body for an updated feed")
			}
			if tt.expectETag != "" && tt.meta.ETag != tt.expectETag {
				t.Errorf("expected ETag %s, got %s", tt.expectETag, tt.meta.ETag)
			}
			if !tt.expectError && tt.meta.LastFetched.IsZero() {
				t.Error("expected LastFetched to be set")
			}
		})
	}
}

func TestFetcher_IgnoreCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != "" {
			t.Error("conditional header sent while ignoring cache")
		}
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(config.TestConfig())
	fetcher.SetIgnoreCache(true)

	_, updated, err := fetcher.Fetch(context.Background(), &storage.FeedMeta{URL: server.URL, ETag: "\"old\""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated {
		t.Error("expected updated feed")
	}
}
