package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestGetDefaultOpener(t *testing.T) {
	expected := map[string]string{
		"darwin":  "open",
		"linux":   "xdg-open",
		"windows": "start",
	}

	opener := getDefaultOpener()

	if expectedOpener, ok := expected[runtime.GOOS]; ok {
		if opener != expectedOpener {
			t.Errorf("getDefaultOpener() = %s, want %s for %s", opener, expectedOpener, runtime.GOOS)
		}
	} else {
		// For unknown OS, should default to "open"
		if opener != "open" {
			t.Errorf("getDefaultOpener() = %s, want 'open' for unknown OS", opener)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Timeout != 1*time.Second {
		t.Errorf("Database.Timeout = %v, want 1s", cfg.Database.Timeout)
	}

	// Test catalog defaults
	if cfg.Catalog.BaseURL != "https://gutendex.com" {
		t.Errorf("Catalog.BaseURL = %s, want https://gutendex.com", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.HTTPTimeout != 15*time.Second {
		t.Errorf("Catalog.HTTPTimeout = %v, want 15s", cfg.Catalog.HTTPTimeout)
	}
	if cfg.Catalog.UserAgent == "" {
		t.Error("Catalog.UserAgent should not be empty")
	}
	if cfg.Search.DebounceDelay != 500*time.Millisecond {
		t.Errorf("Search.DebounceDelay = %v, want 500ms", cfg.Search.DebounceDelay)
	}

	if cfg.UI.List.MaxTitleLength != 80 {
		t.Errorf("UI.List.MaxTitleLength = %d, want 80", cfg.UI.List.MaxTitleLength)
	}

	if cfg.Media.DefaultOpener == "" {
		t.Error("Media.DefaultOpener should not be empty")
	}

	if cfg.Keys.Modifier != "ctrl" {
		t.Errorf("Keys.Modifier = %s, want 'ctrl'", cfg.Keys.Modifier)
	}
	if cfg.Keys.Bindings.Quit != "q" {
		t.Errorf("Keys.Bindings.Quit = %s, want 'q'", cfg.Keys.Bindings.Quit)
	}
}

func TestLoad_DefaultConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	if cfg.Search.DebounceDelay != 500*time.Millisecond {
		t.Errorf("Search.DebounceDelay = %v, want 500ms", cfg.Search.DebounceDelay)
	}
	if cfg.Log.Level != "off" {
		t.Errorf("Log.Level = %s, want 'off'", cfg.Log.Level)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "test-config.toml")
	configContent := `
[database]
path = "/tmp/test.db"
timeout = "10s"

[catalog]
base_url = "http://localhost:8000/"
http_timeout = "60s"
user_agent = "test-agent"
languages = ["en", "fr"]

[search]
debounce_delay = "250ms"

[ui.colors]
primary = "#FF0000"
`

	if writeErr := os.WriteFile(configPath, []byte(configContent), 0o644); writeErr != nil {
		t.Fatal(writeErr)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %s, want '/tmp/test.db'", cfg.Database.Path)
	}
	if cfg.Database.Timeout != 10*time.Second {
		t.Errorf("Database.Timeout = %v, want 10s", cfg.Database.Timeout)
	}
	if cfg.Catalog.BaseURL != "http://localhost:8000" {
		t.Errorf("Catalog.BaseURL = %s, want 'http://localhost:8000'", cfg.Catalog.BaseURL)
	}
	if cfg.Catalog.HTTPTimeout != 60*time.Second {
		t.Errorf("Catalog.HTTPTimeout = %v, want 60s", cfg.Catalog.HTTPTimeout)
	}
	if cfg.Catalog.UserAgent != "test-agent" {
		t.Errorf("Catalog.UserAgent = %s, want 'test-agent'", cfg.Catalog.UserAgent)
	}
	if len(cfg.Catalog.Languages) != 2 || cfg.Catalog.Languages[1] != "fr" {
		t.Errorf("Catalog.Languages = %v, want [en fr]", cfg.Catalog.Languages)
	}
	if cfg.Search.DebounceDelay != 250*time.Millisecond {
		t.Errorf("Search.DebounceDelay = %v, want 250ms", cfg.Search.DebounceDelay)
	}
	if cfg.UI.Colors.Primary != "#FF0000" {
		t.Errorf("UI.Colors.Primary = %s, want '#FF0000'", cfg.UI.Colors.Primary)
	}
	// untouched keys keep their defaults
	if cfg.UI.Colors.Secondary != defaultConfig().UI.Colors.Secondary {
		t.Errorf("UI.Colors.Secondary = %s, want default", cfg.UI.Colors.Secondary)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHELF_CATALOG_USER_AGENT", "env-agent")
	t.Setenv("SHELF_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Catalog.UserAgent != "env-agent" {
		t.Errorf("Catalog.UserAgent = %s, want 'env-agent'", cfg.Catalog.UserAgent)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want 'debug'", cfg.Log.Level)
	}
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.toml")
	content := `
[catalog]
base_url = "ftp://gutendex.com"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should reject a non-http base_url")
	}
}

func TestLoad_NegativeDebounce(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.toml")
	content := `
[search]
debounce_delay = "-1s"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should reject a negative debounce_delay")
	}
}

func TestSave(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-save-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cfg := &Config{
		Catalog: CatalogConfig{
			BaseURL:           "https://gutendex.example.org",
			HTTPTimeout:       45 * time.Second,
			UserAgent:         "test-save-agent",
			RequestsPerSecond: 2,
		},
		Search: SearchConfig{
			DebounceDelay: 300 * time.Millisecond,
		},
		Database: DatabaseConfig{
			Path:    "/test/path.db",
			Timeout: 10 * time.Second,
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary: "#00FF00",
			},
		},
		Media: MediaConfig{
			DefaultOpener: "test-opener",
		},
		Keys: KeyConfig{
			Modifier: "alt",
			Bindings: KeyBindings{
				Quit: "x",
			},
		},
	}

	savePath := filepath.Join(tmpDir, "saved-config.toml")
	if saveErr := Save(cfg, savePath); saveErr != nil {
		t.Fatalf("Save() error = %v", saveErr)
	}

	if _, statErr := os.Stat(savePath); os.IsNotExist(statErr) {
		t.Fatal("Save() did not create config file")
	}

	loaded, err := Load(savePath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Database.Path != cfg.Database.Path {
		t.Errorf("Loaded Database.Path = %s, want %s", loaded.Database.Path, cfg.Database.Path)
	}
	if loaded.Catalog.UserAgent != cfg.Catalog.UserAgent {
		t.Errorf("Loaded Catalog.UserAgent = %s, want %s", loaded.Catalog.UserAgent, cfg.Catalog.UserAgent)
	}
	if loaded.Search.DebounceDelay != cfg.Search.DebounceDelay {
		t.Errorf("Loaded Search.DebounceDelay = %v, want %v", loaded.Search.DebounceDelay, cfg.Search.DebounceDelay)
	}
	if loaded.Keys.Modifier != cfg.Keys.Modifier {
		t.Errorf("Loaded Keys.Modifier = %s, want %s", loaded.Keys.Modifier, cfg.Keys.Modifier)
	}
}

func TestGenerateDefaultConfig(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config-gen-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "generated.toml")
	if genErr := GenerateDefaultConfig(configPath); genErr != nil {
		t.Fatalf("GenerateDefaultConfig() error = %v", genErr)
	}

	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		t.Fatal("GenerateDefaultConfig() did not create file")
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}

	if cfg.Keys.Modifier != "ctrl" {
		t.Errorf("Generated config has Keys.Modifier = %s, want 'ctrl'", cfg.Keys.Modifier)
	}
	if cfg.Catalog.BaseURL != "https://gutendex.com" {
		t.Errorf("Generated config has Catalog.BaseURL = %s", cfg.Catalog.BaseURL)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	if got := ExpandPath("~/books.db"); got != filepath.Join(home, "books.db") {
		t.Errorf("ExpandPath(~/books.db) = %s", got)
	}
	if got := ExpandPath(":memory:"); got != ":memory:" {
		t.Errorf("ExpandPath(:memory:) = %s", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %s", got)
	}
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()

	if cfg == nil {
		t.Fatal("TestConfig() returned nil")
	}

	if cfg.Database.Path != ":memory:" {
		t.Errorf("TestConfig Database.Path = %s, want ':memory:'", cfg.Database.Path)
	}
	if cfg.Catalog.UserAgent != "shelf-test/1.0" {
		t.Errorf("TestConfig Catalog.UserAgent = %s, want 'shelf-test/1.0'", cfg.Catalog.UserAgent)
	}
}
