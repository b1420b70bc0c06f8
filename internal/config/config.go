package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pders01/shelf/internal/validation"
	"github.com/spf13/viper"
)

type Config struct {
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Search   SearchConfig   `mapstructure:"search"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
}

type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Languages         []string      `mapstructure:"languages"`
	ReleasesURL       string        `mapstructure:"releases_url"`
}

type SearchConfig struct {
	DebounceDelay  time.Duration `mapstructure:"debounce_delay"`
	MaxQueryLength int           `mapstructure:"max_query_length"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type UIConfig struct {
	Colors UIColors   `mapstructure:"colors"`
	List   ListConfig `mapstructure:"list"`
}

type UIColors struct {
	Primary   string `mapstructure:"primary"`
	Secondary string `mapstructure:"secondary"`
	Accent    string `mapstructure:"accent"`
	Text      string `mapstructure:"text"`
	Muted     string `mapstructure:"muted"`
	Error     string `mapstructure:"error"`
	Success   string `mapstructure:"success"`
}

type ListConfig struct {
	MaxTitleLength int `mapstructure:"max_title_length"`
	// PrefetchThreshold is how many rows before the end of the list the
	// load-more sentinel counts as visible
	PrefetchThreshold int `mapstructure:"prefetch_threshold"`
}

type MediaConfig struct {
	Darwin        OpenerSet `mapstructure:"darwin"`
	Linux         OpenerSet `mapstructure:"linux"`
	Windows       OpenerSet `mapstructure:"windows"`
	DefaultOpener string    `mapstructure:"default_opener"`
	AllowedHosts  []string  `mapstructure:"allowed_hosts"`
}

type OpenerSet struct {
	HTML []string `mapstructure:"html"`
	PDF  []string `mapstructure:"pdf"`
	Text []string `mapstructure:"text"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit     string `mapstructure:"quit"`
	Search   string `mapstructure:"search"`
	Open     string `mapstructure:"open"`
	Details  string `mapstructure:"details"`
	History  string `mapstructure:"history"`
	Releases string `mapstructure:"releases"`
	Retry    string `mapstructure:"retry"`
	Back     string `mapstructure:"back"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Catalog: CatalogConfig{
			BaseURL:           "https://gutendex.com",
			HTTPTimeout:       15 * time.Second,
			UserAgent:         "shelf/1.0 (https://github.com/pders01/shelf)",
			RequestsPerSecond: 4,
			Languages:         []string{},
			ReleasesURL:       "https://www.gutenberg.org/cache/epub/feeds/today.rss",
		},
		Search: SearchConfig{
			DebounceDelay:  500 * time.Millisecond,
			MaxQueryLength: 256,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(homeDir, ".shelf.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(homeDir, ".shelf", "history.bleve"),
		},
		Log: LogConfig{
			Level: "off",
			File:  filepath.Join(homeDir, ".shelf", "shelf.log"),
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:   "#C08457",
				Secondary: "#6B8F71",
				Accent:    "#E9C46A",
				Text:      "#EDE6D6",
				Muted:     "#9A8F7A",
				Error:     "#E76F51",
				Success:   "#84A98C",
			},
			List: ListConfig{
				MaxTitleLength:    80,
				PrefetchThreshold: 3,
			},
		},
		Media: MediaConfig{
			Darwin: OpenerSet{
				HTML: []string{"open"},
				PDF:  []string{"preview", "open"},
				Text: []string{"open"},
			},
			Linux: OpenerSet{
				HTML: []string{"xdg-open", "firefox", "chromium"},
				PDF:  []string{"zathura", "evince", "xdg-open"},
				Text: []string{"xdg-open"},
			},
			Windows: OpenerSet{
				HTML: []string{"start"},
				PDF:  []string{"start"},
				Text: []string{"start"},
			},
			DefaultOpener: getDefaultOpener(),
			AllowedHosts:  []string{"gutenberg.org", "gutendex.com"},
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:     "q",
				Search:   "/",
				Open:     "o",
				Details:  "d",
				History:  "h",
				Releases: "n",
				Retry:    "r",
				Back:     "esc",
			},
		},
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "start"
	default:
		return "open"
	}
}

// flatten turns the config into dotted viper keys.
func flatten(cfg *Config) map[string]interface{} {
	return map[string]interface{}{
		"catalog.base_url":            cfg.Catalog.BaseURL,
		"catalog.http_timeout":        cfg.Catalog.HTTPTimeout.String(),
		"catalog.user_agent":          cfg.Catalog.UserAgent,
		"catalog.requests_per_second": cfg.Catalog.RequestsPerSecond,
		"catalog.languages":           cfg.Catalog.Languages,
		"catalog.releases_url":        cfg.Catalog.ReleasesURL,

		"search.debounce_delay":   cfg.Search.DebounceDelay.String(),
		"search.max_query_length": cfg.Search.MaxQueryLength,

		"database.path":         cfg.Database.Path,
		"database.timeout":      cfg.Database.Timeout.String(),
		"database.search_index": cfg.Database.SearchIndex,

		"log.level": cfg.Log.Level,
		"log.file":  cfg.Log.File,

		"ui.colors.primary":          cfg.UI.Colors.Primary,
		"ui.colors.secondary":        cfg.UI.Colors.Secondary,
		"ui.colors.accent":           cfg.UI.Colors.Accent,
		"ui.colors.text":             cfg.UI.Colors.Text,
		"ui.colors.muted":            cfg.UI.Colors.Muted,
		"ui.colors.error":            cfg.UI.Colors.Error,
		"ui.colors.success":          cfg.UI.Colors.Success,
		"ui.list.max_title_length":   cfg.UI.List.MaxTitleLength,
		"ui.list.prefetch_threshold": cfg.UI.List.PrefetchThreshold,

		"media.darwin.html":    cfg.Media.Darwin.HTML,
		"media.darwin.pdf":     cfg.Media.Darwin.PDF,
		"media.darwin.text":    cfg.Media.Darwin.Text,
		"media.linux.html":     cfg.Media.Linux.HTML,
		"media.linux.pdf":      cfg.Media.Linux.PDF,
		"media.linux.text":     cfg.Media.Linux.Text,
		"media.windows.html":   cfg.Media.Windows.HTML,
		"media.windows.pdf":    cfg.Media.Windows.PDF,
		"media.windows.text":   cfg.Media.Windows.Text,
		"media.default_opener": cfg.Media.DefaultOpener,
		"media.allowed_hosts":  cfg.Media.AllowedHosts,

		"keys.modifier":          cfg.Keys.Modifier,
		"keys.bindings.quit":     cfg.Keys.Bindings.Quit,
		"keys.bindings.search":   cfg.Keys.Bindings.Search,
		"keys.bindings.open":     cfg.Keys.Bindings.Open,
		"keys.bindings.details":  cfg.Keys.Bindings.Details,
		"keys.bindings.history":  cfg.Keys.Bindings.History,
		"keys.bindings.releases": cfg.Keys.Bindings.Releases,
		"keys.bindings.retry":    cfg.Keys.Bindings.Retry,
		"keys.bindings.back":     cfg.Keys.Bindings.Back,
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	for key, value := range flatten(defaultConfig()) {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "shelf")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	baseURL, err := validation.NewAPIValidator().ValidateBaseURL(config.Catalog.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog.base_url: %w", err)
	}
	config.Catalog.BaseURL = baseURL

	if config.Search.DebounceDelay < 0 {
		return nil, fmt.Errorf("search.debounce_delay must not be negative")
	}

	// Expand paths after loading
	expandPaths(&config)

	return &config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" || path == ":memory:" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

// expandPaths expands all paths in the config
func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// ExpandPath is expandPath for callers overriding paths from flags.
func ExpandPath(path string) string {
	return expandPath(path)
}

func Save(config *Config, path string) error {
	v := viper.New()

	for key, value := range flatten(config) {
		v.Set(key, value)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
