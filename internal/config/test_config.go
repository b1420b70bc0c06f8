package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	cfg := defaultConfig()
	cfg.Catalog.HTTPTimeout = 5 * time.Second
	cfg.Catalog.UserAgent = "shelf-test/1.0"
	cfg.Catalog.RequestsPerSecond = 0
	cfg.Search.DebounceDelay = 10 * time.Millisecond
	cfg.Database = DatabaseConfig{
		Path:    ":memory:", // Use in-memory database for tests
		Timeout: 1 * time.Second,
	}
	cfg.Log = LogConfig{Level: "off"}
	return cfg
}
