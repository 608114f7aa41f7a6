package config

import (
	"path/filepath"
	"time"
)

// TestConfig returns a config rooted at workDir suitable for testing
func TestConfig(workDir string) *Config {
	return &Config{
		Account: AccountConfig{
			ScreenName: "tester",
			ExportFile: "like_ids.txt",
			WorkDir:    workDir,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(workDir, "likes.db"),
			Backend:     "sqlite",
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(workDir, "index.bleve"),
		},
		Upstream: UpstreamConfig{
			HTTPTimeout: 5 * time.Second,
			RateLimit:   1000,
			RateBurst:   10,
			BatchSize:   MaxBatchSize,
			UserAgent:   "likesync-test/1.0",
		},
		Media: MediaConfig{
			HTTPTimeout: 5 * time.Second,
			ChunkSize:   64 * 1024,
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}
