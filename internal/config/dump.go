package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

type dumpConfig struct {
	Account  dumpAccount  `toml:"account"`
	Database dumpDatabase `toml:"database"`
	Upstream dumpUpstream `toml:"upstream"`
	Media    dumpMedia    `toml:"media"`
	Log      dumpLog      `toml:"log"`
}

type dumpAccount struct {
	ScreenName string `toml:"screen_name"`
	ExportFile string `toml:"export_file"`
	WorkDir    string `toml:"work_dir"`
}

type dumpDatabase struct {
	Path        string `toml:"path"`
	Backend     string `toml:"backend"`
	Timeout     string `toml:"timeout"`
	SearchIndex string `toml:"search_index"`
}

type dumpUpstream struct {
	BaseURL     string  `toml:"base_url"`
	BearerToken string  `toml:"bearer_token"`
	HTTPTimeout string  `toml:"http_timeout"`
	RateLimit   float64 `toml:"rate_limit"`
	RateBurst   int     `toml:"rate_burst"`
	BatchSize   int     `toml:"batch_size"`
	UserAgent   string  `toml:"user_agent"`
}

type dumpMedia struct {
	HTTPTimeout     string `toml:"http_timeout"`
	ChunkSize       int    `toml:"chunk_size"`
	ForceRedownload bool   `toml:"force_redownload"`
}

type dumpLog struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Dump renders the effective configuration as TOML. The bearer token is masked.
func Dump(cfg *Config) ([]byte, error) {
	token := ""
	if cfg.Upstream.BearerToken != "" {
		token = "********"
	}

	out, err := toml.Marshal(dumpConfig{
		Account: dumpAccount{
			ScreenName: cfg.Account.ScreenName,
			ExportFile: cfg.Account.ExportFile,
			WorkDir:    cfg.Account.WorkDir,
		},
		Database: dumpDatabase{
			Path:        cfg.Database.Path,
			Backend:     cfg.Database.Backend,
			Timeout:     cfg.Database.Timeout.String(),
			SearchIndex: cfg.Database.SearchIndex,
		},
		Upstream: dumpUpstream{
			BaseURL:     cfg.Upstream.BaseURL,
			BearerToken: token,
			HTTPTimeout: cfg.Upstream.HTTPTimeout.String(),
			RateLimit:   cfg.Upstream.RateLimit,
			RateBurst:   cfg.Upstream.RateBurst,
			BatchSize:   cfg.Upstream.BatchSize,
			UserAgent:   cfg.Upstream.UserAgent,
		},
		Media: dumpMedia{
			HTTPTimeout:     cfg.Media.HTTPTimeout.String(),
			ChunkSize:       cfg.Media.ChunkSize,
			ForceRedownload: cfg.Media.ForceRedownload,
		},
		Log: dumpLog{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return out, nil
}
