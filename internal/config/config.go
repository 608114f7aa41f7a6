package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxBatchSize is the largest number of identifiers the upstream lookup accepts per call.
const MaxBatchSize = 100

type Config struct {
	Account  AccountConfig  `mapstructure:"account"`
	Database DatabaseConfig `mapstructure:"database"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Media    MediaConfig    `mapstructure:"media"`
	Log      LogConfig      `mapstructure:"log"`
}

type AccountConfig struct {
	ScreenName string `mapstructure:"screen_name"`
	ExportFile string `mapstructure:"export_file"`
	WorkDir    string `mapstructure:"work_dir"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Backend     string        `mapstructure:"backend"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type UpstreamConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BearerToken string        `mapstructure:"bearer_token"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	RateBurst   int           `mapstructure:"rate_burst"`
	BatchSize   int           `mapstructure:"batch_size"`
	UserAgent   string        `mapstructure:"user_agent"`
}

type MediaConfig struct {
	HTTPTimeout     time.Duration `mapstructure:"http_timeout"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	ForceRedownload bool          `mapstructure:"force_redownload"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	workDir := filepath.Join(homeDir, ".likesync")

	return &Config{
		Account: AccountConfig{
			ScreenName: "me",
			ExportFile: "like_ids.txt",
			WorkDir:    workDir,
		},
		// Path, SearchIndex and Log.File stay empty and are derived from
		// the work dir on load.
		Database: DatabaseConfig{
			Backend: "sqlite",
			Timeout: 1 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:     "https://api.twitter.com/1.1",
			HTTPTimeout: 30 * time.Second,
			// 300 lookups per 15 minute window
			RateLimit: 1.0 / 3.0,
			RateBurst: 1,
			BatchSize: MaxBatchSize,
			UserAgent: "likesync/1.0 (https://github.com/pders01/likesync)",
		},
		Media: MediaConfig{
			HTTPTimeout: 5 * time.Minute,
			ChunkSize:   10 * 1024 * 1024,
		},
		Log: LogConfig{
			Level:      "off",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v, defaultConfig())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "likesync")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LIKESYNC")
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

	normalize(&config)
	expandPaths(&config)

	return &config, nil
}

// setDefaults registers every leaf key so a config file that sets only part
// of a section still inherits the remaining defaults.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("account.screen_name", cfg.Account.ScreenName)
	v.SetDefault("account.export_file", cfg.Account.ExportFile)
	v.SetDefault("account.work_dir", cfg.Account.WorkDir)

	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.backend", cfg.Database.Backend)
	v.SetDefault("database.timeout", cfg.Database.Timeout)
	v.SetDefault("database.search_index", cfg.Database.SearchIndex)

	v.SetDefault("upstream.base_url", cfg.Upstream.BaseURL)
	v.SetDefault("upstream.bearer_token", cfg.Upstream.BearerToken)
	v.SetDefault("upstream.http_timeout", cfg.Upstream.HTTPTimeout)
	v.SetDefault("upstream.rate_limit", cfg.Upstream.RateLimit)
	v.SetDefault("upstream.rate_burst", cfg.Upstream.RateBurst)
	v.SetDefault("upstream.batch_size", cfg.Upstream.BatchSize)
	v.SetDefault("upstream.user_agent", cfg.Upstream.UserAgent)

	v.SetDefault("media.http_timeout", cfg.Media.HTTPTimeout)
	v.SetDefault("media.chunk_size", cfg.Media.ChunkSize)
	v.SetDefault("media.force_redownload", cfg.Media.ForceRedownload)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.max_size_mb", cfg.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", cfg.Log.MaxBackups)
}

// normalize clamps values that the sync pipeline relies on and derives the
// per-account paths left unset.
func normalize(cfg *Config) {
	if cfg.Upstream.BatchSize <= 0 || cfg.Upstream.BatchSize > MaxBatchSize {
		cfg.Upstream.BatchSize = MaxBatchSize
	}
	if cfg.Media.ChunkSize <= 0 {
		cfg.Media.ChunkSize = 10 * 1024 * 1024
	}
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "sqlite"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.Account.WorkDir, "likes.db")
	}
	if cfg.Database.SearchIndex == "" {
		cfg.Database.SearchIndex = filepath.Join(cfg.Account.WorkDir, "index.bleve")
	}
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Account.WorkDir, "likesync.log")
	}
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
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

func expandPaths(cfg *Config) {
	cfg.Account.WorkDir = expandPath(cfg.Account.WorkDir)
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// ExportPath is the identifier export file. Relative names resolve against the work dir.
func (c *Config) ExportPath() string {
	if filepath.IsAbs(c.Account.ExportFile) {
		return c.Account.ExportFile
	}
	return filepath.Join(c.Account.WorkDir, c.Account.ExportFile)
}

// DownloadsDir is the per-account directory holding media and the JSON documents.
func (c *Config) DownloadsDir() string {
	return filepath.Join(c.Account.WorkDir, "downloads", c.Account.ScreenName)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Convert durations to strings for TOML readability
	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"backend":      config.Database.Backend,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	upstreamCfg := map[string]interface{}{
		"base_url":     config.Upstream.BaseURL,
		"bearer_token": config.Upstream.BearerToken,
		"http_timeout": config.Upstream.HTTPTimeout.String(),
		"rate_limit":   config.Upstream.RateLimit,
		"rate_burst":   config.Upstream.RateBurst,
		"batch_size":   config.Upstream.BatchSize,
		"user_agent":   config.Upstream.UserAgent,
	}

	mediaCfg := map[string]interface{}{
		"http_timeout":     config.Media.HTTPTimeout.String(),
		"chunk_size":       config.Media.ChunkSize,
		"force_redownload": config.Media.ForceRedownload,
	}

	accountCfg := map[string]interface{}{
		"screen_name": config.Account.ScreenName,
		"export_file": config.Account.ExportFile,
		"work_dir":    config.Account.WorkDir,
	}

	logCfg := map[string]interface{}{
		"level":       config.Log.Level,
		"file":        config.Log.File,
		"max_size_mb": config.Log.MaxSizeMB,
		"max_backups": config.Log.MaxBackups,
	}

	v.Set("account", accountCfg)
	v.Set("database", dbCfg)
	v.Set("upstream", upstreamCfg)
	v.Set("media", mediaCfg)
	v.Set("log", logCfg)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
