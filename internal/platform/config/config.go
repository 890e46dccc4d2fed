package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const FileName = "tabtrail.yaml"

type Config struct {
	DataDir string `yaml:"-"`
	DBPath  string `yaml:"db_path"`
	Listen  string `yaml:"listen"`

	Tracking TrackingConfig `yaml:"tracking"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Storage  StorageConfig  `yaml:"storage"`
	Plugins  PluginConfig   `yaml:"plugins"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TrackingConfig struct {
	SessionTimeoutMinutes int `yaml:"session_timeout_minutes"`
	EventCapacity         int `yaml:"event_capacity"`
	TickSeconds           int `yaml:"tick_seconds"`
}

type ScoringConfig struct {
	Sensitivity        string   `yaml:"sensitivity"`
	ProductiveDomains  []string `yaml:"productive_domains"`
	DistractingDomains []string `yaml:"distracting_domains"`
}

type StorageConfig struct {
	QuotaBytes        int    `yaml:"quota_bytes"`
	ReplicaQuotaBytes int    `yaml:"replica_quota_bytes"`
	RedisURL          string `yaml:"redis_url"`
	NotesDir          string `yaml:"notes_dir"`
}

type PluginConfig struct {
	ManifestPath string `yaml:"manifest_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Default(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		DBPath:  filepath.Join(dataDir, "tabtrail.db"),
		Listen:  "127.0.0.1:7717",
		Tracking: TrackingConfig{
			SessionTimeoutMinutes: 4,
			EventCapacity:         5000,
			TickSeconds:           30,
		},
		Scoring: ScoringConfig{Sensitivity: "balanced"},
		Storage: StorageConfig{
			QuotaBytes:        5 * 1024 * 1024,
			ReplicaQuotaBytes: 96 * 1024,
			NotesDir:          filepath.Join(dataDir, "notes"),
		},
		Plugins: PluginConfig{ManifestPath: filepath.Join(dataDir, "plugins", "classifiers.json")},
		Logging: LoggingConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// New loads <dataDir>/tabtrail.yaml over the defaults, then applies
// .env and environment overrides.
func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := Default(dataDir)

	raw, err := os.ReadFile(filepath.Join(dataDir, FileName))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", FileName, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", FileName, err)
	}

	_ = godotenv.Load(filepath.Join(dataDir, ".env"))
	applyEnv(&cfg)

	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(dataDir, cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TABTRAIL_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("TABTRAIL_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.Storage.RedisURL = v
	}
}

func (c Config) Validate() error {
	if c.Tracking.SessionTimeoutMinutes <= 0 {
		return fmt.Errorf("tracking.session_timeout_minutes must be positive")
	}
	if c.Tracking.EventCapacity <= 0 {
		return fmt.Errorf("tracking.event_capacity must be positive")
	}
	switch c.Scoring.Sensitivity {
	case "low", "balanced", "high":
	default:
		return fmt.Errorf("scoring.sensitivity must be low, balanced or high")
	}
	if c.Storage.QuotaBytes < 1024 {
		return fmt.Errorf("storage.quota_bytes must be at least 1024")
	}
	return nil
}
