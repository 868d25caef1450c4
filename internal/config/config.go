package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/five82/lotwatch/internal/syncstore"
)

// Config captures everything lotwatch reads from its config file and environment.
type Config struct {
	Path         string
	IndexerURL   string
	PageLimit    int
	PollInterval time.Duration
	Sync         SyncConfig
	NATS         NATSConfig
	Metrics      MetricsConfig
}

// SyncConfig overrides store timing. Zero values keep the store defaults.
type SyncConfig struct {
	ForegroundFloor time.Duration
	BackgroundFloor time.Duration
	ForcedGap       time.Duration
	AmbientGap      time.Duration
	General         BackoffConfig
	RateLimited     BackoffConfig
	SeenKeysLimit   int
}

// BackoffConfig describes one retry curve.
type BackoffConfig struct {
	Base    time.Duration
	Max     time.Duration
	MaxStep int
}

// NATSConfig enables the cross-process signal bridge when URL is set.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string
}

const (
	defaultConfigPath   = "~/.config/lotwatch/config.toml"
	defaultIndexerURL   = "127.0.0.1:4350"
	defaultPageLimit    = 100
	maxPageLimit        = 1000
	defaultPollInterval = 20 * time.Second

	EnvIndexerURL  = "LOTWATCH_INDEXER_URL"
	EnvNATSURL     = "LOTWATCH_NATS_URL"
	EnvMetricsAddr = "LOTWATCH_METRICS_ADDR"
)

type rawConfig struct {
	IndexerURL string     `toml:"indexer_url" yaml:"indexer_url"`
	PageLimit  int        `toml:"page_limit" yaml:"page_limit"`
	PollMS     int64      `toml:"poll_ms" yaml:"poll_ms"`
	Sync       rawSync    `toml:"sync" yaml:"sync"`
	NATS       rawNATS    `toml:"nats" yaml:"nats"`
	Metrics    rawMetrics `toml:"metrics" yaml:"metrics"`
}

type rawSync struct {
	ForegroundFloorMS int64 `toml:"foreground_floor_ms" yaml:"foreground_floor_ms"`
	BackgroundFloorMS int64 `toml:"background_floor_ms" yaml:"background_floor_ms"`
	ForcedGapMS       int64 `toml:"forced_gap_ms" yaml:"forced_gap_ms"`
	AmbientGapMS      int64 `toml:"ambient_gap_ms" yaml:"ambient_gap_ms"`
	BackoffBaseMS     int64 `toml:"backoff_base_ms" yaml:"backoff_base_ms"`
	BackoffMaxMS      int64 `toml:"backoff_max_ms" yaml:"backoff_max_ms"`
	BackoffMaxStep    int   `toml:"backoff_max_step" yaml:"backoff_max_step"`
	RateLimitBaseMS   int64 `toml:"rate_limit_base_ms" yaml:"rate_limit_base_ms"`
	RateLimitMaxMS    int64 `toml:"rate_limit_max_ms" yaml:"rate_limit_max_ms"`
	RateLimitMaxStep  int   `toml:"rate_limit_max_step" yaml:"rate_limit_max_step"`
	SeenKeysLimit     int   `toml:"seen_keys_limit" yaml:"seen_keys_limit"`
}

type rawNATS struct {
	URL           string `toml:"url" yaml:"url"`
	SubjectPrefix string `toml:"subject_prefix" yaml:"subject_prefix"`
}

type rawMetrics struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// Load reads the config file at path (TOML, or YAML for .yaml/.yml),
// falling back to defaults when it is missing. A .env file in the working
// directory or next to the config is loaded first; LOTWATCH_* variables
// override file values.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}
	if err := loadDotEnv(resolved); err != nil {
		return Config{}, err
	}

	var raw rawConfig
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := decode(resolved, []byte(os.ExpandEnv(string(data))), &raw); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg := fromRaw(raw)
	cfg.Path = resolved
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Timing converts the sync section into store timing.
func (c Config) Timing() syncstore.Timing {
	return syncstore.Timing{
		DefaultPoll:     c.PollInterval,
		ForegroundFloor: c.Sync.ForegroundFloor,
		BackgroundFloor: c.Sync.BackgroundFloor,
		ForcedGap:       c.Sync.ForcedGap,
		AmbientGap:      c.Sync.AmbientGap,
		General:         syncstore.BackoffProfile(c.Sync.General),
		RateLimited:     syncstore.BackoffProfile(c.Sync.RateLimited),
		SeenKeysLimit:   c.Sync.SeenKeysLimit,
		PageLimit:       c.PageLimit,
	}
}

func decode(path string, data []byte, raw *rawConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, raw)
	default:
		return toml.Unmarshal(data, raw)
	}
}

func fromRaw(raw rawConfig) Config {
	cfg := Config{
		IndexerURL:   strings.TrimSpace(raw.IndexerURL),
		PageLimit:    raw.PageLimit,
		PollInterval: ms(raw.PollMS),
		Sync: SyncConfig{
			ForegroundFloor: ms(raw.Sync.ForegroundFloorMS),
			BackgroundFloor: ms(raw.Sync.BackgroundFloorMS),
			ForcedGap:       ms(raw.Sync.ForcedGapMS),
			AmbientGap:      ms(raw.Sync.AmbientGapMS),
			General: BackoffConfig{
				Base:    ms(raw.Sync.BackoffBaseMS),
				Max:     ms(raw.Sync.BackoffMaxMS),
				MaxStep: raw.Sync.BackoffMaxStep,
			},
			RateLimited: BackoffConfig{
				Base:    ms(raw.Sync.RateLimitBaseMS),
				Max:     ms(raw.Sync.RateLimitMaxMS),
				MaxStep: raw.Sync.RateLimitMaxStep,
			},
			SeenKeysLimit: raw.Sync.SeenKeysLimit,
		},
		NATS: NATSConfig{
			URL:           strings.TrimSpace(raw.NATS.URL),
			SubjectPrefix: strings.TrimSpace(raw.NATS.SubjectPrefix),
		},
		Metrics: MetricsConfig{Listen: strings.TrimSpace(raw.Metrics.Listen)},
	}
	if cfg.IndexerURL == "" {
		cfg.IndexerURL = defaultIndexerURL
	}
	if cfg.PageLimit == 0 {
		cfg.PageLimit = defaultPageLimit
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvIndexerURL)); v != "" {
		cfg.IndexerURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvNATSURL)); v != "" {
		cfg.NATS.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvMetricsAddr)); v != "" {
		cfg.Metrics.Listen = v
	}
}

func (c Config) validate() error {
	if c.PageLimit < 1 || c.PageLimit > maxPageLimit {
		return fmt.Errorf("page_limit must be between 1 and %d, got %d", maxPageLimit, c.PageLimit)
	}
	durations := map[string]time.Duration{
		"poll_ms":                  c.PollInterval,
		"sync.foreground_floor_ms": c.Sync.ForegroundFloor,
		"sync.background_floor_ms": c.Sync.BackgroundFloor,
		"sync.forced_gap_ms":       c.Sync.ForcedGap,
		"sync.ambient_gap_ms":      c.Sync.AmbientGap,
		"sync.backoff_base_ms":     c.Sync.General.Base,
		"sync.backoff_max_ms":      c.Sync.General.Max,
		"sync.rate_limit_base_ms":  c.Sync.RateLimited.Base,
		"sync.rate_limit_max_ms":   c.Sync.RateLimited.Max,
	}
	for name, d := range durations {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.Sync.General.MaxStep < 0 || c.Sync.RateLimited.MaxStep < 0 || c.Sync.SeenKeysLimit < 0 {
		return fmt.Errorf("sync step caps and seen_keys_limit must not be negative")
	}
	return nil
}

// loadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the process win.
func loadDotEnv(configPath string) error {
	candidates := []string{".env", filepath.Join(filepath.Dir(configPath), ".env")}
	seen := make(map[string]bool, len(candidates))
	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("load %s: %w", abs, err)
		}
	}
	return nil
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
