package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/store"
	"github.com/kjstillabower/workout-journal/internal/validation"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string

	// WeatherAPIKey may be empty; weather enrichment then always falls back.
	WeatherAPIKey         string
	WeatherAPIURL         string
	WeatherAPITimeout     time.Duration
	WeatherRateLimitRPS   float64
	WeatherRateLimitBurst int
	BreakerFailures       int
	BreakerCooldown       time.Duration

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	StoreBackend          string // "in_memory", "memcached" or "sqlite"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	SQLitePath            string

	// Home is the configured position used to center the map; nil when unset.
	Home           *models.Coords
	MapZoom        int
	ReplayInterval time.Duration

	ShareWebhookURL string
	ShareTimeout    time.Duration

	ShutdownTimeout time.Duration

	DegradedWindow      time.Duration
	DegradedFallbackPct int
	DegradedMinSamples  int
}

// StoreOptions returns the store.Open options for this configuration.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:               c.StoreBackend,
		MemcachedAddrs:        c.MemcachedAddrs,
		MemcachedTimeout:      c.MemcachedTimeout,
		MemcachedMaxIdleConns: c.MemcachedMaxIdleConns,
		SQLitePath:            c.SQLitePath,
	}
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL            string  `yaml:"url"`
		Timeout        string  `yaml:"timeout"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
		Breaker        struct {
			Failures int    `yaml:"failures"`
			Cooldown string `yaml:"cooldown"`
		} `yaml:"breaker"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Store struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"store"`

	Map struct {
		Home *struct {
			Lat float64 `yaml:"lat"`
			Lng float64 `yaml:"lng"`
		} `yaml:"home"`
		Zoom int `yaml:"zoom"`
	} `yaml:"map"`

	Replay struct {
		Interval string `yaml:"interval"`
	} `yaml:"replay"`

	Share struct {
		WebhookURL string `yaml:"webhook_url"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"share"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow      string `yaml:"degraded_window"`
		DegradedFallbackPct int    `yaml:"degraded_fallback_pct"`
		DegradedMinSamples  int    `yaml:"degraded_min_samples"`
	} `yaml:"health"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Root contains config/ and an optional .env.
	Root string
	// RequireFile fails the load when config/{ENV_NAME}.yaml is missing.
	RequireFile bool
	// DefaultBackend applies when neither STORE_BACKEND nor the file names a backend.
	DefaultBackend string
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// API key comes from WEATHER_API_KEY env or secrets file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadWith(LoadOptions{Root: cwd, RequireFile: true, DefaultBackend: store.BackendInMemory})
}

// LoadWith is Load with an explicit root and file requirement. A .env file in Root is
// loaded first; variables already set in the environment win.
func LoadWith(opts LoadOptions) (*Config, error) {
	if err := godotenv.Load(filepath.Join(opts.Root, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(opts.Root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if opts.RequireFile {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{
		TestingMode: false,
	}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(opts.Root)
	if err != nil {
		return nil, err
	}
	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 3*time.Second)
	cfg.WeatherRateLimitRPS = fc.WeatherAPI.RateLimitRPS
	if cfg.WeatherRateLimitRPS <= 0 {
		cfg.WeatherRateLimitRPS = 1
	}
	cfg.WeatherRateLimitBurst = fc.WeatherAPI.RateLimitBurst
	if cfg.WeatherRateLimitBurst <= 0 {
		cfg.WeatherRateLimitBurst = 5
	}
	cfg.BreakerFailures = fc.WeatherAPI.Breaker.Failures
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	cfg.BreakerCooldown = parseDuration(fc.WeatherAPI.Breaker.Cooldown, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.StoreBackend = firstNonEmpty(
		strings.ToLower(os.Getenv("STORE_BACKEND")),
		strings.ToLower(fc.Store.Backend),
		opts.DefaultBackend,
		store.BackendInMemory,
	)
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Store.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.Store.SQLite.Path, "workouts.db")

	if home := os.Getenv("HOME_COORDS"); strings.TrimSpace(home) != "" {
		c, err := parseCoords(home)
		if err != nil {
			return nil, fmt.Errorf("HOME_COORDS: %w", err)
		}
		cfg.Home = &c
	} else if fc.Map.Home != nil {
		cfg.Home = &models.Coords{Lat: fc.Map.Home.Lat, Lng: fc.Map.Home.Lng}
	}
	cfg.MapZoom = fc.Map.Zoom
	if cfg.MapZoom <= 0 {
		cfg.MapZoom = 13
	}
	cfg.ReplayInterval = parseDuration(fc.Replay.Interval, time.Second)

	cfg.ShareWebhookURL = firstNonEmpty(os.Getenv("SHARE_WEBHOOK_URL"), fc.Share.WebhookURL)
	cfg.ShareTimeout = parseDuration(fc.Share.Timeout, 5*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 5*time.Minute)
	cfg.DegradedFallbackPct = fc.Health.DegradedFallbackPct
	if cfg.DegradedFallbackPct <= 0 {
		cfg.DegradedFallbackPct = 50
	}
	cfg.DegradedMinSamples = fc.Health.DegradedMinSamples
	if cfg.DegradedMinSamples <= 0 {
		cfg.DegradedMinSamples = 4
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey returns WEATHER_API_KEY or the secrets file key. Neither is required.
func loadAPIKey(root string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsPath := filepath.Join(root, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// parseCoords parses "lat,lng".
func parseCoords(s string) (models.Coords, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Coords{}, fmt.Errorf("want \"lat,lng\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Coords{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Coords{}, fmt.Errorf("longitude: %w", err)
	}
	return models.Coords{Lat: lat, Lng: lng}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Ensures WeatherAPITimeout is positive, RequestTimeout exceeds it, the store backend
// is known and the home position is on the globe.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.StoreBackend {
	case store.BackendInMemory, store.BackendMemcached, store.BackendSQLite:
		// valid
	default:
		return fmt.Errorf("store.backend must be in_memory, memcached or sqlite, got %q", cfg.StoreBackend)
	}
	if cfg.Home != nil {
		if err := validation.Coords(cfg.Home.Lat, cfg.Home.Lng); err != nil {
			return fmt.Errorf("map.home: %w", err)
		}
	}
	return nil
}
