package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/morp/pkg/cache"
	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/manifest"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the repository root
const DefaultFileName = ".morp.yaml"

// Config holds all application configuration
type Config struct {
	// Repository layout
	Root         string `yaml:"root"`
	PackagesDir  string `yaml:"packages_dir"`
	ManifestFile string `yaml:"manifest_file"`
	BaseBranch   string `yaml:"base_branch"`
	RootPackage  string `yaml:"root_package"`

	// Command output
	Output string `yaml:"output"`
	Prefix string `yaml:"prefix"`

	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Metrics MetricsConfig `yaml:"metrics"`
	OTel    OTelConfig    `yaml:"otel"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Watch           bool          `yaml:"watch"`
	ReloadSchedule  string        `yaml:"reload_schedule"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CacheConfig holds impact cache settings
type CacheConfig struct {
	Type     string        `yaml:"type"`
	Size     int           `yaml:"size"`
	TTL      time.Duration `yaml:"ttl"`
	RedisURL string        `yaml:"redis_url"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Insecure       bool    `yaml:"insecure"`
	SampleRatio    float64 `yaml:"sample_ratio"`
}

// Default returns the built-in configuration
func Default() *Config {
	cacheDefaults := cache.DefaultConfig()
	return &Config{
		Root:         ".",
		PackagesDir:  manifest.DefaultPackagesDir,
		ManifestFile: manifest.DefaultFileName,
		BaseBranch:   changes.DefaultBaseBranch,
		RootPackage:  changes.RootPackage,
		Output:       "dependencies.dot",
		Log: LogConfig{
			Level:  "info",
			Format: observability.FormatText,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Watch:           true,
			ReloadSchedule:  "@every 5m",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Type: cacheDefaults.Type,
			Size: cacheDefaults.Size,
			TTL:  cacheDefaults.TTL,
		},
		Metrics: MetricsConfig{
			Job: "morp",
		},
		OTel: OTelConfig{
			Endpoint:       "localhost:4317",
			ServiceName:    "morp",
			ServiceVersion: "dev",
			Insecure:       true,
			SampleRatio:    1,
		},
	}
}

// Load layers the defaults, a YAML file and MORP_* environment variables.
//
// An explicit path must exist. Without one, <root>/.morp.yaml is read when
// present. A non-empty root is used for the file lookup and wins over both the
// file and MORP_ROOT.
func Load(path, root string) (*Config, error) {
	cfg := Default()
	if root != "" {
		cfg.Root = root
	}

	optional := false
	if path == "" {
		path = filepath.Join(cfg.Root, DefaultFileName)
		optional = true
	}

	if err := cfg.loadFile(path); err != nil {
		if !(optional && errors.Is(err, os.ErrNotExist)) {
			return nil, err
		}
	}

	cfg.applyEnv()

	// A root given by the caller wins over the file and the environment
	if root != "" {
		cfg.Root = root
	}
	return cfg, nil
}

// loadFile decodes a YAML file over the current values
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides values from MORP_* environment variables
func (c *Config) applyEnv() {
	c.Root = getEnv("MORP_ROOT", c.Root)
	c.PackagesDir = getEnv("MORP_PACKAGES_DIR", c.PackagesDir)
	c.ManifestFile = getEnv("MORP_MANIFEST_FILE", c.ManifestFile)
	c.BaseBranch = getEnv("MORP_BASE_BRANCH", c.BaseBranch)
	c.RootPackage = getEnv("MORP_ROOT_PACKAGE", c.RootPackage)
	c.Output = getEnv("MORP_OUTPUT", c.Output)
	c.Prefix = getEnv("MORP_PREFIX", c.Prefix)

	c.Log.Level = getEnv("MORP_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MORP_LOG_FORMAT", c.Log.Format)

	c.Server.Addr = getEnv("MORP_SERVER_ADDR", c.Server.Addr)
	c.Server.Watch = getEnvBool("MORP_SERVER_WATCH", c.Server.Watch)
	c.Server.ReloadSchedule = getEnv("MORP_SERVER_RELOAD_SCHEDULE", c.Server.ReloadSchedule)
	c.Server.ReadTimeout = getEnvDuration("MORP_SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("MORP_SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("MORP_SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("MORP_SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Cache.Type = getEnv("MORP_CACHE_TYPE", c.Cache.Type)
	c.Cache.Size = getEnvInt("MORP_CACHE_SIZE", c.Cache.Size)
	c.Cache.TTL = getEnvDuration("MORP_CACHE_TTL", c.Cache.TTL)
	c.Cache.RedisURL = getEnv("MORP_CACHE_REDIS_URL", c.Cache.RedisURL)

	c.Metrics.PushgatewayURL = getEnv("MORP_METRICS_PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Metrics.Job = getEnv("MORP_METRICS_JOB", c.Metrics.Job)

	c.OTel.Enabled = getEnvBool("MORP_OTEL_ENABLED", c.OTel.Enabled)
	c.OTel.Endpoint = getEnv("MORP_OTEL_ENDPOINT", c.OTel.Endpoint)
	c.OTel.ServiceName = getEnv("MORP_OTEL_SERVICE_NAME", c.OTel.ServiceName)
	c.OTel.ServiceVersion = getEnv("MORP_OTEL_SERVICE_VERSION", c.OTel.ServiceVersion)
	c.OTel.Insecure = getEnvBool("MORP_OTEL_INSECURE", c.OTel.Insecure)
	c.OTel.SampleRatio = getEnvFloat("MORP_OTEL_SAMPLE_RATIO", c.OTel.SampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("repository root is required")
	}
	if c.PackagesDir == "" {
		return fmt.Errorf("packages directory is required")
	}
	if c.ManifestFile == "" {
		return fmt.Errorf("manifest file name is required")
	}
	if c.RootPackage == "" {
		return fmt.Errorf("root package name is required")
	}

	switch strings.ToLower(c.Log.Format) {
	case observability.FormatText, observability.FormatJSON:
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Server.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid reload schedule %q: %w", c.Server.ReloadSchedule, err)
		}
	}

	switch c.Cache.Type {
	case cache.TypeMemory, cache.TypeNone:
	case cache.TypeRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis cache")
		}
	default:
		return fmt.Errorf("invalid cache type: %s (must be memory, redis, or none)", c.Cache.Type)
	}

	// Validate OpenTelemetry config
	if c.OTel.Enabled {
		if c.OTel.Endpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.OTel.ServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// StoreConfig returns the manifest store settings
func (c *Config) StoreConfig() manifest.StoreConfig {
	return manifest.StoreConfig{
		Root:        c.Root,
		PackagesDir: c.PackagesDir,
		FileName:    c.ManifestFile,
	}
}

// CacheConfig returns the impact cache settings
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Type:     c.Cache.Type,
		Size:     c.Cache.Size,
		TTL:      c.Cache.TTL,
		RedisURL: c.Cache.RedisURL,
	}
}

// OTelConfig returns the tracing settings
func (c *Config) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTel.Enabled,
		Endpoint:       c.OTel.Endpoint,
		ServiceName:    c.OTel.ServiceName,
		ServiceVersion: c.OTel.ServiceVersion,
		Insecure:       c.OTel.Insecure,
		SampleRatio:    c.OTel.SampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
