// Package config loads workboard-mcp settings.
//
// Values are resolved in the usual viper order: built-in defaults, then an
// optional YAML file, then WORKBOARD_* environment variables. Missing
// credentials are not a load error: the credential cache reports them
// lazily, so a server without a spreadsheet identity still serves the
// board tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment override, e.g.
// WORKBOARD_API_TOKEN or WORKBOARD_QUEUE_MIN_INTERVAL.
const EnvPrefix = "WORKBOARD"

// Config is the fully resolved configuration.
type Config struct {
	Debug       bool              `mapstructure:"debug"`
	API         APIConfig         `mapstructure:"api"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Sheets      SheetsConfig      `mapstructure:"sheets"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// APIConfig describes the work-management GraphQL endpoint.
type APIConfig struct {
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	Version           string        `mapstructure:"version"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CredentialsConfig holds the service identity used for the spreadsheet
// provider and the token cache tuning.
type CredentialsConfig struct {
	Identity       string        `mapstructure:"identity"`
	PrivateKey     string        `mapstructure:"private_key"`
	PrivateKeyFile string        `mapstructure:"private_key_file"`
	Scopes         []string      `mapstructure:"scopes"`
	TokenURL       string        `mapstructure:"token_url"`
	SafetyMargin   time.Duration `mapstructure:"safety_margin"`
	CachedLifetime time.Duration `mapstructure:"cached_lifetime"`
}

// MetadataConfig tunes the board metadata cache.
type MetadataConfig struct {
	// Staleness is the maximum age of a cached board before it is refetched.
	Staleness time.Duration `mapstructure:"staleness"`
	// SyncInterval is the period of the background full sync. Zero disables it.
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	// Boards is the fixed registry synced by a full sync. Empty means
	// "every board already known to the cache".
	Boards []string `mapstructure:"boards"`
	// SnapshotDSN selects optional persistence (memory://, sqlite://,
	// redis://, postgres://). Empty disables persistence.
	SnapshotDSN string `mapstructure:"snapshot_dsn"`
}

// QueueConfig tunes the rate-limited request queue.
type QueueConfig struct {
	MinInterval    time.Duration `mapstructure:"min_interval"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

// SheetsConfig points at the spreadsheet provider.
type SheetsConfig struct {
	URL string `mapstructure:"url"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("api.url", "https://api.monday.com/v2")
	v.SetDefault("api.token", "")
	v.SetDefault("api.version", "2024-10")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.requests_per_second", 20.0)
	v.SetDefault("api.burst", 40)

	// Keys without a default are invisible to Unmarshal, env included.
	v.SetDefault("credentials.identity", "")
	v.SetDefault("credentials.private_key", "")
	v.SetDefault("credentials.private_key_file", "")
	v.SetDefault("credentials.scopes", []string{"https://www.googleapis.com/auth/spreadsheets"})
	v.SetDefault("credentials.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("credentials.safety_margin", 5*time.Minute)
	v.SetDefault("credentials.cached_lifetime", 55*time.Minute)

	v.SetDefault("metadata.staleness", 10*time.Minute)
	v.SetDefault("metadata.sync_interval", 15*time.Minute)
	v.SetDefault("metadata.boards", []string{})
	v.SetDefault("metadata.snapshot_dsn", "")

	v.SetDefault("queue.min_interval", 500*time.Millisecond)
	v.SetDefault("queue.max_concurrency", 1)

	v.SetDefault("sheets.url", "https://sheets.googleapis.com")
	v.SetDefault("metrics.addr", "")
}

// Load resolves the configuration from v. If v has a "config" key set, the
// file it names is read first.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Env vars arrive as a single string; accept comma separated lists.
	cfg.Metadata.Boards = splitList(cfg.Metadata.Boards)
	cfg.Credentials.Scopes = splitList(cfg.Credentials.Scopes)

	if cfg.Credentials.PrivateKey == "" && cfg.Credentials.PrivateKeyFile != "" {
		data, err := os.ReadFile(cfg.Credentials.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading private key file: %w", err)
		}
		cfg.Credentials.PrivateKey = string(data)
	}
	cfg.Credentials.PrivateKey = normalizePrivateKey(cfg.Credentials.PrivateKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work at all.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.URL) == "" {
		errs = append(errs, errors.New("api.url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("api.requests_per_second must not be negative"))
	}
	if c.Queue.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("queue.max_concurrency must be at least 1, got %d", c.Queue.MaxConcurrency))
	}
	if c.Queue.MinInterval < 0 {
		errs = append(errs, errors.New("queue.min_interval must not be negative"))
	}
	if c.Metadata.Staleness <= 0 {
		errs = append(errs, errors.New("metadata.staleness must be positive"))
	}
	if c.Metadata.SyncInterval < 0 {
		errs = append(errs, errors.New("metadata.sync_interval must not be negative"))
	}
	if c.Credentials.CachedLifetime <= c.Credentials.SafetyMargin {
		errs = append(errs, fmt.Errorf("credentials.cached_lifetime (%s) must exceed credentials.safety_margin (%s)",
			c.Credentials.CachedLifetime, c.Credentials.SafetyMargin))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// HasCredentials reports whether both halves of the service identity are set.
func (c *Config) HasCredentials() bool {
	return c.Credentials.Identity != "" && c.Credentials.PrivateKey != ""
}

// normalizePrivateKey turns literal "\n" sequences (common when a PEM key is
// passed through an environment variable) back into newlines.
func normalizePrivateKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return strings.ReplaceAll(key, `\n`, "\n")
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
