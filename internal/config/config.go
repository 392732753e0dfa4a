// Package config loads the ledgerq node configuration.
//
// Configuration comes from a YAML file given by --config or the
// LEDGERQ_CONFIG environment variable. LEDGERQ_* variables override
// individual values after the file is read, and ${VAR} or ${VAR:-default}
// patterns in paths are expanded.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "LEDGERQ_"

// Store types.
const (
	StoreLocal  = "local"
	StoreMemory = "memory"
	StoreS3     = "s3"
	StoreMinIO  = "minio"
)

// Config is the node configuration.
type Config struct {
	// DataDir holds the WAL and, for the local store, the checkpoints.
	// Empty runs without a WAL.
	DataDir string `yaml:"data_dir"`

	// ReadOnly serves the latest checkpoint of the store without accepting writes.
	ReadOnly bool `yaml:"read_only"`

	// Codec is the metadata codec: "json" or "go-json".
	Codec string `yaml:"codec"`

	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	WAL        WALConfig        `yaml:"wal"`
	Cache      CacheConfig      `yaml:"cache"`
	Limits     LimitsConfig     `yaml:"limits"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Compaction CompactionConfig `yaml:"compaction"`
	Store      StoreConfig      `yaml:"store"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// RequestTimeout bounds each request handler.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// WALConfig configures the write-ahead log.
type WALConfig struct {
	Compress         bool `yaml:"compress"`
	CompressionLevel int  `yaml:"compression_level"`
	Sync             bool `yaml:"sync"`
}

// CacheConfig configures the query result cache.
type CacheConfig struct {
	// SizeBytes is the cache capacity. 0 disables the cache.
	SizeBytes int64 `yaml:"size_bytes"`
}

// LimitsConfig configures admission control. Zero values are unlimited.
type LimitsConfig struct {
	MemoryLimitBytes     int64   `yaml:"memory_limit_bytes"`
	MaxConcurrentQueries int     `yaml:"max_concurrent_queries"`
	QueriesPerSecond     float64 `yaml:"queries_per_second"`
	QueryBurst           int     `yaml:"query_burst"`
	MaxBackgroundWorkers int     `yaml:"max_background_workers"`
}

// CheckpointConfig configures background checkpoints.
type CheckpointConfig struct {
	Every    int           `yaml:"every"`
	Interval time.Duration `yaml:"interval"`
	Keep     int           `yaml:"keep"`
}

// CompactionConfig configures the tombstone compaction policy.
type CompactionConfig struct {
	Disabled       bool    `yaml:"disabled"`
	TombstoneRatio float64 `yaml:"tombstone_ratio"`
	MinTombstones  int     `yaml:"min_tombstones"`
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	// Type is local, memory, s3 or minio. memory runs a purely in-memory
	// engine and ignores data_dir.
	Type   string `yaml:"type"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`

	// Endpoint, AccessKey, SecretKey and Secure apply to minio.
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`

	// DynamoDBTable enables the DynamoDB commit store for s3.
	DynamoDBTable string `yaml:"dynamodb_table"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DataDir: "./data",
		Codec:   "json",
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		WAL: WALConfig{
			Sync: true,
		},
		Cache: CacheConfig{
			SizeBytes: 32 << 20,
		},
		Checkpoint: CheckpointConfig{
			Every:    1000,
			Interval: time.Minute,
			Keep:     2,
		},
		Compaction: CompactionConfig{
			TombstoneRatio: 0.25,
			MinTombstones:  64,
		},
		Store: StoreConfig{
			Type: StoreLocal,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ledgerq",
		},
	}
}

// Load loads the file named by LEDGERQ_CONFIG. Without it, Load returns the
// defaults with environment overrides applied.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvPrefix + "CONFIG"))
}

// LoadFile loads configuration from path over the defaults and applies
// environment overrides. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides values from LEDGERQ_* variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}

	str("DATA_DIR", &c.DataDir)
	boolean("READ_ONLY", &c.ReadOnly)
	str("CODEC", &c.Codec)
	str("LISTEN", &c.Server.Listen)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	boolean("WAL_COMPRESS", &c.WAL.Compress)
	boolean("WAL_SYNC", &c.WAL.Sync)
	integer("MAX_CONCURRENT_QUERIES", &c.Limits.MaxConcurrentQueries)
	integer("CHECKPOINT_EVERY", &c.Checkpoint.Every)
	str("STORE_TYPE", &c.Store.Type)
	str("STORE_BUCKET", &c.Store.Bucket)
	str("STORE_PREFIX", &c.Store.Prefix)
	str("STORE_REGION", &c.Store.Region)
	str("STORE_ENDPOINT", &c.Store.Endpoint)
	str("STORE_ACCESS_KEY", &c.Store.AccessKey)
	str("STORE_SECRET_KEY", &c.Store.SecretKey)
	boolean("STORE_SECURE", &c.Store.Secure)
	str("STORE_DYNAMODB_TABLE", &c.Store.DynamoDBTable)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)

	if v, ok := lookup(EnvPrefix + "CACHE_SIZE_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCACHE_SIZE_BYTES: %w", EnvPrefix, err))
		} else {
			c.Cache.SizeBytes = n
		}
	}

	return errors.Join(errs...)
}

func (c *Config) expandVariables() {
	c.DataDir = expandVars(c.DataDir)
	c.Store.Prefix = expandVars(c.Store.Prefix)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Errorf("invalid log.level: %q", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("invalid log.format: %q", c.Log.Format))
	}
	if c.Codec != "json" && c.Codec != "go-json" {
		errs = append(errs, fmt.Errorf("invalid codec: %q", c.Codec))
	}
	if c.Cache.SizeBytes < 0 {
		errs = append(errs, errors.New("cache.size_bytes must not be negative"))
	}
	if c.Compaction.TombstoneRatio < 0 || c.Compaction.TombstoneRatio > 1 {
		errs = append(errs, errors.New("compaction.tombstone_ratio must be in [0, 1]"))
	}

	switch c.Store.Type {
	case StoreLocal:
		if c.DataDir == "" {
			errs = append(errs, errors.New("store type local requires data_dir"))
		}
	case StoreMemory:
		if c.ReadOnly {
			errs = append(errs, errors.New("store type memory cannot be read_only"))
		}
	case StoreS3:
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("store.bucket is required for s3"))
		}
	case StoreMinIO:
		if c.Store.Bucket == "" || c.Store.Endpoint == "" {
			errs = append(errs, errors.New("store.bucket and store.endpoint are required for minio"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store.type: %q", c.Store.Type))
	}

	return errors.Join(errs...)
}
