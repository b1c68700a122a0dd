// Package config loads the daemon configuration from a YAML file, an optional
// .env file and BRIDGE_* environment variables, in that order of precedence.
package config

import (
	"io/fs"
	"os"
	"strings"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/storage"
	"github.com/ClipFinance/bridge-engine/watcher"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BRIDGE_LOG_LEVEL.
const EnvPrefix = "BRIDGE"

// envFile is loaded into the process environment when present.
const envFile = ".env"

// Config is the daemon configuration.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	HTTP     HTTPConfig      `yaml:"http"`
	Storage  storage.Config  `yaml:"storage"`
	Engine   EngineConfig    `yaml:"engine"`
	Watcher  WatcherConfig   `yaml:"watcher"`
	Networks []NetworkConfig `yaml:"networks" ignored:"true"`
	Pairs    []PairConfig    `yaml:"pairs" ignored:"true"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	CORSOrigins  []string      `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

type EngineConfig struct {
	AdapterTimeout time.Duration `yaml:"adapter_timeout" envconfig:"ADAPTER_TIMEOUT"`
}

// WatcherConfig mirrors watcher.Config and adds a switch for the whole loop.
type WatcherConfig struct {
	Disabled     bool          `yaml:"disabled"`
	Interval     time.Duration `yaml:"interval"`
	BatchSize    int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
	Workers      int           `yaml:"workers"`
	ExpireAfter  time.Duration `yaml:"expire_after" envconfig:"EXPIRE_AFTER"`
	AutoComplete bool          `yaml:"auto_complete" envconfig:"AUTO_COMPLETE"`
}

// Policy returns the watcher polling policy.
func (w WatcherConfig) Policy() watcher.Config {
	return watcher.Config{
		Interval:     w.Interval,
		BatchSize:    w.BatchSize,
		Workers:      w.Workers,
		ExpireAfter:  w.ExpireAfter,
		AutoComplete: w.AutoComplete,
	}
}

// Default returns the configuration used when nothing overrides it: memory
// storage, no networks and the built-in pair table.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 3 * time.Minute,
		},
		Storage: storage.Config{
			Driver:        storage.DriverMemory,
			RedisPrefix:   "bridge:",
			MongoDatabase: "bridge",
		},
		Engine: EngineConfig{
			AdapterTimeout: 2 * time.Minute,
		},
		Watcher: WatcherConfig{
			Interval:    15 * time.Second,
			BatchSize:   100,
			Workers:     4,
			ExpireAfter: 24 * time.Hour,
		},
	}
}

// Load builds the configuration.
//
// Parameters:
// - path: the YAML file, skipped when empty.
//
// Returns:
// - *Config: the validated configuration.
// - error: an error wrapping ErrInvalidConfig if any layer is malformed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "failed to load %s: %v", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "environment: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "failed to open %s: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "failed to decode %s: %v", path, err)
	}
	return nil
}

// Validate checks every section that can be checked without connecting to
// anything.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "log format %q, want text or json", c.Log.Format)
	}

	if c.HTTP.Addr == "" {
		return errors.Wrap(bridgeerrors.ErrInvalidConfig, "http addr is required")
	}
	if c.Engine.AdapterTimeout < 0 {
		return errors.Wrap(bridgeerrors.ErrInvalidConfig, "engine adapter_timeout must not be negative")
	}
	if c.Watcher.ExpireAfter < 0 {
		return errors.Wrap(bridgeerrors.ErrInvalidConfig, "watcher expire_after must not be negative")
	}

	seen := make(map[types.Network]bool, len(c.Networks))
	for i, n := range c.Networks {
		network, err := n.validate()
		if err != nil {
			return errors.Wrapf(err, "networks[%d]", i)
		}
		if seen[network] {
			return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "network %s configured twice", network)
		}
		seen[network] = true
	}

	if _, err := c.PairTable(); err != nil {
		return err
	}

	return nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "log level %q", cfg.Level)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
