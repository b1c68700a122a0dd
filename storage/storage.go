// Package storage selects and opens the configured transaction store.
package storage

import (
	"context"
	"strings"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/storage/memory"
	"github.com/ClipFinance/bridge-engine/storage/mongo"
	"github.com/ClipFinance/bridge-engine/storage/postgres"
	"github.com/ClipFinance/bridge-engine/storage/redis"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Config selects the driver and carries its connection settings.
type Config struct {
	Driver        string `yaml:"driver"`
	PostgresDSN   string `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	RedisURL      string `yaml:"redis_url" envconfig:"REDIS_URL"`
	RedisPrefix   string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`
	MongoURI      string `yaml:"mongo_uri" envconfig:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" envconfig:"MONGO_DATABASE"`
	MaxOpenConns  int    `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
}

// Store is a TransactionStore holding external resources.
type Store interface {
	types.TransactionStore
	Close() error
}

type memoryStore struct {
	*memory.Store
}

func (memoryStore) Close() error { return nil }

// Open creates the store selected by cfg.Driver. An empty driver selects memory.
//
// Parameters:
// - ctx: the context for managing the request.
// - cfg: the storage configuration.
// - logger: the logger instance.
//
// Returns:
// - Store: the opened store.
// - error: an error wrapping ErrInvalidConfig for unknown drivers, or the driver's connection error.
func Open(ctx context.Context, cfg Config, logger *logrus.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	logger.WithField("driver", driver).Info("Opening transaction store")

	var (
		store Store
		err   error
	)
	switch driver {
	case "", DriverMemory:
		logger.Warn("Using in-memory transaction store, state is lost on restart")
		store = memoryStore{memory.NewStore()}
	case DriverPostgres:
		store, err = postgres.NewStore(ctx, postgres.Config{
			DSN:          cfg.PostgresDSN,
			MaxOpenConns: cfg.MaxOpenConns,
		}, logger)
	case DriverRedis:
		store, err = redis.NewStore(ctx, redis.Config{
			URL:       cfg.RedisURL,
			KeyPrefix: cfg.RedisPrefix,
		}, logger)
	case DriverMongo:
		store, err = mongo.NewStore(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
	default:
		err = errors.Wrapf(bridgeerrors.ErrInvalidConfig, "unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
