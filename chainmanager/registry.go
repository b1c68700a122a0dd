package chainmanager

import (
	"context"
	"sort"
	"sync"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdapterFactory builds an adapter from its network configuration.
type AdapterFactory interface {
	CreateAdapter(context.Context, *types.NetworkConfig, *logrus.Logger) (types.NetworkAdapter, error)
}

// Registry holds one adapter per network. It is filled at startup and only
// read afterwards.
type Registry struct {
	logger        *logrus.Logger
	adapters      map[types.Network]types.NetworkAdapter
	adaptersMutex sync.RWMutex
	factory       AdapterFactory
}

// NewAdapterRegistry creates an empty registry.
//
// Parameters:
// - factory: used by Add to construct adapters, may be nil when only Register is used.
// - logger: the logger for registry events.
//
// Returns:
// - *Registry: the new registry.
func NewAdapterRegistry(factory AdapterFactory, logger *logrus.Logger) *Registry {
	return &Registry{
		adapters: make(map[types.Network]types.NetworkAdapter),
		factory:  factory,
		logger:   logger,
	}
}

// Add constructs the adapter described by config and registers it.
func (r *Registry) Add(ctx context.Context, config *types.NetworkConfig) error {
	if r.factory == nil {
		return bridgeerrors.ErrInvalidConfig
	}

	adapter, err := r.factory.CreateAdapter(ctx, config, r.logger)
	if err != nil {
		return errors.Wrapf(err, "failed to create adapter for %s", config.Network)
	}

	return r.Register(config.Network, adapter)
}

// Register adds an already built adapter.
//
// Returns:
// - error: ErrAdapterExists if the network already has an adapter.
func (r *Registry) Register(network types.Network, adapter types.NetworkAdapter) error {
	r.adaptersMutex.Lock()
	defer r.adaptersMutex.Unlock()

	if _, exists := r.adapters[network]; exists {
		return errors.Wrapf(bridgeerrors.ErrAdapterExists, "%s", network)
	}
	r.adapters[network] = adapter

	r.logger.WithField("network", network).Info("Network adapter registered")
	return nil
}

// Get returns the adapter registered for network.
func (r *Registry) Get(network types.Network) (types.NetworkAdapter, error) {
	r.adaptersMutex.RLock()
	adapter, ok := r.adapters[network]
	r.adaptersMutex.RUnlock()

	if !ok {
		return nil, errors.Wrapf(bridgeerrors.ErrAdapterUnavailable, "no adapter registered for %s", network)
	}
	return adapter, nil
}

// Networks lists the networks with a registered adapter in lexical order.
func (r *Registry) Networks() []types.Network {
	r.adaptersMutex.RLock()
	defer r.adaptersMutex.RUnlock()

	out := make([]types.Network, 0, len(r.adapters))
	for n := range r.adapters {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes every adapter that holds network resources.
func (r *Registry) Close() {
	r.adaptersMutex.RLock()
	defer r.adaptersMutex.RUnlock()

	for network, adapter := range r.adapters {
		if c, ok := adapter.(interface{ Close() }); ok {
			c.Close()
			r.logger.WithField("network", network).Debug("Network adapter closed")
		}
	}
}
