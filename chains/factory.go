package chains

import (
	"context"
	"sync"

	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/chains/evm"
	"github.com/ClipFinance/bridge-engine/chains/mock"
	"github.com/ClipFinance/bridge-engine/chains/solana"
	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AdapterConstructor represents a function that constructs a new network adapter.
//
// Parameters:
// - ctx: the context bounding connection setup.
// - config: the configuration for the network.
// - logger: the logger for logging purposes.
//
// Returns:
// - types.NetworkAdapter: the constructed adapter.
// - error: an error if the adapter construction fails.
type AdapterConstructor func(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error)

// AdapterFactory creates network adapters keyed by chain type.
type AdapterFactory interface {
	// RegisterConstructor registers a new adapter constructor for a given chain type.
	//
	// Parameters:
	// - chainType: the chain type served by the constructor.
	// - constructor: the constructor function for the chain type.
	RegisterConstructor(chainType types.ChainType, constructor AdapterConstructor)

	// CreateAdapter creates a new adapter based on the configuration.
	//
	// Parameters:
	// - ctx: the context bounding connection setup.
	// - config: the configuration for the network.
	// - logger: the logger for logging purposes.
	//
	// Returns:
	// - types.NetworkAdapter: the created adapter.
	// - error: an error if the chain type is unknown or the construction fails.
	CreateAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error)
}

var _ chainmanager.AdapterFactory = (AdapterFactory)(nil)

type adapterFactory struct {
	// constructors stores the mapping of chain types to their constructors.
	constructors map[types.ChainType]AdapterConstructor
	// constructorsMutex protects access to the constructors map.
	constructorsMutex sync.RWMutex
}

// NewAdapterFactory creates a new instance of the adapter factory with the
// EVM, Solana and mock constructors registered.
//
// Returns:
// - AdapterFactory: the new adapter factory instance.
func NewAdapterFactory() AdapterFactory {
	factory := &adapterFactory{
		constructors: make(map[types.ChainType]AdapterConstructor),
	}

	factory.registerConstructors()

	return factory
}

// RegisterConstructor registers a new adapter constructor, replacing any
// previous one for the chain type.
func (f *adapterFactory) RegisterConstructor(chainType types.ChainType, constructor AdapterConstructor) {
	f.constructorsMutex.Lock()
	defer f.constructorsMutex.Unlock()

	f.constructors[chainType] = constructor
}

// CreateAdapter creates a new adapter based on the configuration. The chain
// type defaults to the family of the configured network.
func (f *adapterFactory) CreateAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error) {
	chainType := config.ChainType
	if chainType == "" || chainType == types.UNKNOWN {
		chainType = config.Network.ChainType()
	}

	f.constructorsMutex.RLock()
	constructor, exists := f.constructors[chainType]
	f.constructorsMutex.RUnlock()

	if !exists {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidChainType, "%s for network %s", chainType, config.Network)
	}

	return constructor(ctx, config, logger)
}

// registerConstructors registers the built-in adapter constructors.
func (f *adapterFactory) registerConstructors() {
	f.RegisterConstructor(types.EVM, evm.NewEvmAdapter)
	f.RegisterConstructor(types.SOLANA, solana.NewSolanaAdapter)
	f.RegisterConstructor(types.MOCK, newGuardedMock)
}

// newGuardedMock wraps the mock adapter with the same call guards real
// adapters get.
func newGuardedMock(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error) {
	inner, err := mock.NewMockAdapter(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	return chainmanager.NewAdapterBuilder(config, logger).
		WithDepositVerifier(inner).
		WithMinter(inner).
		WithRefunder(inner).
		Build(), nil
}
