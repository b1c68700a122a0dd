package evm

import (
	"context"
	"math/big"
	"sync"

	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/chains/evm/signer"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/connectionmonitor"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// TxTypeLegacy represents the legacy transaction type.
	TxTypeLegacy = 0
	// TxTypeEIP1559 represents the EIP-1559 transaction type.
	TxTypeEIP1559 = 2
	// defaultDepositLookback is the number of blocks scanned for deposits when unset.
	defaultDepositLookback = 5000
)

// ethClient is the subset of *ethclient.Client used by the adapter.
type ethClient interface {
	ethereum.BlockNumberReader
	ethereum.ChainIDReader
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.GasPricer1559
	ethereum.TransactionSender
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	Close()
}

// dialer opens a node connection, replaced in tests.
type dialer func(ctx context.Context, rawURL string) (ethClient, error)

func dialEthClient(ctx context.Context, rawURL string) (ethClient, error) {
	return ethclient.DialContext(ctx, rawURL)
}

// evm is the adapter implementation for EVM networks.
type evm struct {
	config  *types.NetworkConfig // Network configuration.
	logger  *logrus.Logger       // Logger for logging events.
	chainID *big.Int             // Chain id used for signing.
	token   common.Address       // Bridged token contract.
	vault   common.Address       // Deposit recipient.
	dial    dialer

	// Protected fields with their own mutexes.
	clientMutex sync.RWMutex // Mutex for client.
	client      ethClient    // Ethereum client.

	signerMutex sync.RWMutex  // Mutex for signer.
	signer      signer.Signer // Signer for signing transactions.

	// sendMutex serializes nonce allocation and submission.
	sendMutex sync.Mutex

	monitorMutex sync.RWMutex                        // Mutex for connection monitor.
	monitor      connectionmonitor.ConnectionMonitor // Connection monitor.
}

// NewEvmAdapter creates a new EVM network adapter.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the network configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.NetworkAdapter: a new EVM adapter instance.
// - error: an error if any issue occurs during creation.
func NewEvmAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error) {
	return newEvmAdapter(ctx, config, logger, dialEthClient)
}

func newEvmAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger, dial dialer) (*chainmanager.Adapter, error) {
	if !common.IsHexAddress(config.TokenAddress) {
		return nil, errors.Errorf("invalid token address %q for %s", config.TokenAddress, config.Network)
	}

	client, err := dial(ctx, config.RpcUrl)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create client")
	}

	chain := &evm{
		config: config,
		logger: logger,
		client: client,
		token:  common.HexToAddress(config.TokenAddress),
		dial:   dial,
	}

	if config.ChainID != 0 {
		chain.chainID = new(big.Int).SetUint64(config.ChainID)
	} else {
		chain.chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "failed to query chain id")
		}
	}

	builder := chainmanager.NewAdapterBuilder(config, logger)

	if config.PrivateKey != "" {
		privKey, err := crypto.HexToECDSA(config.PrivateKey)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "failed to parse private key")
		}

		s, err := signer.NewSigner(privKey)
		if err != nil {
			client.Close()
			return nil, errors.Wrap(err, "failed to create signer")
		}

		chain.signerMutex.Lock()
		chain.signer = s
		chain.signerMutex.Unlock()

		chain.vault = s.Address()
		builder.WithMinter(chain).WithRefunder(chain)
	}

	if config.VaultAddress != "" {
		if !common.IsHexAddress(config.VaultAddress) {
			client.Close()
			return nil, errors.Errorf("invalid vault address %q for %s", config.VaultAddress, config.Network)
		}
		chain.vault = common.HexToAddress(config.VaultAddress)
	}

	if chain.vault != (common.Address{}) {
		builder.WithDepositVerifier(chain)
	}

	if err := chain.initMonitor(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	chain.logger.WithFields(logrus.Fields{
		"network":  config.Network,
		"chainId":  chain.chainID.String(),
		"token":    chain.token.Hex(),
		"vault":    chain.vault.Hex(),
		"mintable": config.Mintable,
	}).Info("EVM adapter initialized")

	return builder.
		WithHealthReporter(chain).
		WithCloser(chain.Close).
		Build(), nil
}

// Healthy reports the connection monitor state.
func (e *evm) Healthy() bool {
	e.monitorMutex.RLock()
	defer e.monitorMutex.RUnlock()
	return e.monitor == nil || e.monitor.Healthy()
}

// Close should be called when the adapter is no longer needed.
// It stops the connection monitor and closes the client.
func (e *evm) Close() {
	e.monitorMutex.Lock()
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.monitorMutex.Unlock()

	e.clientMutex.Lock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	e.clientMutex.Unlock()
}

// getClient returns the current client or an error when it was closed.
func (e *evm) getClient() (ethClient, error) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	if e.client == nil {
		return nil, errors.New("client not initialized")
	}
	return e.client, nil
}

// getSigner returns the bridge wallet signer.
func (e *evm) getSigner() (signer.Signer, error) {
	e.signerMutex.RLock()
	defer e.signerMutex.RUnlock()
	if e.signer == nil {
		return nil, errors.New("signer not initialized")
	}
	return e.signer, nil
}
