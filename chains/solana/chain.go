package solana

import (
	"context"
	"sync"

	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/connectionmonitor"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultSignatureLookback is the number of vault signatures scanned for deposits when unset.
	defaultSignatureLookback = 100
	// maxSignatureLookback is the page size limit of getSignaturesForAddress.
	maxSignatureLookback = 1000
	// defaultComputeUnits is used when simulation fails.
	defaultComputeUnits = 200_000
	// computeUnitBuffer is the percentage applied to simulated compute units.
	computeUnitBuffer = 120
)

// rpcClient is the subset of *rpc.Client used by the adapter.
type rpcClient interface {
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account sol.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenAccountBalance(ctx context.Context, account sol.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account sol.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, txSig sol.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...sol.Signature) (*rpc.GetSignatureStatusesResult, error)
	SimulateTransaction(ctx context.Context, transaction *sol.Transaction) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, transaction *sol.Transaction, opts rpc.TransactionOpts) (sol.Signature, error)
	Close() error
}

// newClient opens an RPC client, replaced in tests.
type newClient func(rpcURL string) rpcClient

func newRPCClient(rpcURL string) rpcClient {
	return rpc.New(rpcURL)
}

// solana represents the Solana network adapter.
type solana struct {
	config    *types.NetworkConfig
	logger    *logrus.Logger
	mint      sol.PublicKey
	vault     sol.PublicKey
	newClient newClient

	// Protected fields with their own mutexes
	clientMutex sync.RWMutex
	client      rpcClient

	signerMutex sync.RWMutex
	signer      *sol.PrivateKey

	// sendMutex serializes blockhash fetch and submission.
	sendMutex sync.Mutex

	monitorMutex sync.RWMutex
	monitor      connectionmonitor.ConnectionMonitor
}

// NewSolanaAdapter creates a new Solana network adapter.
//
// Parameters:
// - ctx: the context for managing the request.
// - config: the network configuration.
// - logger: the logger for logging events.
//
// Returns:
// - types.NetworkAdapter: a new Solana adapter instance.
// - error: an error if any issue occurs during creation.
func NewSolanaAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error) {
	return newSolanaAdapter(ctx, config, logger, newRPCClient)
}

func newSolanaAdapter(ctx context.Context, config *types.NetworkConfig, logger *logrus.Logger, open newClient) (*chainmanager.Adapter, error) {
	mint, err := sol.PublicKeyFromBase58(config.TokenAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid token mint %q for %s", config.TokenAddress, config.Network)
	}

	chain := &solana{
		config:    config,
		logger:    logger,
		mint:      mint,
		newClient: open,
		client:    open(config.RpcUrl),
	}

	builder := chainmanager.NewAdapterBuilder(config, logger)

	if config.PrivateKey != "" {
		signer, err := sol.PrivateKeyFromBase58(config.PrivateKey)
		if err != nil {
			chain.closeClient()
			return nil, errors.Wrap(err, "failed to parse private key")
		}

		chain.signerMutex.Lock()
		chain.signer = &signer
		chain.signerMutex.Unlock()

		chain.vault = signer.PublicKey()
		builder.WithMinter(chain).WithRefunder(chain)
	}

	if config.VaultAddress != "" {
		chain.vault, err = sol.PublicKeyFromBase58(config.VaultAddress)
		if err != nil {
			chain.closeClient()
			return nil, errors.Wrapf(err, "invalid vault address %q for %s", config.VaultAddress, config.Network)
		}
	}

	if !chain.vault.IsZero() {
		builder.WithDepositVerifier(chain)
	}

	if err := chain.initMonitor(ctx); err != nil {
		chain.closeClient()
		return nil, errors.Wrap(err, "failed to init connection monitor")
	}

	chain.logger.WithFields(logrus.Fields{
		"network":  config.Network,
		"mint":     mint.String(),
		"vault":    chain.vault.String(),
		"mintable": config.Mintable,
	}).Info("Solana adapter initialized")

	return builder.
		WithHealthReporter(chain).
		WithCloser(chain.Close).
		Build(), nil
}

// Healthy reports the connection monitor state.
func (s *solana) Healthy() bool {
	s.monitorMutex.RLock()
	defer s.monitorMutex.RUnlock()
	return s.monitor == nil || s.monitor.Healthy()
}

// Close should be called when adapter is no longer needed
func (s *solana) Close() {
	s.monitorMutex.Lock()
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.monitorMutex.Unlock()

	s.closeClient()
}

func (s *solana) closeClient() {
	s.clientMutex.Lock()
	defer s.clientMutex.Unlock()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.WithError(err).Debug("Failed to close RPC client")
		}
		s.client = nil
	}
}

func (s *solana) getClient() (rpcClient, error) {
	s.clientMutex.RLock()
	defer s.clientMutex.RUnlock()
	if s.client == nil {
		return nil, errors.New("client not initialized")
	}
	return s.client, nil
}

func (s *solana) getSigner() (sol.PrivateKey, error) {
	s.signerMutex.RLock()
	defer s.signerMutex.RUnlock()
	if s.signer == nil {
		return nil, errors.New("signer not initialized")
	}
	return *s.signer, nil
}
