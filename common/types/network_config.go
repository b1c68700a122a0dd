package types

import "time"

// NetworkConfig holds the configuration for a network adapter.
//
// Fields:
// - Network: the network served.
// - ChainType: the chain family, selects the adapter constructor.
// - ChainID: EVM chain id, queried from the node when zero.
// - RpcUrl: the node RPC endpoint.
// - TxType: EVM transaction type (0 legacy, 2 EIP-1559).
// - PrivateKey: bridge wallet key (hex for EVM, base58 for Solana).
// - TokenAddress: ERC-20 contract or SPL mint of the bridged asset.
// - VaultAddress: address receiving deposits, defaults to the bridge wallet.
// - Mintable: mint on release instead of transferring from the wallet.
// - DepositLookback: blocks (EVM) or signatures (Solana) scanned for deposits.
// - ComputeUnitPrice: Solana priority fee in micro-lamports per compute unit.
// - CallTimeout: upper bound for a single adapter call.
// - RateLimit, RateBurst: token bucket for adapter calls, disabled when RateLimit is zero.
// - BreakerFailures, BreakerTimeout: consecutive failures opening the circuit and its open period.
// - HealthCheckInterval: connection monitor period.
type NetworkConfig struct {
	Network             Network
	ChainType           ChainType
	ChainID             uint64
	RpcUrl              string
	TxType              uint64
	PrivateKey          string
	TokenAddress        string
	VaultAddress        string
	Mintable            bool
	DepositLookback     uint64
	ComputeUnitPrice    uint64
	CallTimeout         time.Duration
	RateLimit           float64
	RateBurst           int
	BreakerFailures     uint32
	BreakerTimeout      time.Duration
	HealthCheckInterval time.Duration
}
