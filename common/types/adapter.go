package types

import (
	"context"
	"math/big"
)

//go:generate mockgen -source=adapter.go -destination=mocks/mock_adapter.go -package=mocks

// DepositVerifier locates confirmed source-side deposits.
type DepositVerifier interface {
	// VerifyDeposit lists the deposits of exactly amount from address that
	// reached at least confirmations confirmations, oldest first. Each
	// deposit is named by an identifier that is unique on the network, so a
	// deposit can be claimed by one transaction only.
	//
	// Parameters:
	// - ctx: the context for managing the request.
	// - address: the depositor's address on the source network.
	// - amount: the deposited amount in source minor units.
	// - confirmations: the required confirmation count.
	//
	// Returns:
	// - []string: the deposit identifiers, empty if none is sufficiently confirmed.
	// - error: an error if the network could not be queried, or one wrapping
	//   ErrInvalidRequest if address is malformed.
	VerifyDeposit(ctx context.Context, address string, amount *big.Int, confirmations uint64) ([]string, error)
}

// Minter mints or releases value on the destination network.
type Minter interface {
	// MintOrRelease delivers amount to address.
	//
	// Returns:
	// - string: the external transaction identifier.
	// - error: an error if the delivery could not be submitted.
	MintOrRelease(ctx context.Context, address string, amount *big.Int) (string, error)
}

// Refunder returns value to the depositor on the source network.
type Refunder interface {
	// Refund sends amount back to address.
	//
	// Returns:
	// - string: the external transaction identifier.
	// - error: an error if the refund could not be submitted.
	Refund(ctx context.Context, address string, amount *big.Int) (string, error)
}

// NetworkAdapter combines the capabilities every supported network implements.
type NetworkAdapter interface {
	DepositVerifier
	Minter
	Refunder
}

// HealthReporter is optionally implemented by adapters that track the
// reachability of their network.
type HealthReporter interface {
	Healthy() bool
}

// AdapterRegistry resolves adapters by network.
type AdapterRegistry interface {
	// Get returns the adapter registered for network, or an error wrapping
	// ErrAdapterUnavailable.
	Get(network Network) (NetworkAdapter, error)
	// Networks lists the networks with a registered adapter.
	Networks() []Network
}
