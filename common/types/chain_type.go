package types

// ChainType represents the chain family an adapter implementation serves.
type ChainType string

const (
	// EVM represents Ethereum Virtual Machine based chains (e.g. Ethereum, BSC).
	EVM ChainType = "EVM"
	// SOLANA represents Solana chain.
	SOLANA ChainType = "SOLANA"
	// MOCK represents the in-process simulated network used for local runs.
	MOCK ChainType = "MOCK"
	// UNKNOWN represents unknown or unsupported chain type in the system.
	UNKNOWN ChainType = "UNKNOWN"
)

// String converts ChainType to string representation
func (t ChainType) String() string {
	return string(t)
}

// ParseChainType converts string to ChainType representation.
func ParseChainType(s string) ChainType {
	switch ChainType(s) {
	case EVM:
		return EVM
	case SOLANA:
		return SOLANA
	case MOCK:
		return MOCK
	default:
		return UNKNOWN
	}
}
