package types

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BridgePairConfig describes one directed network pair.
//
// Fields:
// - SourceNetwork, DestinationNetwork: the ordered pair.
// - ConversionRate: multiplier applied to the source amount to obtain the destination amount.
// - BridgeFeePercent: percentage (0-100) of the source amount retained as fee.
// - MinTransactionAmount, MaxTransactionAmount: inclusive bounds in source minor units.
// - RequiredConfirmations: source confirmations needed before leaving INITIATED.
type BridgePairConfig struct {
	SourceNetwork         Network         `json:"sourceNetwork"`
	DestinationNetwork    Network         `json:"destinationNetwork"`
	ConversionRate        decimal.Decimal `json:"conversionRate"`
	BridgeFeePercent      decimal.Decimal `json:"bridgeFeePercent"`
	MinTransactionAmount  *big.Int        `json:"minTransactionAmount"`
	MaxTransactionAmount  *big.Int        `json:"maxTransactionAmount"`
	RequiredConfirmations uint64          `json:"requiredConfirmations"`
}

// Direction returns the direction served by the pair.
func (c BridgePairConfig) Direction() Direction {
	return NewDirection(c.SourceNetwork, c.DestinationNetwork)
}

// InRange reports whether amount lies within the inclusive bounds of the pair.
func (c BridgePairConfig) InRange(amount *big.Int) bool {
	if amount == nil || c.MinTransactionAmount == nil || c.MaxTransactionAmount == nil {
		return false
	}
	return amount.Cmp(c.MinTransactionAmount) >= 0 && amount.Cmp(c.MaxTransactionAmount) <= 0
}

// Clone returns a deep copy of the config.
func (c BridgePairConfig) Clone() BridgePairConfig {
	out := c
	out.MinTransactionAmount = cloneInt(c.MinTransactionAmount)
	out.MaxTransactionAmount = cloneInt(c.MaxTransactionAmount)
	return out
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
