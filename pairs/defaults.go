package pairs

import (
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/shopspring/decimal"
)

const (
	evmDecimals    = 18
	solanaDecimals = 9
)

// DefaultTable returns the built-in pair table. The bridged token uses 18
// decimals on EVM networks and 9 on Solana; the conversion rate rescales
// between them. BSC and Solana are deliberately not paired.
func DefaultTable() []types.BridgePairConfig {
	return []types.BridgePairConfig{
		{
			SourceNetwork:         types.NetworkEthereum,
			DestinationNetwork:    types.NetworkBSC,
			ConversionRate:        decimal.NewFromInt(1),
			BridgeFeePercent:      decimal.RequireFromString("0.1"),
			MinTransactionAmount:  tokens(10, evmDecimals),
			MaxTransactionAmount:  tokens(1_000_000, evmDecimals),
			RequiredConfirmations: 12,
		},
		{
			SourceNetwork:         types.NetworkBSC,
			DestinationNetwork:    types.NetworkEthereum,
			ConversionRate:        decimal.NewFromInt(1),
			BridgeFeePercent:      decimal.RequireFromString("0.25"),
			MinTransactionAmount:  tokens(10, evmDecimals),
			MaxTransactionAmount:  tokens(1_000_000, evmDecimals),
			RequiredConfirmations: 15,
		},
		{
			SourceNetwork:         types.NetworkEthereum,
			DestinationNetwork:    types.NetworkSolana,
			ConversionRate:        decimal.New(1, -(evmDecimals - solanaDecimals)),
			BridgeFeePercent:      decimal.RequireFromString("0.15"),
			MinTransactionAmount:  tokens(10, evmDecimals),
			MaxTransactionAmount:  tokens(500_000, evmDecimals),
			RequiredConfirmations: 12,
		},
		{
			SourceNetwork:         types.NetworkSolana,
			DestinationNetwork:    types.NetworkEthereum,
			ConversionRate:        decimal.New(1, evmDecimals-solanaDecimals),
			BridgeFeePercent:      decimal.RequireFromString("0.15"),
			MinTransactionAmount:  tokens(10, solanaDecimals),
			MaxTransactionAmount:  tokens(500_000, solanaDecimals),
			RequiredConfirmations: 32,
		},
	}
}
