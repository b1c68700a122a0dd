package pairs

import (
	"math/big"
	"testing"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableBuilds(t *testing.T) {
	r, err := NewRegistry(DefaultTable())
	require.NoError(t, err)
	require.Len(t, r.Pairs(), 4)

	cfg, err := r.GetConfig(types.NetworkEthereum, types.NetworkSolana)
	require.NoError(t, err)
	assert.Equal(t, "0.000000001", cfg.ConversionRate.String())
	assert.Equal(t, "10000000000000000000", cfg.MinTransactionAmount.String())
	assert.Equal(t, uint64(12), cfg.RequiredConfirmations)

	cfg, err = r.Resolve("SOLANA_TO_ETHEREUM")
	require.NoError(t, err)
	assert.Equal(t, "1000000000", cfg.ConversionRate.String())
	assert.Equal(t, "10000000000", cfg.MinTransactionAmount.String())
}

func TestUnconfiguredPairsAreUnsupported(t *testing.T) {
	r, err := NewRegistry(DefaultTable())
	require.NoError(t, err)

	_, err = r.GetConfig(types.NetworkBSC, types.NetworkSolana)
	assert.True(t, errors.Is(err, bridgeerrors.ErrUnsupportedPair))

	for _, d := range []types.Direction{"SOLANA_TO_BSC", "ETHEREUM_TO_ETHEREUM", "TRON_TO_BSC", ""} {
		_, err = r.Resolve(d)
		assert.True(t, errors.Is(err, bridgeerrors.ErrUnsupportedPair), d)
	}
}

func TestReturnedConfigsAreCopies(t *testing.T) {
	r, err := NewRegistry(DefaultTable())
	require.NoError(t, err)

	cfg, err := r.GetConfig(types.NetworkEthereum, types.NetworkBSC)
	require.NoError(t, err)
	cfg.MinTransactionAmount.SetInt64(1)

	again, err := r.GetConfig(types.NetworkEthereum, types.NetworkBSC)
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000000", again.MinTransactionAmount.String())
}

func TestNewRegistryRejectsInvalidRows(t *testing.T) {
	valid := func() types.BridgePairConfig {
		return types.BridgePairConfig{
			SourceNetwork:         types.NetworkEthereum,
			DestinationNetwork:    types.NetworkBSC,
			ConversionRate:        decimal.NewFromInt(1),
			BridgeFeePercent:      decimal.RequireFromString("0.5"),
			MinTransactionAmount:  big.NewInt(1),
			MaxTransactionAmount:  big.NewInt(100),
			RequiredConfirmations: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*types.BridgePairConfig)
	}{
		{name: "unknown source", mutate: func(c *types.BridgePairConfig) { c.SourceNetwork = "TRON" }},
		{name: "same network", mutate: func(c *types.BridgePairConfig) { c.DestinationNetwork = types.NetworkEthereum }},
		{name: "zero rate", mutate: func(c *types.BridgePairConfig) { c.ConversionRate = decimal.Zero }},
		{name: "fee above 100", mutate: func(c *types.BridgePairConfig) { c.BridgeFeePercent = decimal.NewFromInt(101) }},
		{name: "negative fee", mutate: func(c *types.BridgePairConfig) { c.BridgeFeePercent = decimal.NewFromInt(-1) }},
		{name: "missing max", mutate: func(c *types.BridgePairConfig) { c.MaxTransactionAmount = nil }},
		{name: "min above max", mutate: func(c *types.BridgePairConfig) { c.MinTransactionAmount = big.NewInt(101) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := NewRegistry([]types.BridgePairConfig{cfg})
			assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidConfig), err)
		})
	}

	_, err := NewRegistry([]types.BridgePairConfig{valid(), valid()})
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidConfig))
}
