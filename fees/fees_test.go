package fees

import (
	"math/big"
	"testing"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(feePercent, rate string) types.BridgePairConfig {
	return types.BridgePairConfig{
		SourceNetwork:        types.NetworkEthereum,
		DestinationNetwork:   types.NetworkBSC,
		ConversionRate:       decimal.RequireFromString(rate),
		BridgeFeePercent:     decimal.RequireFromString(feePercent),
		MinTransactionAmount: big.NewInt(0),
		MaxTransactionAmount: big.NewInt(1_000_000),
	}
}

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  *big.Int
		percent string
		want    int64
	}{
		{name: "zero amount", amount: big.NewInt(0), percent: "0.1", want: 0},
		{name: "nil amount", amount: nil, percent: "0.1", want: 0},
		{name: "floors toward zero", amount: big.NewInt(999), percent: "0.1", want: 0},
		{name: "exact tenth of a percent", amount: big.NewInt(1000), percent: "0.1", want: 1},
		{name: "quarter percent", amount: big.NewInt(10_000), percent: "0.25", want: 25},
		{name: "percent quantized to three places", amount: big.NewInt(1_000_000), percent: "0.1234", want: 1230},
		{name: "quantization rounds half up", amount: big.NewInt(1_000_000), percent: "0.1235", want: 1240},
		{name: "full amount", amount: big.NewInt(12345), percent: "100", want: 12345},
		{name: "zero percent", amount: big.NewInt(12345), percent: "0", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFee(tt.amount, pair(tt.percent, "1"))
			assert.Equal(t, big.NewInt(tt.want).String(), got.String())
		})
	}
}

func TestComputeFeeHighValueIsExact(t *testing.T) {
	// 1,000,000 tokens with 18 decimals at 0.15%.
	amount, ok := new(big.Int).SetString("1000000000000000000000000", 10)
	require.True(t, ok)

	got := ComputeFee(amount, pair("0.15", "1"))
	assert.Equal(t, "1500000000000000000000", got.String())
}

func TestComputeFeeMonotonicAndBounded(t *testing.T) {
	for _, percent := range []string{"0", "0.001", "0.1", "0.15", "1.5", "33.333", "99.9995", "100"} {
		cfg := pair(percent, "1")
		prev := big.NewInt(0)
		for amount := int64(0); amount <= 5000; amount += 7 {
			a := big.NewInt(amount)
			fee := ComputeFee(a, cfg)

			require.GreaterOrEqual(t, fee.Cmp(prev), 0, "fee decreased at amount %d, percent %s", amount, percent)
			require.LessOrEqual(t, fee.Cmp(a), 0, "fee exceeds amount %d at percent %s", amount, percent)
			prev = fee
		}
	}
}

func TestDestinationAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		fee    int64
		rate   string
		want   string
	}{
		{name: "one to one", amount: 1000, fee: 1, rate: "1", want: "999"},
		{name: "scale down decimals", amount: 10_000_000_000, fee: 15_000_000, rate: "0.000000001", want: "9"},
		{name: "scale up decimals", amount: 10, fee: 1, rate: "1000000000", want: "9000000000"},
		{name: "fractional rate floors", amount: 3, fee: 0, rate: "0.5", want: "1"},
		{name: "fee swallows amount", amount: 5, fee: 5, rate: "2", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DestinationAmount(big.NewInt(tt.amount), big.NewInt(tt.fee), pair("0", tt.rate))
			assert.Equal(t, tt.want, got.String())
		})
	}

	assert.Equal(t, "0", DestinationAmount(nil, nil, pair("0", "1")).String())
}
