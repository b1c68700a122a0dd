// Package fees computes bridge fees and destination amounts with integer arithmetic.
package fees

import (
	"math/big"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/shopspring/decimal"
)

const (
	// percentScale quantizes the fee percentage to three decimal places.
	percentScale = 1000
	// feeDivisor undoes percentScale and the percent itself (1000 * 100).
	feeDivisor = 100000
)

var (
	percentScaleDec = decimal.NewFromInt(percentScale)
	feeDivisorInt   = big.NewInt(feeDivisor)
)

// ComputeFee returns floor(amount * round(feePercent*1000) / 100000).
// A nil or non-positive amount yields zero; callers reject negative amounts first.
//
// Parameters:
// - amount: the source amount in minor units.
// - config: the pair whose fee percentage applies.
//
// Returns:
// - *big.Int: the fee in source minor units.
func ComputeFee(amount *big.Int, config types.BridgePairConfig) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}

	quantized := QuantizedPercent(config.BridgeFeePercent)
	if quantized.Sign() <= 0 {
		return new(big.Int)
	}

	fee := new(big.Int).Mul(amount, quantized)
	return fee.Quo(fee, feeDivisorInt)
}

// QuantizedPercent returns round(percent * 1000), half away from zero.
func QuantizedPercent(percent decimal.Decimal) *big.Int {
	return percent.Mul(percentScaleDec).Round(0).BigInt()
}

// DestinationAmount returns floor((amount - fee) * conversionRate), never negative.
//
// Parameters:
// - amount: the source amount in minor units.
// - fee: the fee fixed at creation.
// - config: the pair whose conversion rate applies.
//
// Returns:
// - *big.Int: the amount to deliver in destination minor units.
func DestinationAmount(amount, fee *big.Int, config types.BridgePairConfig) *big.Int {
	if amount == nil {
		return new(big.Int)
	}

	net := new(big.Int).Set(amount)
	if fee != nil {
		net.Sub(net, fee)
	}
	if net.Sign() <= 0 {
		return new(big.Int)
	}

	out := decimal.NewFromBigInt(net, 0).Mul(config.ConversionRate).Floor().BigInt()
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
