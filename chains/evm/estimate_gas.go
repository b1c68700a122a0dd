package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// GasPriceData represents the gas price data for EIP-1559 transactions.
type GasPriceData struct {
	MaxFeePerGas         *big.Int // The maximum fee per gas.
	MaxPriorityFeePerGas *big.Int // The maximum priority fee per gas.
}

// estimateGas estimates the gas required for a call from the bridge wallet.
//
// Parameters:
// - ctx: the context for managing the request.
// - to: the called contract.
// - data: the input data for the transaction.
//
// Returns:
// - uint64: the gas limit with a 10% buffer.
// - error: an error if the client or signer is not initialized or if the gas estimation fails.
func (e *evm) estimateGas(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}
	s, err := e.getSigner()
	if err != nil {
		return 0, err
	}

	estimated, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: s.Address(),
		To:   &to,
		Data: data,
	})
	if err != nil {
		return 0, err
	}

	return estimated + estimated/10, nil
}

// getEIP1559GasPrice retrieves the gas price data for EIP-1559 transactions.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - *GasPriceData: the gas price data for EIP-1559 transactions.
// - error: an error if the client is not initialized or if there is an issue retrieving the latest header.
func (e *evm) getEIP1559GasPrice(ctx context.Context) (*GasPriceData, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	suggestedTip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		e.logger.WithField("network", e.config.Network).WithError(err).Warn("Failed to get suggested gas tip")
		suggestedTip = nil
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get header by number")
	}

	if header.BaseFee == nil {
		return nil, errors.New("base fee is nil")
	}

	return feeCaps(header.BaseFee, suggestedTip), nil
}

// feeCaps derives the EIP-1559 caps: a 30% buffer over the base fee plus
// the tip, with the tip floored at 1 wei.
func feeCaps(baseFee, tip *big.Int) *GasPriceData {
	if tip == nil || tip.Sign() <= 0 {
		tip = big.NewInt(1)
	}

	maxFee := new(big.Int).Mul(baseFee, big.NewInt(130))
	maxFee.Div(maxFee, big.NewInt(100))
	maxFee.Add(maxFee, tip)

	return &GasPriceData{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
	}
}

// legacyGasPrice returns the suggested gas price raised by half.
func (e *evm) legacyGasPrice(ctx context.Context) (*big.Int, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get gas price")
	}

	gasPrice = new(big.Int).Mul(gasPrice, big.NewInt(150))
	return gasPrice.Div(gasPrice, big.NewInt(100)), nil
}
