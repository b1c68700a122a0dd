package evm

import (
	"context"
	"math/big"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MintOrRelease delivers amount of the bridged token to address. Mintable
// tokens are minted, otherwise the amount is transferred from the bridge
// wallet after a liquidity check.
//
// Parameters:
// - ctx: the context for managing the request.
// - address: the recipient address.
// - amount: the amount in token minor units.
//
// Returns:
// - string: the transaction hash.
// - error: an error if the transaction could not be submitted.
func (e *evm) MintOrRelease(ctx context.Context, address string, amount *big.Int) (string, error) {
	to, err := parseAddress(address)
	if err != nil {
		return "", err
	}

	if e.config.Mintable {
		data, err := tokenABI.Pack("mint", to, amount)
		if err != nil {
			return "", errors.Wrap(err, "failed to pack mint data")
		}
		return e.sendTokenCall(ctx, "mint", data)
	}

	s, err := e.getSigner()
	if err != nil {
		return "", err
	}
	balance, err := e.tokenBalance(ctx, s.Address())
	if err != nil {
		return "", err
	}
	if balance.Cmp(amount) < 0 {
		return "", errors.Errorf("insufficient liquidity: balance %s, required %s", balance, amount)
	}

	return e.transfer(ctx, to, amount)
}

// Refund transfers amount back to address from the bridge wallet.
func (e *evm) Refund(ctx context.Context, address string, amount *big.Int) (string, error) {
	to, err := parseAddress(address)
	if err != nil {
		return "", err
	}
	return e.transfer(ctx, to, amount)
}

func (e *evm) transfer(ctx context.Context, to common.Address, amount *big.Int) (string, error) {
	data, err := tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack transfer data")
	}
	return e.sendTokenCall(ctx, "transfer", data)
}

// sendTokenCall signs and submits a call to the token contract. Nonce
// allocation and submission are serialized per adapter.
//
// Returns:
// - string: the transaction hash.
// - error: an error if preparation, signing or sending fails.
func (e *evm) sendTokenCall(ctx context.Context, method string, data []byte) (string, error) {
	e.sendMutex.Lock()
	defer e.sendMutex.Unlock()

	client, err := e.getClient()
	if err != nil {
		return "", err
	}
	s, err := e.getSigner()
	if err != nil {
		return "", err
	}

	nonce, err := client.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return "", errors.Wrap(err, "failed to get nonce")
	}

	tx, err := e.prepareTransaction(ctx, nonce, e.token, data)
	if err != nil {
		return "", err
	}

	signedTx, err := s.SignTx(tx, e.chainID)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		e.logger.WithFields(logrus.Fields{
			"network": e.config.Network,
			"method":  method,
			"nonce":   nonce,
		}).WithError(err).Error("Failed to send transaction")
		return "", errors.Wrap(err, "failed to send transaction")
	}

	e.logger.WithFields(logrus.Fields{
		"network": e.config.Network,
		"method":  method,
		"nonce":   nonce,
		"txHash":  signedTx.Hash().Hex(),
	}).Info("Transaction submitted")

	return signedTx.Hash().Hex(), nil
}

// prepareTransaction builds an unsigned transaction of the configured type.
//
// Parameters:
// - ctx: the context for managing the request.
// - nonce: the nonce for the transaction.
// - to: the called contract.
// - data: the input data for the transaction.
//
// Returns:
// - *ethtypes.Transaction: the prepared transaction.
// - error: an error if the gas estimation or gas price retrieval fails.
func (e *evm) prepareTransaction(ctx context.Context, nonce uint64, to common.Address, data []byte) (*ethtypes.Transaction, error) {
	gasLimit, err := e.estimateGas(ctx, to, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate gas")
	}

	if e.config.TxType == TxTypeEIP1559 {
		gasPriceData, err := e.getEIP1559GasPrice(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get EIP-1559 gas price")
		}

		return ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   e.chainID,
			Nonce:     nonce,
			GasFeeCap: gasPriceData.MaxFeePerGas,
			GasTipCap: gasPriceData.MaxPriorityFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Value:     big.NewInt(0),
			Data:      data,
		}), nil
	}

	gasPrice, err := e.legacyGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	}), nil
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid address %q", address)
	}
	return common.HexToAddress(address), nil
}
