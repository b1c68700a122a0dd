package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// tokenBalance returns the bridged token balance held by address.
//
// Parameters:
// - ctx: the context for managing the request
// - address: the address to check balance for
//
// Returns:
// - *big.Int: the token balance
// - error: an error if the balance check fails
func (e *evm) tokenBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	data, err := tokenABI.Pack("balanceOf", address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack balanceOf data")
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{
		To:   &e.token,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call balanceOf")
	}

	if len(result) == 0 {
		return nil, errors.New("empty result from balanceOf call")
	}

	return new(big.Int).SetBytes(result), nil
}
