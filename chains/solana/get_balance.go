package solana

import (
	"context"
	"math/big"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// tokenAccountBalance gets the SPL token balance of a token account.
//
// Parameters:
// - ctx: the context for managing the request
// - account: the token account
//
// Returns:
// - *big.Int: the token balance in minor units
// - error: an error if the balance check fails
func (s *solana) tokenAccountBalance(ctx context.Context, account sol.PublicKey) (*big.Int, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	balance, err := client.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get token balance")
	}
	if balance == nil || balance.Value == nil {
		return nil, errors.New("empty token balance result")
	}

	amount, ok := new(big.Int).SetString(balance.Value.Amount, 10)
	if !ok {
		return nil, errors.Errorf("failed to parse token balance %q", balance.Value.Amount)
	}

	return amount, nil
}

// checkSufficientBalance checks if the token account holds at least amount.
func (s *solana) checkSufficientBalance(ctx context.Context, account sol.PublicKey, amount uint64) error {
	balance, err := s.tokenAccountBalance(ctx, account)
	if err != nil {
		return errors.Wrap(err, "failed to get balance")
	}

	if balance.Cmp(new(big.Int).SetUint64(amount)) < 0 {
		return errors.Errorf("insufficient liquidity: balance %s, required %d", balance, amount)
	}

	return nil
}
