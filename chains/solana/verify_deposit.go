package solana

import (
	"context"
	"math/big"

	"github.com/ClipFinance/bridge-engine/chains/solana/utils"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// VerifyDeposit scans the most recent signatures touching the vault token
// account for transactions that moved exactly amount from the depositor to
// the vault and reached confirmations confirmations. Finalized transactions
// satisfy any requirement.
//
// Parameters:
// - ctx: the context for managing the request.
// - address: the depositor wallet.
// - amount: the deposited amount in token minor units.
// - confirmations: the required confirmation count.
//
// Returns:
// - []string: the signatures of the matching deposits, oldest first.
// - error: an error if the cluster could not be queried, or one wrapping ErrInvalidRequest for a malformed address.
func (s *solana) VerifyDeposit(ctx context.Context, address string, amount *big.Int, confirmations uint64) ([]string, error) {
	depositor, err := parseWallet(address)
	if err != nil {
		return nil, err
	}

	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	vaultATA, err := utils.GetAssociatedTokenAddress(s.mint, s.vault)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive vault token account")
	}

	limit := int(s.config.DepositLookback)
	if limit <= 0 {
		limit = defaultSignatureLookback
	}
	if limit > maxSignatureLookback {
		limit = maxSignatureLookback
	}

	signatures, err := client.GetSignaturesForAddressWithOpts(ctx, vaultATA, &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get vault signatures")
	}

	maxVersion := uint64(0)
	var deposits []string
	// Signatures come newest first.
	for i := len(signatures) - 1; i >= 0; i-- {
		signature := signatures[i]
		if signature == nil || signature.Err != nil {
			continue
		}

		tx, err := client.GetTransaction(ctx, signature.Signature, &rpc.GetTransactionOpts{
			Encoding:                       sol.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to get transaction %s", signature.Signature)
		}
		if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
			continue
		}

		if !isDeposit(tx.Meta.PreTokenBalances, tx.Meta.PostTokenBalances, s.mint, depositor, s.vault, amount) {
			continue
		}

		confirmed, err := s.signatureConfirmed(ctx, client, signature.Signature, confirmations)
		if err != nil {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"network":   s.config.Network,
			"depositor": depositor.String(),
			"amount":    amount.String(),
			"signature": signature.Signature.String(),
			"confirmed": confirmed,
		}).Debug("Deposit found")

		if confirmed {
			deposits = append(deposits, signature.Signature.String())
		}
	}

	return deposits, nil
}

func (s *solana) signatureConfirmed(ctx context.Context, client rpcClient, signature sol.Signature, required uint64) (bool, error) {
	statuses, err := client.GetSignatureStatuses(ctx, true, signature)
	if err != nil {
		return false, errors.Wrapf(err, "failed to get status of %s", signature)
	}
	if statuses == nil || len(statuses.Value) == 0 {
		return false, nil
	}
	return statusSatisfies(statuses.Value[0], required), nil
}

// statusSatisfies reports whether a signature status has at least required
// confirmations. Rooted transactions report no confirmation count.
func statusSatisfies(status *rpc.SignatureStatusesResult, required uint64) bool {
	if status == nil || status.Err != nil {
		return false
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized || status.Confirmations == nil {
		return true
	}
	return *status.Confirmations >= required
}

// isDeposit reports whether the token balance changes of a transaction show
// amount of mint leaving the depositor and reaching the vault.
func isDeposit(pre, post []rpc.TokenBalance, mint, depositor, vault sol.PublicKey, amount *big.Int) bool {
	received := ownerDelta(pre, post, mint, vault)
	sent := ownerDelta(pre, post, mint, depositor)

	return received.Cmp(amount) == 0 && new(big.Int).Neg(sent).Cmp(amount) == 0
}

// ownerDelta sums post minus pre balances of mint across the token accounts
// owned by owner.
func ownerDelta(pre, post []rpc.TokenBalance, mint, owner sol.PublicKey) *big.Int {
	delta := new(big.Int)
	for _, b := range post {
		delta.Add(delta, balanceOf(b, mint, owner))
	}
	for _, b := range pre {
		delta.Sub(delta, balanceOf(b, mint, owner))
	}
	return delta
}

func balanceOf(b rpc.TokenBalance, mint, owner sol.PublicKey) *big.Int {
	if b.Owner == nil || !b.Owner.Equals(owner) || !b.Mint.Equals(mint) || b.UiTokenAmount == nil {
		return new(big.Int)
	}
	v, ok := new(big.Int).SetString(b.UiTokenAmount.Amount, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
