package solana

import (
	"context"
	"math/big"

	"github.com/ClipFinance/bridge-engine/chains/solana/utils"
	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	releaseMemo = "bridge:release"
	refundMemo  = "bridge:refund"
)

// MintOrRelease delivers amount of the bridged SPL token to the owner
// address, creating its associated token account when missing.
//
// Parameters:
// - ctx: the context for managing the request.
// - address: the recipient wallet.
// - amount: the amount in token minor units.
//
// Returns:
// - string: the transaction signature.
// - error: an error if the transaction could not be submitted.
func (s *solana) MintOrRelease(ctx context.Context, address string, amount *big.Int) (string, error) {
	return s.sendToken(ctx, address, amount, s.config.Mintable, releaseMemo)
}

// Refund transfers amount back to the depositor from the bridge wallet.
func (s *solana) Refund(ctx context.Context, address string, amount *big.Int) (string, error) {
	return s.sendToken(ctx, address, amount, false, refundMemo)
}

// parseWallet decodes a user supplied base58 wallet address.
func parseWallet(address string) (sol.PublicKey, error) {
	key, err := sol.PublicKeyFromBase58(address)
	if err != nil {
		return sol.PublicKey{}, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid address %q: %v", address, err)
	}
	return key, nil
}

func (s *solana) sendToken(ctx context.Context, address string, amount *big.Int, mint bool, memo string) (string, error) {
	owner, err := parseWallet(address)
	if err != nil {
		return "", err
	}
	if amount.Sign() <= 0 || !amount.IsUint64() {
		return "", errors.Wrapf(bridgeerrors.ErrInvalidRequest, "amount %s does not fit an SPL transfer", amount)
	}

	client, err := s.getClient()
	if err != nil {
		return "", err
	}
	signer, err := s.getSigner()
	if err != nil {
		return "", err
	}

	s.sendMutex.Lock()
	defer s.sendMutex.Unlock()

	instructions, err := s.tokenInstructions(ctx, client, signer.PublicKey(), owner, amount.Uint64(), mint)
	if err != nil {
		return "", err
	}
	instructions = append(instructions, utils.CreateMemoInstruction(memo))

	latest, err := client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", errors.Wrap(err, "failed to get latest blockhash")
	}
	blockhash := latest.Value.Blockhash

	instructions, err = s.withComputeBudget(ctx, client, signer, instructions, blockhash)
	if err != nil {
		return "", err
	}

	tx, err := utils.SignTransaction(signer, instructions, blockhash)
	if err != nil {
		return "", err
	}

	sig, err := client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"network": s.config.Network,
			"memo":    memo,
		}).WithError(err).Error("Failed to send transaction")
		return "", errors.Wrap(err, "failed to send transaction")
	}

	s.logger.WithFields(logrus.Fields{
		"network":   s.config.Network,
		"memo":      memo,
		"signature": sig.String(),
	}).Info("Transaction submitted")

	return sig.String(), nil
}

// tokenInstructions builds the ATA creation (when needed) and the transfer or
// mint instruction delivering amount to owner.
func (s *solana) tokenInstructions(
	ctx context.Context,
	client rpcClient,
	payer sol.PublicKey,
	owner sol.PublicKey,
	amount uint64,
	mint bool,
) ([]sol.Instruction, error) {
	instructions := make([]sol.Instruction, 0, 3)

	destATA, createIx, err := s.ensureATA(ctx, client, payer, owner)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check and create ATA instruction")
	}
	if createIx != nil {
		instructions = append(instructions, createIx)
	}

	if mint {
		ix, err := utils.CreateMintToInstruction(s.mint, destATA, payer, amount)
		if err != nil {
			return nil, err
		}
		return append(instructions, ix), nil
	}

	sourceATA, err := utils.GetAssociatedTokenAddress(s.mint, payer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get associated token address for signer")
	}
	if err := s.checkSufficientBalance(ctx, sourceATA, amount); err != nil {
		return nil, err
	}

	ix, err := utils.CreateTransferInstruction(sourceATA, destATA, payer, amount)
	if err != nil {
		return nil, err
	}
	return append(instructions, ix), nil
}

// ensureATA returns the associated token account of owner and, if it does
// not exist yet, the instruction creating it.
func (s *solana) ensureATA(
	ctx context.Context,
	client rpcClient,
	payer sol.PublicKey,
	owner sol.PublicKey,
) (sol.PublicKey, sol.Instruction, error) {
	addr, err := utils.GetAssociatedTokenAddress(s.mint, owner)
	if err != nil {
		return sol.PublicKey{}, nil, errors.Wrap(err, "failed to get associated token address")
	}

	acc, err := client.GetAccountInfo(ctx, addr)
	if err != nil && !errors.Is(err, rpc.ErrNotFound) {
		return sol.PublicKey{}, nil, errors.Wrap(err, "failed to get account info")
	}
	if acc != nil && acc.Value != nil {
		return addr, nil, nil
	}

	return addr, utils.CreateAssociatedTokenAccountInstruction(payer, addr, owner, s.mint), nil
}
