package utils

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

const (
	// splTransfer is the SPL Token program Transfer instruction index.
	splTransfer uint8 = 3
	// splMintTo is the SPL Token program MintTo instruction index.
	splMintTo uint8 = 7
)

// Simulator runs a transaction against the current bank without committing it.
type Simulator interface {
	SimulateTransaction(ctx context.Context, transaction *sol.Transaction) (*rpc.SimulateTransactionResponse, error)
}

// GetAssociatedTokenAddress returns the token account address for a given token and owner.
// This is a deterministic address that follows Solana's Associated Token Account Program conventions.
func GetAssociatedTokenAddress(tokenMint, owner sol.PublicKey) (sol.PublicKey, error) {
	seeds := [][]byte{
		owner.Bytes(),
		sol.TokenProgramID.Bytes(),
		tokenMint.Bytes(),
	}

	addr, _, err := sol.FindProgramAddress(seeds, sol.SPLAssociatedTokenAccountProgramID)
	return addr, err
}

// CreateAssociatedTokenAccountInstruction creates the instruction for ATA creation
func CreateAssociatedTokenAccountInstruction(
	payer sol.PublicKey,
	associatedToken sol.PublicKey,
	owner sol.PublicKey,
	mint sol.PublicKey,
) sol.Instruction {
	return sol.NewInstruction(
		sol.SPLAssociatedTokenAccountProgramID,
		sol.AccountMetaSlice{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: associatedToken, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: sol.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: sol.TokenProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: sol.SysVarRentPubkey, IsSigner: false, IsWritable: false},
		},
		[]byte{},
	)
}

// CreateMemoInstruction creates a memo instruction with the given message
func CreateMemoInstruction(message string) sol.Instruction {
	return sol.NewInstruction(
		sol.MemoProgramID,
		sol.AccountMetaSlice{},
		[]byte(message),
	)
}

// CreateTransferInstruction creates an SPL transfer of amount from the
// source token account to the destination token account.
func CreateTransferInstruction(
	source sol.PublicKey, // Source ATA account
	destination sol.PublicKey, // Destination ATA account
	owner sol.PublicKey, // Owner of the source ATA account
	amount uint64,
) (sol.Instruction, error) {
	data, err := encodeAmountInstruction(splTransfer, amount)
	if err != nil {
		return nil, err
	}

	return sol.NewInstruction(
		sol.TokenProgramID,
		sol.AccountMetaSlice{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		data,
	), nil
}

// CreateMintToInstruction creates an SPL MintTo of amount into destination,
// signed by the mint authority.
func CreateMintToInstruction(
	mint sol.PublicKey,
	destination sol.PublicKey,
	authority sol.PublicKey,
	amount uint64,
) (sol.Instruction, error) {
	data, err := encodeAmountInstruction(splMintTo, amount)
	if err != nil {
		return nil, err
	}

	return sol.NewInstruction(
		sol.TokenProgramID,
		sol.AccountMetaSlice{
			{PublicKey: mint, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: authority, IsSigner: true, IsWritable: false},
		},
		data,
	), nil
}

// encodeAmountInstruction lays out a one byte instruction index followed by
// a little-endian u64 amount.
func encodeAmountInstruction(index uint8, amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	if err := encoder.WriteUint8(index); err != nil {
		return nil, errors.Wrap(err, "failed to encode instruction index")
	}
	if err := encoder.WriteUint64(amount, bin.LE); err != nil {
		return nil, errors.Wrap(err, "failed to encode amount")
	}

	return buf.Bytes(), nil
}

// SignTransaction builds a transaction paid and signed by signer.
func SignTransaction(signer sol.PrivateKey, instructions []sol.Instruction, recentBlockHash sol.Hash) (*sol.Transaction, error) {
	tx, err := sol.NewTransaction(
		instructions,
		recentBlockHash,
		sol.TransactionPayer(signer.PublicKey()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transaction")
	}

	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if signer.PublicKey().Equals(key) {
			return &signer
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	return tx, nil
}

// SimulateTransaction simulates transaction to calculate required compute units
func SimulateTransaction(ctx context.Context, client Simulator, signer sol.PrivateKey, instructions []sol.Instruction, latestBlockHash sol.Hash) (uint64, error) {
	tx, err := SignTransaction(signer, instructions, latestBlockHash)
	if err != nil {
		return 0, err
	}

	sim, err := client.SimulateTransaction(ctx, tx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to simulate transaction")
	}

	if sim.Value == nil {
		return 0, errors.New("empty simulation result")
	}
	if sim.Value.Err != nil {
		return 0, fmt.Errorf("simulation failed: %v", sim.Value.Err)
	}
	if sim.Value.UnitsConsumed == nil {
		return 0, errors.New("simulation did not report compute units")
	}

	return *sim.Value.UnitsConsumed, nil
}

// LamportsToSol converts lamports to SOL for display.
func LamportsToSol(lamports uint64) float64 {
	return float64(lamports) / float64(sol.LAMPORTS_PER_SOL)
}
