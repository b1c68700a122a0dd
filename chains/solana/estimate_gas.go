package solana

import (
	"context"

	"github.com/ClipFinance/bridge-engine/chains/solana/utils"
	sol "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// withComputeBudget prefixes instructions with a compute unit limit sized by
// simulation and the configured compute unit price.
//
// Parameters:
// - ctx: the context for managing the request.
// - client: the RPC client used for simulation.
// - signer: the fee payer.
// - instructions: the instructions to be executed.
// - blockhash: the recent blockhash.
//
// Returns:
// - []sol.Instruction: the instructions with the compute budget prepended.
// - error: an error if a compute budget instruction cannot be built.
func (s *solana) withComputeBudget(
	ctx context.Context,
	client rpcClient,
	signer sol.PrivateKey,
	instructions []sol.Instruction,
	blockhash sol.Hash,
) ([]sol.Instruction, error) {
	computeUnits, err := utils.SimulateTransaction(ctx, client, signer, instructions, blockhash)
	if err != nil {
		s.logger.WithField("network", s.config.Network).WithError(err).Warn("Failed to simulate transaction, using default compute units")
		computeUnits = defaultComputeUnits
	}
	computeUnits = computeUnits * computeUnitBuffer / 100

	priorityFee := s.config.ComputeUnitPrice
	s.logger.WithFields(logrus.Fields{
		"network":      s.config.Network,
		"computeUnits": computeUnits,
		"priorityFee":  priorityFee,
		"costInSol":    utils.LamportsToSol(computeUnits * priorityFee / 1_000_000),
	}).Debug("Compute budget estimated")

	limitIx, err := computebudget.NewSetComputeUnitLimitInstruction(uint32(computeUnits)).ValidateAndBuild()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create compute unit limit instruction")
	}

	out := []sol.Instruction{limitIx}

	if priorityFee > 0 {
		priceIx, err := computebudget.NewSetComputeUnitPriceInstruction(priorityFee).ValidateAndBuild()
		if err != nil {
			return nil, errors.Wrap(err, "failed to create priority fee instruction")
		}
		out = append(out, priceIx)
	}

	return append(out, instructions...), nil
}
