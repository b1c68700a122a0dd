package bridge

import (
	"context"
	"strings"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/fees"
	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	adapterOpVerify = "verify_deposit"
	adapterOpMint   = "mint_or_release"
	adapterOpRefund = "refund"
)

// revertible lists the statuses a revert may start from.
var revertible = []types.BridgeStatus{
	types.StatusInitiated,
	types.StatusConfirmedSource,
	types.StatusMinting,
	types.StatusFailed,
}

func allowed(status types.BridgeStatus, from []types.BridgeStatus) bool {
	for _, s := range from {
		if s == status {
			return true
		}
	}
	return false
}

func invalidState(tx *types.BridgeTransaction, op string) error {
	return errors.Wrapf(bridgeerrors.ErrInvalidState, "cannot %s transaction %d in status %s", op, tx.ID, tx.Status)
}

// fixed returns a metadata builder that ignores the current record.
func fixed(m types.Metadata) func(*types.BridgeTransaction) types.Metadata {
	return func(*types.BridgeTransaction) types.Metadata { return m }
}

// apply sets status, merges metadata and stamps completedAt the first time a
// terminal status is reached.
func (e *Engine) apply(tx *types.BridgeTransaction, status types.BridgeStatus, metadata types.Metadata) {
	now := e.clock.Now()
	tx.Metadata = tx.Metadata.Merge(metadata)
	tx.Status = status
	tx.UpdatedAt = now
	if status.IsTerminal() && tx.CompletedAt == nil {
		completedAt := now
		tx.CompletedAt = &completedAt
	}
}

// transition moves a transaction to status inside a single store update. The
// current status is checked against from in the same update, so concurrent
// callers cannot both pass it.
func (e *Engine) transition(
	ctx context.Context,
	id int64,
	op string,
	to types.BridgeStatus,
	metadata func(current *types.BridgeTransaction) types.Metadata,
	from ...types.BridgeStatus,
) (*types.BridgeTransaction, error) {
	var previous types.BridgeStatus
	updated, err := e.store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		if !allowed(tx.Status, from) {
			return invalidState(tx, op)
		}
		previous = tx.Status
		e.apply(tx, to, metadata(tx))
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordTransition(updated, previous)
	return updated, nil
}

func (e *Engine) recordTransition(tx *types.BridgeTransaction, from types.BridgeStatus) {
	metrics.StatusTransitions.WithLabelValues(tx.Status.String()).Inc()
	e.logger.WithFields(logrus.Fields{
		"id":   tx.ID,
		"from": from,
		"to":   tx.Status,
	}).Info("Bridge transaction status changed")
}

// UpdateBridgeTransactionStatus sets status and merges metadata without
// checking the transition. completedAt is stamped only the first time a
// terminal status is written.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
// - status: the new status.
// - metadata: entries merged into the existing metadata, may be nil.
//
// Returns:
// - *types.BridgeTransaction: the updated transaction.
// - error: ErrInvalidRequest for unknown statuses, ErrTransactionNotFound, or a store error.
func (e *Engine) UpdateBridgeTransactionStatus(ctx context.Context, id int64, status types.BridgeStatus, metadata types.Metadata) (*types.BridgeTransaction, error) {
	if !status.Valid() {
		return nil, e.reject("update_status", "invalid_request",
			errors.Wrapf(bridgeerrors.ErrInvalidRequest, "unknown status %q", status))
	}

	var previous types.BridgeStatus
	updated, err := e.store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		previous = tx.Status
		e.apply(tx, status, metadata)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.recordTransition(updated, previous)
	return updated, nil
}

// VerifySourceTransaction asks the source adapter whether a deposit reached
// the pair's required confirmations. Deposits already claimed by another
// transaction do not count. It does not change the transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
//
// Returns:
// - bool: true if an unclaimed deposit is sufficiently confirmed.
// - error: ErrTransactionNotFound, ErrAdapterUnavailable, or an AdapterError.
func (e *Engine) VerifySourceTransaction(ctx context.Context, id int64) (bool, error) {
	tx, err := e.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	deposits, err := e.unclaimedDeposits(ctx, tx)
	if err != nil {
		return false, err
	}
	return len(deposits) > 0, nil
}

// unclaimedDeposits returns the sufficiently confirmed deposits matching tx
// that no other transaction has claimed, oldest first.
func (e *Engine) unclaimedDeposits(ctx context.Context, tx *types.BridgeTransaction) ([]string, error) {
	pair, err := e.pairs.GetConfig(tx.SourceNetwork, tx.DestinationNetwork)
	if err != nil {
		return nil, err
	}

	adapter, err := e.adapterFor(tx.SourceNetwork)
	if err != nil {
		return nil, err
	}

	logger := e.logger.WithFields(logrus.Fields{
		"id":      tx.ID,
		"network": tx.SourceNetwork,
	})

	res := e.callAdapter(ctx, tx.SourceNetwork, adapterOpVerify, func(ctx context.Context) adapterResult {
		deposits, err := adapter.VerifyDeposit(ctx, tx.SourceAddress, tx.Amount, pair.RequiredConfirmations)
		return adapterResult{deposits: deposits, err: err}
	})
	if res.err != nil {
		logger.WithError(res.err).Warn("Deposit verification failed")
		return nil, res.err
	}

	unclaimed := make([]string, 0, len(res.deposits))
	for _, deposit := range res.deposits {
		owner, err := e.store.GetByDeposit(ctx, tx.SourceNetwork, deposit)
		switch {
		case errors.Is(err, bridgeerrors.ErrTransactionNotFound):
			unclaimed = append(unclaimed, deposit)
		case err != nil:
			return nil, err
		case owner.ID == tx.ID:
			unclaimed = append(unclaimed, deposit)
		}
	}

	if len(res.deposits) > 0 && len(unclaimed) == 0 {
		logger.WithField("deposits", res.deposits).Warn("Every matching deposit backs another transaction")
	}
	logger.WithFields(logrus.Fields{
		"confirmations": pair.RequiredConfirmations,
		"found":         len(res.deposits),
		"unclaimed":     len(unclaimed),
	}).Debug("Deposit verified")

	return unclaimed, nil
}

// ConfirmSourceTransaction verifies the deposit and, when one is confirmed,
// moves the transaction from INITIATED to CONFIRMED_SOURCE. The deposit is
// recorded under source_deposit_tx and the store refuses to let a second
// transaction claim it, so one deposit backs at most one mint.
//
// Returns:
// - *types.BridgeTransaction: the transaction after the call.
// - bool: true if a deposit was claimed and the transition written.
// - error: ErrInvalidState if the transaction is not INITIATED, or any verification error.
func (e *Engine) ConfirmSourceTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, bool, error) {
	tx, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if tx.Status != types.StatusInitiated {
		return nil, false, invalidState(tx, "confirm")
	}

	deposits, err := e.unclaimedDeposits(ctx, tx)
	if err != nil {
		return nil, false, err
	}

	for _, deposit := range deposits {
		updated, err := e.transition(ctx, id, "confirm", types.StatusConfirmedSource, fixed(types.Metadata{
			types.MetaSourceDepositTx: deposit,
		}), types.StatusInitiated)
		if errors.Is(err, bridgeerrors.ErrDepositClaimed) {
			e.logger.WithFields(logrus.Fields{
				"id":      id,
				"deposit": deposit,
			}).Debug("Deposit claimed concurrently, trying the next one")
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}

	return tx, false, nil
}

// ExpireBridgeTransaction fails an INITIATED transaction whose deposit never
// confirmed, recording reason under expired_reason.
func (e *Engine) ExpireBridgeTransaction(ctx context.Context, id int64, reason string) (*types.BridgeTransaction, error) {
	return e.transition(ctx, id, "expire", types.StatusFailed, fixed(types.Metadata{
		types.MetaExpiredReason: reason,
	}), types.StatusInitiated)
}

// CompleteBridgeTransaction mints or releases the destination amount for a
// CONFIRMED_SOURCE transaction. An adapter failure is recorded and the FAILED
// transaction is returned without an error.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
//
// Returns:
// - *types.BridgeTransaction: the COMPLETED or FAILED transaction.
// - error: ErrTransactionNotFound, ErrInvalidState, ErrAdapterUnavailable, or a store error.
func (e *Engine) CompleteBridgeTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, error) {
	tx, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status != types.StatusConfirmedSource {
		return nil, e.reject("complete", "invalid_state", invalidState(tx, "complete"))
	}

	pair, err := e.pairs.GetConfig(tx.SourceNetwork, tx.DestinationNetwork)
	if err != nil {
		return nil, err
	}
	destinationAmount := fees.DestinationAmount(tx.Amount, tx.Fee, pair)

	adapter, err := e.adapterFor(tx.DestinationNetwork)
	if err != nil {
		return nil, err
	}

	minting, err := e.transition(ctx, id, "complete", types.StatusMinting, fixed(types.Metadata{
		types.MetaDestinationAmount: destinationAmount.String(),
	}), types.StatusConfirmedSource)
	if err != nil {
		if errors.Is(err, bridgeerrors.ErrInvalidState) {
			metrics.RejectedRequests.WithLabelValues("complete", "invalid_state").Inc()
		}
		return nil, err
	}

	res := e.callAdapter(ctx, minting.DestinationNetwork, adapterOpMint, func(ctx context.Context) adapterResult {
		txID, err := adapter.MintOrRelease(ctx, minting.DestinationAddress, destinationAmount)
		return adapterResult{txID: txID, err: err}
	})

	// The outcome is written even if the caller has gone away.
	outcomeCtx := context.WithoutCancel(ctx)
	logger := e.logger.WithFields(logrus.Fields{
		"id":      id,
		"network": minting.DestinationNetwork,
		"amount":  destinationAmount.String(),
	})

	if res.err != nil {
		logger.WithError(res.err).Error("Destination mint failed")
		return e.transition(outcomeCtx, id, "fail", types.StatusFailed, fixed(types.Metadata{
			types.MetaError: res.err.Error(),
		}), types.StatusMinting)
	}

	logger.WithField("txId", res.txID).Info("Destination mint submitted")
	return e.transition(outcomeCtx, id, "complete", types.StatusCompleted, fixed(types.Metadata{
		types.MetaDestinationTxID: res.txID,
	}), types.StatusMinting)
}

// RevertBridgeTransaction refunds the full amount to the source address.
// It is allowed from INITIATED, CONFIRMED_SOURCE, MINTING and FAILED. A failed
// refund leaves the transaction FAILED with revert_error set and is not
// retried; error is only written if no earlier failure recorded one.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
// - reason: why the transaction is reverted, recorded under revert_reason.
//
// Returns:
// - *types.BridgeTransaction: the REVERTED or FAILED transaction.
// - error: ErrInvalidRequest, ErrTransactionNotFound, ErrInvalidState, ErrAdapterUnavailable, or a store error.
func (e *Engine) RevertBridgeTransaction(ctx context.Context, id int64, reason string) (*types.BridgeTransaction, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, e.reject("revert", "invalid_request", errors.Wrap(bridgeerrors.ErrInvalidRequest, "reason is required"))
	}

	tx, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !allowed(tx.Status, revertible) {
		return nil, e.reject("revert", "invalid_state", invalidState(tx, "revert"))
	}

	adapter, err := e.adapterFor(tx.SourceNetwork)
	if err != nil {
		return nil, err
	}

	reverting, err := e.transition(ctx, id, "revert", types.StatusReverting, func(current *types.BridgeTransaction) types.Metadata {
		return types.Metadata{
			types.MetaRevertReason: reason,
			types.MetaRevertedFrom: current.Status.String(),
		}
	}, revertible...)
	if err != nil {
		if errors.Is(err, bridgeerrors.ErrInvalidState) {
			metrics.RejectedRequests.WithLabelValues("revert", "invalid_state").Inc()
		}
		return nil, err
	}

	res := e.callAdapter(ctx, reverting.SourceNetwork, adapterOpRefund, func(ctx context.Context) adapterResult {
		txID, err := adapter.Refund(ctx, reverting.SourceAddress, reverting.Amount)
		return adapterResult{txID: txID, err: err}
	})

	outcomeCtx := context.WithoutCancel(ctx)
	logger := e.logger.WithFields(logrus.Fields{
		"id":      id,
		"network": reverting.SourceNetwork,
		"amount":  reverting.Amount.String(),
		"reason":  reason,
	})

	if res.err != nil {
		logger.WithError(res.err).Error("Refund failed, operator action required")
		revertErr := "Failed to revert: " + res.err.Error()
		return e.transition(outcomeCtx, id, "fail", types.StatusFailed, func(current *types.BridgeTransaction) types.Metadata {
			// An earlier mint failure stays under error.
			m := types.Metadata{types.MetaRevertError: revertErr}
			if current.Metadata[types.MetaError] == "" {
				m[types.MetaError] = revertErr
			}
			return m
		}, types.StatusReverting)
	}

	logger.WithField("txId", res.txID).Info("Refund submitted")
	return e.transition(outcomeCtx, id, "revert", types.StatusReverted, fixed(types.Metadata{
		types.MetaRefundTxID: res.txID,
	}), types.StatusReverting)
}
