package bridge

import (
	"context"
	"math/big"
	"strings"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/fees"
	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// CreateRequest carries the caller's input for a new bridge transaction.
type CreateRequest struct {
	UserID             string
	SourceAddress      string
	DestinationAddress string
	Amount             *big.Int
	Direction          types.Direction
}

func (r CreateRequest) validate() error {
	switch {
	case strings.TrimSpace(r.UserID) == "":
		return errors.Wrap(bridgeerrors.ErrInvalidRequest, "userId is required")
	case strings.TrimSpace(r.SourceAddress) == "":
		return errors.Wrap(bridgeerrors.ErrInvalidRequest, "sourceAddress is required")
	case strings.TrimSpace(r.DestinationAddress) == "":
		return errors.Wrap(bridgeerrors.ErrInvalidRequest, "destinationAddress is required")
	case !validAmount(r.Amount):
		return errors.Wrap(bridgeerrors.ErrInvalidRequest, "amount must be a non-negative integer")
	}
	return nil
}

// CreateBridgeTransaction validates the request, prices it and stores a new
// transaction in INITIATED. Nothing is stored when any check fails.
//
// Parameters:
// - ctx: the context for managing the request.
// - req: the transfer request.
//
// Returns:
// - *types.BridgeTransaction: the stored transaction.
// - error: ErrInvalidRequest, ErrUnsupportedPair, ErrAmountOutOfRange, or a store error.
func (e *Engine) CreateBridgeTransaction(ctx context.Context, req CreateRequest) (*types.BridgeTransaction, error) {
	if err := req.validate(); err != nil {
		return nil, e.reject("create", "invalid_request", err)
	}

	pair, err := e.pairs.Resolve(req.Direction)
	if err != nil {
		return nil, e.reject("create", "unsupported_pair", err)
	}

	if !pair.InRange(req.Amount) {
		return nil, e.reject("create", "amount_out_of_range", errors.Wrapf(bridgeerrors.ErrAmountOutOfRange,
			"amount %s outside [%s, %s]", req.Amount, pair.MinTransactionAmount, pair.MaxTransactionAmount))
	}

	now := e.clock.Now()
	tx := &types.BridgeTransaction{
		UserID:             req.UserID,
		SourceNetwork:      pair.SourceNetwork,
		DestinationNetwork: pair.DestinationNetwork,
		Direction:          pair.Direction(),
		SourceAddress:      req.SourceAddress,
		DestinationAddress: req.DestinationAddress,
		Amount:             new(big.Int).Set(req.Amount),
		Fee:                fees.ComputeFee(req.Amount, pair),
		Status:             types.StatusInitiated,
		CreatedAt:          now,
		UpdatedAt:          now,
		Metadata:           types.Metadata{},
	}

	if tx.SourceTxHash, err = e.hasher.Hash(tx); err != nil {
		return nil, err
	}

	if _, err := e.store.Insert(ctx, tx); err != nil {
		return nil, errors.Wrap(err, "failed to store bridge transaction")
	}

	metrics.TransactionsCreated.WithLabelValues(tx.Direction.String()).Inc()
	metrics.StatusTransitions.WithLabelValues(tx.Status.String()).Inc()

	e.logger.WithFields(logrus.Fields{
		"id":        tx.ID,
		"userId":    tx.UserID,
		"direction": tx.Direction,
		"amount":    tx.Amount.String(),
		"fee":       tx.Fee.String(),
		"hash":      tx.SourceTxHash,
	}).Info("Bridge transaction created")

	return tx, nil
}

// GetBridgeTransaction returns the transaction or an error wrapping ErrTransactionNotFound.
func (e *Engine) GetBridgeTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, error) {
	return e.store.GetByID(ctx, id)
}

// GetUserBridgeTransactions returns the user's transactions, newest first.
func (e *Engine) GetUserBridgeTransactions(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	return e.store.ListByUser(ctx, userID)
}

// GetBridgeTransactionHistory returns the status changes of a transaction in order.
func (e *Engine) GetBridgeTransactionHistory(ctx context.Context, id int64) ([]types.StatusChange, error) {
	return e.store.History(ctx, id)
}

// GetBridgeTransactionsByStatus returns up to limit transactions in status
// with an id greater than afterID, in id order. A limit of zero or less
// returns all of them.
func (e *Engine) GetBridgeTransactionsByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error) {
	if !status.Valid() {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "unknown status %q", status)
	}
	if afterID < 0 {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid cursor %d", afterID)
	}
	return e.store.ListByStatus(ctx, status, afterID, limit)
}

// CalculateBridgeFee returns the fee charged on amount for direction.
// Amount bounds are not checked.
func (e *Engine) CalculateBridgeFee(amount *big.Int, direction types.Direction) (*big.Int, error) {
	if !validAmount(amount) {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidRequest, "amount must be a non-negative integer")
	}

	pair, err := e.pairs.Resolve(direction)
	if err != nil {
		return nil, err
	}
	return fees.ComputeFee(amount, pair), nil
}

// GetBridgeConfig returns the pair configuration for an ordered network pair.
func (e *Engine) GetBridgeConfig(source, destination types.Network) (types.BridgePairConfig, error) {
	return e.pairs.GetConfig(source, destination)
}

// ListBridgeConfigs returns every configured pair.
func (e *Engine) ListBridgeConfigs() []types.BridgePairConfig {
	return e.pairs.Pairs()
}
