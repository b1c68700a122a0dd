package types

import "context"

// Mutation changes a transaction in place inside a store update. Returning an
// error aborts the update and the store returns that error unchanged.
type Mutation func(tx *BridgeTransaction) error

// TransactionStore is the durable record of bridge transactions.
type TransactionStore interface {
	// Insert persists a new transaction and returns its assigned id.
	// The id is also written back to tx.ID.
	Insert(ctx context.Context, tx *BridgeTransaction) (int64, error)

	// GetByID returns the transaction or an error wrapping ErrTransactionNotFound.
	GetByID(ctx context.Context, id int64) (*BridgeTransaction, error)

	// ListByUser returns the user's transactions, newest first.
	ListByUser(ctx context.Context, userID string) ([]*BridgeTransaction, error)

	// GetByDeposit returns the transaction whose Update claimed depositID on network,
	// or an error wrapping ErrTransactionNotFound.
	GetByDeposit(ctx context.Context, network Network, depositID string) (*BridgeTransaction, error)

	// ListByStatus returns up to limit transactions in status with an id
	// greater than afterID, in ascending id order. Passing the last id of one
	// page as afterID yields the next page.
	ListByStatus(ctx context.Context, status BridgeStatus, afterID int64, limit int) ([]*BridgeTransaction, error)

	// History returns the status changes of a transaction in the order they happened.
	History(ctx context.Context, id int64) ([]StatusChange, error)

	// Update atomically reads the transaction, applies mutate and writes back
	// the mutable fields (Status, Metadata, CompletedAt, UpdatedAt). No other
	// writer can interleave between the read and the write.
	// Setting Metadata[MetaSourceDepositTx] to a deposit already claimed by
	// another transaction on the same source network fails with an error
	// wrapping ErrDepositClaimed and leaves the record unchanged.
	Update(ctx context.Context, id int64, mutate Mutation) (*BridgeTransaction, error)
}
