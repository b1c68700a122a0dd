package types

// BridgeStatus is the lifecycle state of a bridge transaction.
type BridgeStatus string

const (
	// StatusInitiated is the status of a freshly created transaction awaiting its source deposit.
	StatusInitiated BridgeStatus = "INITIATED"
	// StatusConfirmedSource means the source deposit reached the required confirmations.
	StatusConfirmedSource BridgeStatus = "CONFIRMED_SOURCE"
	// StatusMinting means the destination mint or release is in flight.
	StatusMinting BridgeStatus = "MINTING"
	// StatusCompleted means value was delivered on the destination network.
	StatusCompleted BridgeStatus = "COMPLETED"
	// StatusFailed is terminal unless a revert follows.
	StatusFailed BridgeStatus = "FAILED"
	// StatusReverting means the source refund is in flight.
	StatusReverting BridgeStatus = "REVERTING"
	// StatusReverted means the deposit was refunded on the source network.
	StatusReverted BridgeStatus = "REVERTED"
)

var knownStatuses = map[BridgeStatus]struct{}{
	StatusInitiated:       {},
	StatusConfirmedSource: {},
	StatusMinting:         {},
	StatusCompleted:       {},
	StatusFailed:          {},
	StatusReverting:       {},
	StatusReverted:        {},
}

func (s BridgeStatus) String() string {
	return string(s)
}

// Valid reports whether s is a known status.
func (s BridgeStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// IsTerminal reports whether reaching s stamps completedAt.
func (s BridgeStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReverted
}

// Well-known metadata keys.
const (
	MetaError             = "error"
	MetaDestinationTxID   = "destination_tx_id"
	MetaDestinationAmount = "destination_amount"
	MetaRevertReason      = "revert_reason"
	MetaRevertedFrom      = "reverted_from"
	MetaRefundTxID        = "refund_tx_id"
	MetaExpiredReason     = "expired_reason"
	MetaRevertError       = "revert_error"

	// MetaSourceDepositTx names the source deposit a transaction claimed.
	// Stores keep it unique per source network.
	MetaSourceDepositTx = "source_deposit_tx"
)
