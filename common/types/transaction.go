package types

import (
	"math/big"
	"time"
)

// Metadata is the key/value bag attached to a bridge transaction.
type Metadata map[string]string

// Merge returns a copy of m with every entry of other applied on top.
// Keys missing from other are kept.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone returns a copy of m, never nil.
func (m Metadata) Clone() Metadata {
	return Metadata(nil).Merge(m)
}

// BridgeTransaction is a single request to move value from a source network
// to a destination network. Only Status, Metadata, CompletedAt and UpdatedAt
// change after creation.
type BridgeTransaction struct {
	ID                 int64        `json:"id"`
	UserID             string       `json:"userId"`
	SourceNetwork      Network      `json:"sourceNetwork"`
	DestinationNetwork Network      `json:"destinationNetwork"`
	Direction          Direction    `json:"direction"`
	SourceAddress      string       `json:"sourceAddress"`
	DestinationAddress string       `json:"destinationAddress"`
	Amount             *big.Int     `json:"amount"`
	Fee                *big.Int     `json:"fee"`
	Status             BridgeStatus `json:"status"`
	SourceTxHash       string       `json:"sourceTxHash"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
	CompletedAt        *time.Time   `json:"completedAt,omitempty"`
	Metadata           Metadata     `json:"metadata"`
}

// Clone returns a deep copy of the transaction.
func (t *BridgeTransaction) Clone() *BridgeTransaction {
	if t == nil {
		return nil
	}

	out := *t
	out.Amount = cloneInt(t.Amount)
	out.Fee = cloneInt(t.Fee)
	out.Metadata = t.Metadata.Clone()
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		out.CompletedAt = &completedAt
	}
	return &out
}

// ApplyMutableFields copies the fields a store update may change from src
// onto dst and leaves every write-once field of dst untouched. A claimed
// source deposit is write-once too.
func ApplyMutableFields(dst, src *BridgeTransaction) {
	deposit := dst.Metadata[MetaSourceDepositTx]

	dst.Status = src.Status
	dst.Metadata = src.Metadata.Clone()
	if deposit != "" {
		dst.Metadata[MetaSourceDepositTx] = deposit
	}
	dst.UpdatedAt = src.UpdatedAt
	dst.CompletedAt = nil
	if src.CompletedAt != nil {
		completedAt := *src.CompletedAt
		dst.CompletedAt = &completedAt
	}
}

// ClaimedDeposit returns the source deposit an update from current to next
// claims, or "" when next claims none or current already held one.
func ClaimedDeposit(current, next *BridgeTransaction) string {
	if current.Metadata[MetaSourceDepositTx] != "" {
		return ""
	}
	return next.Metadata[MetaSourceDepositTx]
}

// StatusChange is one entry of a transaction's status history.
// From is empty for the entry written at insert.
type StatusChange struct {
	From BridgeStatus `json:"from,omitempty"`
	To   BridgeStatus `json:"to"`
	At   time.Time    `json:"at"`
}
