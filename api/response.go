package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
)

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// ERROR writes {"error": "..."} with the status code mapped from err.
func ERROR(w http.ResponseWriter, err error) {
	JSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bridgeerrors.ErrInvalidRequest),
		errors.Is(err, bridgeerrors.ErrUnsupportedPair),
		errors.Is(err, bridgeerrors.ErrAmountOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, bridgeerrors.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, bridgeerrors.ErrInvalidState),
		errors.Is(err, bridgeerrors.ErrDepositClaimed):
		return http.StatusConflict
	case errors.Is(err, bridgeerrors.ErrAdapterUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, bridgeerrors.ErrAdapterOperationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// transactionResponse renders amounts as decimal strings so clients never
// lose precision.
type transactionResponse struct {
	ID                 int64              `json:"id"`
	UserID             string             `json:"userId"`
	SourceNetwork      types.Network      `json:"sourceNetwork"`
	DestinationNetwork types.Network      `json:"destinationNetwork"`
	Direction          types.Direction    `json:"direction"`
	SourceAddress      string             `json:"sourceAddress"`
	DestinationAddress string             `json:"destinationAddress"`
	Amount             string             `json:"amount"`
	Fee                string             `json:"fee"`
	Status             types.BridgeStatus `json:"status"`
	SourceTxHash       string             `json:"sourceTxHash"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty"`
	Metadata           types.Metadata     `json:"metadata"`
}

func newTransactionResponse(tx *types.BridgeTransaction) transactionResponse {
	return transactionResponse{
		ID:                 tx.ID,
		UserID:             tx.UserID,
		SourceNetwork:      tx.SourceNetwork,
		DestinationNetwork: tx.DestinationNetwork,
		Direction:          tx.Direction,
		SourceAddress:      tx.SourceAddress,
		DestinationAddress: tx.DestinationAddress,
		Amount:             amountString(tx.Amount),
		Fee:                amountString(tx.Fee),
		Status:             tx.Status,
		SourceTxHash:       tx.SourceTxHash,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
		CompletedAt:        tx.CompletedAt,
		Metadata:           tx.Metadata,
	}
}

func newTransactionList(txs []*types.BridgeTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	return out
}

type pairResponse struct {
	Direction             types.Direction `json:"direction"`
	SourceNetwork         types.Network   `json:"sourceNetwork"`
	DestinationNetwork    types.Network   `json:"destinationNetwork"`
	ConversionRate        string          `json:"conversionRate"`
	BridgeFeePercent      string          `json:"bridgeFeePercent"`
	MinTransactionAmount  string          `json:"minTransactionAmount"`
	MaxTransactionAmount  string          `json:"maxTransactionAmount"`
	RequiredConfirmations uint64          `json:"requiredConfirmations"`
}

func newPairResponse(pair types.BridgePairConfig) pairResponse {
	return pairResponse{
		Direction:             pair.Direction(),
		SourceNetwork:         pair.SourceNetwork,
		DestinationNetwork:    pair.DestinationNetwork,
		ConversionRate:        pair.ConversionRate.String(),
		BridgeFeePercent:      pair.BridgeFeePercent.String(),
		MinTransactionAmount:  amountString(pair.MinTransactionAmount),
		MaxTransactionAmount:  amountString(pair.MaxTransactionAmount),
		RequiredConfirmations: pair.RequiredConfirmations,
	}
}

type feeResponse struct {
	Direction         types.Direction `json:"direction"`
	Amount            string          `json:"amount"`
	Fee               string          `json:"fee"`
	DestinationAmount string          `json:"destinationAmount"`
}

type verifyResponse struct {
	ID       int64 `json:"id"`
	Verified bool  `json:"verified"`
}

type confirmResponse struct {
	Confirmed   bool                `json:"confirmed"`
	Transaction transactionResponse `json:"transaction"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
