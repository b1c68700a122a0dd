package api

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ClipFinance/bridge-engine/bridge"
	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type createTransactionRequest struct {
	UserID             string `json:"userId"`
	SourceAddress      string `json:"sourceAddress"`
	DestinationAddress string `json:"destinationAddress"`
	Amount             string `json:"amount"`
	Direction          string `json:"direction"`
}

type updateStatusRequest struct {
	Status   types.BridgeStatus `json:"status"`
	Metadata types.Metadata     `json:"metadata"`
}

type revertRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		ERROR(w, err)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		ERROR(w, err)
		return
	}

	tx, err := s.engine.CreateBridgeTransaction(r.Context(), bridge.CreateRequest{
		UserID:             req.UserID,
		SourceAddress:      req.SourceAddress,
		DestinationAddress: req.DestinationAddress,
		Amount:             amount,
		Direction:          types.Direction(req.Direction),
	})
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusCreated, newTransactionResponse(tx))
}

func (s *Server) handleTransactionGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	tx, err := s.engine.GetBridgeTransaction(r.Context(), id)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	history, err := s.engine.GetBridgeTransactionHistory(r.Context(), id)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, history)
}

// handleTransactionsByStatus pages through ?status= in id order. Pass the
// last id of a page as ?after= to fetch the next one.
func (s *Server) handleTransactionsByStatus(w http.ResponseWriter, r *http.Request) {
	status := types.BridgeStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		ERROR(w, errors.Wrap(bridgeerrors.ErrInvalidRequest, "status query parameter is required"))
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 100
	}

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || after < 0 {
			ERROR(w, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid cursor %q", raw))
			return
		}
	}

	txs, err := s.engine.GetBridgeTransactionsByStatus(r.Context(), status, after, limit)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, newTransactionList(txs))
}

func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.engine.GetUserBridgeTransactions(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, newTransactionList(txs))
}

func (s *Server) handleTransactionVerify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	verified, err := s.engine.VerifySourceTransaction(r.Context(), id)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, verifyResponse{ID: id, Verified: verified})
}

func (s *Server) handleTransactionConfirm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	tx, confirmed, err := s.engine.ConfirmSourceTransaction(r.Context(), id)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, confirmResponse{Confirmed: confirmed, Transaction: newTransactionResponse(tx)})
}

func (s *Server) handleTransactionComplete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	tx, err := s.engine.CompleteBridgeTransaction(r.Context(), id)
	if err != nil {
		ERROR(w, err)
		return
	}

	s.logOutcome(r, tx, "complete")
	JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleTransactionRevert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	var req revertRequest
	if err := decodeBody(r, &req); err != nil {
		ERROR(w, err)
		return
	}

	tx, err := s.engine.RevertBridgeTransaction(r.Context(), id, req.Reason)
	if err != nil {
		ERROR(w, err)
		return
	}

	s.logOutcome(r, tx, "revert")
	JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) handleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		ERROR(w, err)
		return
	}

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		ERROR(w, err)
		return
	}

	tx, err := s.engine.UpdateBridgeTransactionStatus(r.Context(), id, req.Status, req.Metadata)
	if err != nil {
		ERROR(w, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"requestId": RequestIDFromContext(r.Context()),
		"id":        tx.ID,
		"status":    tx.Status,
	}).Warn("Transaction status overridden by operator")
	JSON(w, http.StatusOK, newTransactionResponse(tx))
}

func (s *Server) logOutcome(r *http.Request, tx *types.BridgeTransaction, op string) {
	s.logger.WithFields(logrus.Fields{
		"requestId": RequestIDFromContext(r.Context()),
		"id":        tx.ID,
		"op":        op,
		"status":    tx.Status,
	}).Info("Transaction finalized")
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid transaction id %q", raw)
	}
	return id, nil
}

// parseAmount accepts a base-10 integer in minor units.
func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, errors.Wrapf(bridgeerrors.ErrInvalidRequest, "invalid amount %q", raw)
	}
	return amount, nil
}

func decodeBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.Wrapf(bridgeerrors.ErrInvalidRequest, "malformed body: %v", err)
	}
	return nil
}
