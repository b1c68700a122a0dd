package api

import (
	"net/http"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/fees"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (s *Server) handlePairsList(w http.ResponseWriter, r *http.Request) {
	configs := s.engine.ListBridgeConfigs()
	out := make([]pairResponse, 0, len(configs))
	for _, pair := range configs {
		out = append(out, newPairResponse(pair))
	}
	JSON(w, http.StatusOK, out)
}

func (s *Server) handlePairGet(w http.ResponseWriter, r *http.Request) {
	source, ok := types.ParseNetwork(chi.URLParam(r, "source"))
	if !ok {
		ERROR(w, errors.Wrapf(bridgeerrors.ErrUnsupportedPair, "unknown network %q", chi.URLParam(r, "source")))
		return
	}
	destination, ok := types.ParseNetwork(chi.URLParam(r, "destination"))
	if !ok {
		ERROR(w, errors.Wrapf(bridgeerrors.ErrUnsupportedPair, "unknown network %q", chi.URLParam(r, "destination")))
		return
	}

	pair, err := s.engine.GetBridgeConfig(source, destination)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, newPairResponse(pair))
}

// handleFeeGet quotes the fee and destination amount for
// ?direction=<SOURCE>_TO_<DESTINATION>&amount=<minor units>.
func (s *Server) handleFeeGet(w http.ResponseWriter, r *http.Request) {
	direction := types.Direction(r.URL.Query().Get("direction"))
	source, destination, ok := direction.Networks()
	if !ok {
		ERROR(w, errors.Wrapf(bridgeerrors.ErrUnsupportedPair, "direction %q", direction))
		return
	}

	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		ERROR(w, err)
		return
	}

	pair, err := s.engine.GetBridgeConfig(source, destination)
	if err != nil {
		ERROR(w, err)
		return
	}

	fee, err := s.engine.CalculateBridgeFee(amount, direction)
	if err != nil {
		ERROR(w, err)
		return
	}

	JSON(w, http.StatusOK, feeResponse{
		Direction:         pair.Direction(),
		Amount:            amount.String(),
		Fee:               fee.String(),
		DestinationAmount: fees.DestinationAmount(amount, fee, pair).String(),
	})
}
