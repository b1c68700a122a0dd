// Package api exposes the bridge engine over HTTP.
package api

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ClipFinance/bridge-engine/bridge"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Engine is the part of bridge.Engine served over HTTP.
type Engine interface {
	CreateBridgeTransaction(ctx context.Context, req bridge.CreateRequest) (*types.BridgeTransaction, error)
	GetBridgeTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, error)
	GetUserBridgeTransactions(ctx context.Context, userID string) ([]*types.BridgeTransaction, error)
	GetBridgeTransactionHistory(ctx context.Context, id int64) ([]types.StatusChange, error)
	GetBridgeTransactionsByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error)
	UpdateBridgeTransactionStatus(ctx context.Context, id int64, status types.BridgeStatus, metadata types.Metadata) (*types.BridgeTransaction, error)
	VerifySourceTransaction(ctx context.Context, id int64) (bool, error)
	ConfirmSourceTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, bool, error)
	CompleteBridgeTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, error)
	RevertBridgeTransaction(ctx context.Context, id int64, reason string) (*types.BridgeTransaction, error)
	CalculateBridgeFee(amount *big.Int, direction types.Direction) (*big.Int, error)
	GetBridgeConfig(source, destination types.Network) (types.BridgePairConfig, error)
	ListBridgeConfigs() []types.BridgePairConfig
}

// Options configures the HTTP server.
//
// Fields:
// - Addr: listen address, e.g. ":8080".
// - CORSOrigins: allowed origins, "*" allows any.
// - ReadTimeout, WriteTimeout: http.Server timeouts. WriteTimeout bounds
// completion and revert calls, so it should exceed the adapter timeout.
type Options struct {
	Addr         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the bridge API.
type Server struct {
	r      chi.Router
	engine Engine
	logger *logrus.Logger
	opts   Options
}

// NewServer creates the API server with every route mounted.
//
// Parameters:
// - engine: the bridge engine.
// - opts: the server options.
// - logger: the logger instance.
//
// Returns:
// - *Server: the server, not yet listening.
func NewServer(engine Engine, opts Options, logger *logrus.Logger) *Server {
	s := &Server{
		engine: engine,
		logger: logger,
		opts:   opts,
	}
	s.routes()
	return s
}

// ServeHTTP makes the server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Run listens on opts.Addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.opts.Addr).Info("API server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "API server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "API server shutdown failed")
	}
	s.logger.Info("API server stopped")
	return nil
}
