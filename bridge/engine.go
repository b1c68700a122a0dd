// Package bridge implements the bridge transaction state machine on top of
// a transaction store and the per-network adapters.
package bridge

import (
	"context"
	"math/big"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const defaultAdapterTimeout = 2 * time.Minute

// Clock supplies the time used for createdAt, updatedAt and completedAt.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock in UTC, truncated to the millisecond
// precision of the stores.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// PairResolver looks up bridge pair configuration. *pairs.Registry implements it.
type PairResolver interface {
	GetConfig(source, destination types.Network) (types.BridgePairConfig, error)
	Resolve(direction types.Direction) (types.BridgePairConfig, error)
	Pairs() []types.BridgePairConfig
}

// Engine runs bridge transactions through their lifecycle. It keeps no
// per-transaction state; every mutation goes through the store's Update.
type Engine struct {
	pairs    PairResolver
	store    types.TransactionStore
	adapters types.AdapterRegistry
	logger   *logrus.Logger

	clock          Clock
	hasher         TxHasher
	adapterTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithHasher replaces the keccak transaction hasher.
func WithHasher(hasher TxHasher) Option {
	return func(e *Engine) {
		e.hasher = hasher
	}
}

// WithAdapterTimeout bounds every adapter call. Non-positive values are ignored.
func WithAdapterTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.adapterTimeout = timeout
		}
	}
}

// NewEngine creates an Engine.
//
// Parameters:
// - pairs: the bridge pair registry.
// - store: the transaction store.
// - adapters: the network adapter registry.
// - logger: the logger instance.
// - opts: optional clock, hasher and adapter timeout.
//
// Returns:
// - *Engine: the engine.
func NewEngine(pairs PairResolver, store types.TransactionStore, adapters types.AdapterRegistry, logger *logrus.Logger, opts ...Option) *Engine {
	e := &Engine{
		pairs:          pairs,
		store:          store,
		adapters:       adapters,
		logger:         logger,
		clock:          SystemClock{},
		hasher:         KeccakHasher{},
		adapterTimeout: defaultAdapterTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// adapterFor resolves the adapter of network and rejects it if it reports
// itself unhealthy.
func (e *Engine) adapterFor(network types.Network) (types.NetworkAdapter, error) {
	adapter, err := e.adapters.Get(network)
	if err != nil {
		return nil, err
	}

	if health, ok := adapter.(types.HealthReporter); ok && !health.Healthy() {
		return nil, errors.Wrapf(bridgeerrors.ErrAdapterUnavailable, "%s adapter unhealthy", network)
	}
	return adapter, nil
}

type adapterResult struct {
	deposits []string
	txID     string
	err      error
}

// callAdapter runs fn bounded by the adapter timeout. An adapter that ignores
// its context is abandoned when the deadline passes and the call counts as failed.
func (e *Engine) callAdapter(ctx context.Context, network types.Network, op string, fn func(ctx context.Context) adapterResult) adapterResult {
	callCtx, cancel := context.WithTimeout(ctx, e.adapterTimeout)
	defer cancel()

	done := make(chan adapterResult, 1)
	go func() {
		done <- fn(callCtx)
	}()

	var res adapterResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = adapterResult{err: errors.Wrap(callCtx.Err(), "adapter call abandoned")}
	}

	if res.err == nil {
		return res
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.err = errors.Wrapf(res.err, "timed out after %s", e.adapterTimeout)
	}
	res.err = bridgeerrors.NewAdapterError(network.String(), op, res.err)
	return res
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() >= 0
}

func (e *Engine) reject(operation, reason string, err error) error {
	metrics.RejectedRequests.WithLabelValues(operation, reason).Inc()
	return err
}
