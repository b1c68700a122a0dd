package chainmanager

import (
	"context"
	"math/big"
	"sync"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	opVerifyDeposit = "verify_deposit"
	opMintOrRelease = "mint_or_release"
	opRefund        = "refund"
)

// Adapter implements types.NetworkAdapter with thread-safe access to its
// capabilities. Every call is rate limited, bounded by a timeout and guarded
// by a circuit breaker when those are configured.
type Adapter struct {
	config   *types.NetworkConfig  // Network configuration.
	logger   *logrus.Logger        // Logger for adapter calls.
	verifier types.DepositVerifier // Deposit verifier implementation.
	minter   types.Minter          // Minter implementation.
	refunder types.Refunder        // Refunder implementation.
	health   types.HealthReporter  // Optional reachability signal.
	closer   func()

	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	// Mutexes for thread-safe access to capabilities.
	verifierMutex sync.RWMutex
	minterMutex   sync.RWMutex
	refunderMutex sync.RWMutex
}

// NewAdapter creates a new Adapter instance without guards. Use
// AdapterBuilder to configure timeouts, rate limits and circuit breaking.
//
// Parameters:
// - config: the network configuration.
// - logger: the logger for adapter calls.
// - verifier: the deposit verifier implementation.
// - minter: the minter implementation.
// - refunder: the refunder implementation.
//
// Returns:
// - *Adapter: a new Adapter instance.
func NewAdapter(
	config *types.NetworkConfig,
	logger *logrus.Logger,
	verifier types.DepositVerifier,
	minter types.Minter,
	refunder types.Refunder,
) *Adapter {
	return &Adapter{
		config:   config,
		logger:   logger,
		verifier: verifier,
		minter:   minter,
		refunder: refunder,
	}
}

// VerifyDeposit lists confirmed source deposits with thread-safe access.
// If the verifier is not implemented, it returns an error wrapping ErrAdapterUnavailable.
//
// Parameters:
// - ctx: context for managing the lifecycle of the call.
// - address: the depositor address.
// - amount: the deposited amount.
// - confirmations: the required confirmation count.
//
// Returns:
// - []string: identifiers of the sufficiently confirmed deposits, oldest first.
// - error: ErrAdapterUnavailable or an AdapterError.
func (a *Adapter) VerifyDeposit(ctx context.Context, address string, amount *big.Int, confirmations uint64) ([]string, error) {
	a.verifierMutex.RLock()
	verifier := a.verifier
	a.verifierMutex.RUnlock()

	if verifier == nil {
		return nil, a.notImplemented(opVerifyDeposit)
	}

	var deposits []string
	err := a.call(ctx, opVerifyDeposit, func(ctx context.Context) error {
		var err error
		deposits, err = verifier.VerifyDeposit(ctx, address, amount, confirmations)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deposits, nil
}

// MintOrRelease delivers value on the network with thread-safe access.
// If the minter is not implemented, it returns an error wrapping ErrAdapterUnavailable.
//
// Parameters:
// - ctx: context for managing the lifecycle of the call.
// - address: the recipient address.
// - amount: the amount in minor units.
//
// Returns:
// - string: the external transaction identifier.
// - error: ErrAdapterUnavailable or an AdapterError.
func (a *Adapter) MintOrRelease(ctx context.Context, address string, amount *big.Int) (string, error) {
	a.minterMutex.RLock()
	minter := a.minter
	a.minterMutex.RUnlock()

	if minter == nil {
		return "", a.notImplemented(opMintOrRelease)
	}

	var txID string
	err := a.call(ctx, opMintOrRelease, func(ctx context.Context) error {
		var err error
		txID, err = minter.MintOrRelease(ctx, address, amount)
		return err
	})
	if err != nil {
		return "", err
	}
	return txID, nil
}

// Refund returns value to a depositor with thread-safe access.
// If the refunder is not implemented, it returns an error wrapping ErrAdapterUnavailable.
func (a *Adapter) Refund(ctx context.Context, address string, amount *big.Int) (string, error) {
	a.refunderMutex.RLock()
	refunder := a.refunder
	a.refunderMutex.RUnlock()

	if refunder == nil {
		return "", a.notImplemented(opRefund)
	}

	var txID string
	err := a.call(ctx, opRefund, func(ctx context.Context) error {
		var err error
		txID, err = refunder.Refund(ctx, address, amount)
		return err
	})
	if err != nil {
		return "", err
	}
	return txID, nil
}

// Healthy reports whether the circuit is closed and the connection monitor,
// when present, considers the network reachable.
func (a *Adapter) Healthy() bool {
	if a.breaker != nil && a.breaker.State() == gobreaker.StateOpen {
		return false
	}
	if a.health != nil {
		return a.health.Healthy()
	}
	return true
}

// GetConfig returns network configuration.
func (a *Adapter) GetConfig() *types.NetworkConfig {
	return a.config
}

// Close releases network resources held by the underlying implementation.
func (a *Adapter) Close() {
	if a.closer != nil {
		a.closer()
	}
}

// call runs fn under the rate limiter, timeout and circuit breaker and
// classifies its error.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	network := a.config.Network.String()

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			metrics.AdapterCalls.WithLabelValues(network, op, "rate_limited").Inc()
			return bridgeerrors.NewAdapterError(network, op, errors.Wrap(err, "rate limiter"))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	var err error
	if a.breaker != nil {
		_, err = a.breaker.Execute(func() (interface{}, error) {
			return nil, fn(callCtx)
		})
	} else {
		err = fn(callCtx)
	}
	metrics.AdapterLatency.WithLabelValues(network, op).Observe(time.Since(start).Seconds())

	logger := a.logger.WithFields(logrus.Fields{
		"network":  network,
		"op":       op,
		"duration": time.Since(start),
	})

	switch {
	case err == nil:
		metrics.AdapterCalls.WithLabelValues(network, op, "ok").Inc()
		logger.Debug("Adapter call succeeded")
		return nil

	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.AdapterCalls.WithLabelValues(network, op, "circuit_open").Inc()
		logger.Warn("Adapter call rejected, circuit open")
		return errors.Wrapf(bridgeerrors.ErrAdapterUnavailable, "%s: circuit open", network)

	case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		metrics.AdapterCalls.WithLabelValues(network, op, "timeout").Inc()
		logger.WithError(err).Error("Adapter call timed out")
		return bridgeerrors.NewAdapterError(network, op, errors.Wrapf(err, "timed out after %s", a.timeout))

	case errors.Is(err, bridgeerrors.ErrInvalidRequest):
		metrics.AdapterCalls.WithLabelValues(network, op, "invalid_request").Inc()
		logger.WithError(err).Warn("Adapter call rejected its input")
		return bridgeerrors.NewAdapterError(network, op, err)

	default:
		metrics.AdapterCalls.WithLabelValues(network, op, "error").Inc()
		logger.WithError(err).Error("Adapter call failed")
		return bridgeerrors.NewAdapterError(network, op, err)
	}
}

// networkFailure reports whether err from an adapter call counts against the
// network. Rejected input and calls abandoned by the caller do not.
func networkFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, bridgeerrors.ErrInvalidRequest) && !errors.Is(err, context.Canceled)
}

func (a *Adapter) notImplemented(op string) error {
	return errors.Wrapf(bridgeerrors.ErrAdapterUnavailable, "%s %s: %v", a.config.Network, op, bridgeerrors.ErrNotImplemented)
}
