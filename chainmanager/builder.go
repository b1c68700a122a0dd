package chainmanager

import (
	"time"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// defaultCallTimeout bounds a single adapter call when the config sets none.
	defaultCallTimeout = 30 * time.Second
	// defaultBreakerTimeout is how long an open circuit stays open.
	defaultBreakerTimeout = time.Minute
)

// AdapterBuilder is a builder pattern implementation for network adapters.
// It allows setting the capabilities of the adapter (deposit verifier, minter,
// refunder, health reporter) and the guards applied to every call.
type AdapterBuilder struct {
	config   *types.NetworkConfig  // Network configuration.
	logger   *logrus.Logger        // Logger for adapter calls.
	verifier types.DepositVerifier // Deposit verifier implementation.
	minter   types.Minter          // Minter implementation.
	refunder types.Refunder        // Refunder implementation.
	health   types.HealthReporter  // Health reporter implementation.
	closer   func()                // Releases network resources.

	timeout         time.Duration
	rateLimit       rate.Limit
	rateBurst       int
	breakerFailures uint32
	breakerTimeout  time.Duration
}

// NewAdapterBuilder creates a new adapter builder instance. Guards are
// initialized from the config and can be overridden with the With* methods.
//
// Parameters:
// - config: the network configuration.
// - logger: the logger for adapter calls.
//
// Returns:
// - *AdapterBuilder: a new AdapterBuilder instance.
func NewAdapterBuilder(config *types.NetworkConfig, logger *logrus.Logger) *AdapterBuilder {
	b := &AdapterBuilder{
		config:  config,
		logger:  logger,
		timeout: defaultCallTimeout,
	}

	if config.CallTimeout > 0 {
		b.timeout = config.CallTimeout
	}
	if config.RateLimit > 0 {
		b.WithRateLimit(config.RateLimit, config.RateBurst)
	}
	if config.BreakerFailures > 0 {
		b.WithCircuitBreaker(config.BreakerFailures, config.BreakerTimeout)
	}

	return b
}

// WithDepositVerifier sets deposit verifier implementation.
func (b *AdapterBuilder) WithDepositVerifier(verifier types.DepositVerifier) *AdapterBuilder {
	b.verifier = verifier
	return b
}

// WithMinter sets minter implementation.
func (b *AdapterBuilder) WithMinter(minter types.Minter) *AdapterBuilder {
	b.minter = minter
	return b
}

// WithRefunder sets refunder implementation.
func (b *AdapterBuilder) WithRefunder(refunder types.Refunder) *AdapterBuilder {
	b.refunder = refunder
	return b
}

// WithHealthReporter sets the reporter consulted by Adapter.Healthy.
func (b *AdapterBuilder) WithHealthReporter(health types.HealthReporter) *AdapterBuilder {
	b.health = health
	return b
}

// WithCloser sets a function releasing network resources on Adapter.Close.
func (b *AdapterBuilder) WithCloser(closer func()) *AdapterBuilder {
	b.closer = closer
	return b
}

// WithTimeout sets the upper bound of a single adapter call.
func (b *AdapterBuilder) WithTimeout(timeout time.Duration) *AdapterBuilder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithRateLimit enables a token bucket of perSecond calls with the given burst.
//
// Parameters:
// - perSecond: sustained calls per second.
// - burst: bucket size, at least 1.
//
// Returns:
// - *AdapterBuilder: the updated AdapterBuilder instance.
func (b *AdapterBuilder) WithRateLimit(perSecond float64, burst int) *AdapterBuilder {
	if burst < 1 {
		burst = 1
	}
	b.rateLimit = rate.Limit(perSecond)
	b.rateBurst = burst
	return b
}

// WithCircuitBreaker opens the circuit after failures consecutive failed calls
// and keeps it open for openTimeout before probing again.
//
// Parameters:
// - failures: consecutive failures that open the circuit.
// - openTimeout: open period, defaults to one minute.
//
// Returns:
// - *AdapterBuilder: the updated AdapterBuilder instance.
func (b *AdapterBuilder) WithCircuitBreaker(failures uint32, openTimeout time.Duration) *AdapterBuilder {
	if openTimeout <= 0 {
		openTimeout = defaultBreakerTimeout
	}
	b.breakerFailures = failures
	b.breakerTimeout = openTimeout
	return b
}

// Build creates a new adapter instance with configured implementations.
//
// Returns:
// - *Adapter: a new Adapter instance with the configured implementations.
func (b *AdapterBuilder) Build() *Adapter {
	a := NewAdapter(b.config, b.logger, b.verifier, b.minter, b.refunder)
	a.health = b.health
	a.closer = b.closer
	a.timeout = b.timeout

	if b.rateLimit > 0 {
		a.limiter = rate.NewLimiter(b.rateLimit, b.rateBurst)
	}

	if b.breakerFailures > 0 {
		failures := b.breakerFailures
		network := b.config.Network.String()
		logger := b.logger
		a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        network,
			MaxRequests: 1,
			Timeout:     b.breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return !networkFailure(err)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"network": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Adapter circuit state changed")
			},
		})
	}

	return a
}
