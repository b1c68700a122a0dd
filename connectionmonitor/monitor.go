package connectionmonitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultHealthCheckInterval defines interval between connection health checks
	defaultHealthCheckInterval = 30 * time.Second
	// checkTimeout bounds a single connection check
	checkTimeout = 10 * time.Second
	// reconnectBackoff defines the pause between reconnection attempts
	reconnectBackoff = 5 * time.Second
	// maxReconnectAttempts defines maximum number of reconnection attempts
	maxReconnectAttempts = 3
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
	// Healthy reports the outcome of the latest check
	Healthy() bool
}

// BlockchainClient represents blockchain client interface
type BlockchainClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect attempts to reconnect to blockchain node
	Reconnect(ctx context.Context) error
}

// Option customizes a connection monitor.
type Option func(*connectionMonitor)

// WithInterval sets the period between health checks.
func WithInterval(interval time.Duration) Option {
	return func(m *connectionMonitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithReconnectBackoff sets the pause between reconnection attempts.
func WithReconnectBackoff(backoff time.Duration) Option {
	return func(m *connectionMonitor) {
		m.backoff = backoff
	}
}

type connectionMonitor struct {
	client       BlockchainClient
	logger       *logrus.Logger
	network      string
	interval     time.Duration
	backoff      time.Duration
	healthy      atomic.Bool
	stopChan     chan struct{}
	doneChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance. The
// connection is assumed healthy until the first failed check.
//
// Parameters:
// - client: the blockchain client to monitor.
// - logger: the logger for logging purposes.
// - network: the name of the monitored network.
// - opts: optional settings.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client BlockchainClient,
	logger *logrus.Logger,
	network string,
	opts ...Option,
) ConnectionMonitor {
	m := &connectionMonitor{
		client:   client,
		logger:   logger,
		network:  network,
		interval: defaultHealthCheckInterval,
		backoff:  reconnectBackoff,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setHealthy(true)
	return m
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context bounding the monitoring goroutine.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if m.isMonitoring {
		return errors.Errorf("connection monitor is already running for network %s", m.network)
	}
	m.isMonitoring = true
	m.stopChan = make(chan struct{})
	m.doneChan = make(chan struct{})

	go m.monitorConnection(ctx, m.stopChan, m.doneChan)
	return nil
}

// Stop stops connection monitoring and waits for the monitoring goroutine to exit.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	if !m.isMonitoring {
		m.monitorMutex.Unlock()
		return
	}
	close(m.stopChan)
	done := m.doneChan
	m.isMonitoring = false
	m.monitorMutex.Unlock()

	<-done
}

// Healthy reports the outcome of the latest check.
func (m *connectionMonitor) Healthy() bool {
	return m.healthy.Load()
}

func (m *connectionMonitor) setHealthy(healthy bool) {
	m.healthy.Store(healthy)
	value := 0.0
	if healthy {
		value = 1
	}
	metrics.AdapterHealthy.WithLabelValues(m.network).Set(value)
}

// monitorConnection monitors the connection state and attempts to reconnect if needed.
func (m *connectionMonitor) monitorConnection(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("network", m.network).Info("Connection monitoring stopped due to context cancellation")
			return

		case <-stop:
			m.logger.WithField("network", m.network).Info("Connection monitoring stopped")
			return

		case <-ticker.C:
			if err := m.checkAndReconnect(ctx); err != nil {
				m.logger.WithFields(logrus.Fields{
					"network": m.network,
					"error":   err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

// checkAndReconnect checks the connection state and attempts to reconnect if needed.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the reconnection fails.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	err := m.client.CheckConnection(checkCtx)
	cancel()

	if err == nil {
		m.setHealthy(true)
		m.logger.WithField("network", m.network).Debug("Ping successful")
		return nil
	}

	m.setHealthy(false)
	m.logger.WithFields(logrus.Fields{
		"network": m.network,
		"error":   err,
	}).Warn("Connection check failed, attempting to reconnect")

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		err := m.client.Reconnect(ctx)
		if err == nil {
			m.setHealthy(true)
			m.logger.WithFields(logrus.Fields{
				"network": m.network,
				"attempt": attempt,
			}).Info("Client successfully reconnected")
			return nil
		}

		m.logger.WithFields(logrus.Fields{
			"network": m.network,
			"attempt": attempt,
			"error":   err,
		}).Error("Reconnection attempt failed")

		if attempt == maxReconnectAttempts {
			return errors.Wrapf(err, "failed to reconnect to network %s", m.network)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff):
		}
	}

	return nil
}
