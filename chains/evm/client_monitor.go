package evm

import (
	"context"

	"github.com/ClipFinance/bridge-engine/connectionmonitor"
	"github.com/pkg/errors"
)

// evmConnectionManager implements the BlockchainClient interface and manages the connection to the EVM node.
type evmConnectionManager struct {
	chain *evm // Reference to the EVM adapter instance.
}

// initMonitor initializes the connection monitor for the EVM adapter.
//
// Parameters:
// - ctx: the context for managing the initialization process.
//
// Returns:
// - error: an error if there is an issue starting the connection monitor.
func (e *evm) initMonitor(ctx context.Context) error {
	e.monitorMutex.Lock()
	defer e.monitorMutex.Unlock()

	connectionManager := &evmConnectionManager{chain: e}
	e.monitor = connectionmonitor.NewConnectionMonitor(
		connectionManager,
		e.logger,
		e.config.Network.String(),
		connectionmonitor.WithInterval(e.config.HealthCheckInterval),
	)
	return e.monitor.Start(context.WithoutCancel(ctx))
}

// CheckConnection checks the connection to the node by retrieving the current block number.
func (w *evmConnectionManager) CheckConnection(ctx context.Context) error {
	client, err := w.chain.getClient()
	if err != nil {
		return err
	}

	_, err = client.BlockNumber(ctx)
	return err
}

// Reconnect re-establishes the connection to the node.
//
// Parameters:
// - ctx: the context for managing the reconnection process.
//
// Returns:
// - error: an error if there is an issue dialing the new client.
func (w *evmConnectionManager) Reconnect(ctx context.Context) error {
	client, err := w.chain.dial(ctx, w.chain.config.RpcUrl)
	if err != nil {
		return errors.Wrap(err, "failed to dial node")
	}

	w.chain.clientMutex.Lock()
	defer w.chain.clientMutex.Unlock()

	if w.chain.client == nil {
		// Closed while dialing.
		client.Close()
		return errors.New("adapter closed")
	}
	w.chain.client.Close()
	w.chain.client = client

	return nil
}
