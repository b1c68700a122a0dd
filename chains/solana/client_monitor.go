package solana

import (
	"context"

	"github.com/ClipFinance/bridge-engine/connectionmonitor"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// solanaConnectionManager implements connectionmonitor.BlockchainClient interface
type solanaConnectionManager struct {
	chain *solana
}

// CheckConnection queries the current slot.
func (m *solanaConnectionManager) CheckConnection(ctx context.Context) error {
	client, err := m.chain.getClient()
	if err != nil {
		return err
	}

	_, err = client.GetSlot(ctx, rpc.CommitmentProcessed)
	return err
}

// Reconnect replaces the RPC client.
func (m *solanaConnectionManager) Reconnect(ctx context.Context) error {
	client := m.chain.newClient(m.chain.config.RpcUrl)
	if _, err := client.GetSlot(ctx, rpc.CommitmentProcessed); err != nil {
		_ = client.Close()
		return errors.Wrap(err, "new client is not reachable")
	}

	m.chain.clientMutex.Lock()
	defer m.chain.clientMutex.Unlock()

	if m.chain.client == nil {
		_ = client.Close()
		return errors.New("adapter closed")
	}
	_ = m.chain.client.Close()
	m.chain.client = client

	return nil
}

func (s *solana) initMonitor(ctx context.Context) error {
	s.monitorMutex.Lock()
	defer s.monitorMutex.Unlock()

	connectionManager := &solanaConnectionManager{chain: s}
	s.monitor = connectionmonitor.NewConnectionMonitor(
		connectionManager,
		s.logger,
		s.config.Network.String(),
		connectionmonitor.WithInterval(s.config.HealthCheckInterval),
	)
	return s.monitor.Start(context.WithoutCancel(ctx))
}
