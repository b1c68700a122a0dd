// Package memory is an in-process transaction store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
)

// Store keeps transactions in a map guarded by a single mutex.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]*types.BridgeTransaction
	history map[int64][]types.StatusChange
	// deposits maps network/deposit id to the claiming transaction.
	deposits map[string]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		records:  make(map[int64]*types.BridgeTransaction),
		history:  make(map[int64][]types.StatusChange),
		deposits: make(map[string]int64),
	}
}

func notFound(id int64) error {
	return errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "id %d", id)
}

func depositKey(network types.Network, depositID string) string {
	return network.String() + "/" + depositID
}

func (s *Store) Insert(_ context.Context, tx *types.BridgeTransaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record := tx.Clone()
	record.ID = s.nextID
	s.records[record.ID] = record
	s.history[record.ID] = []types.StatusChange{{To: record.Status, At: record.CreatedAt}}

	tx.ID = record.ID
	return record.ID, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (*types.BridgeTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}
	return record.Clone(), nil
}

func (s *Store) GetByDeposit(_ context.Context, network types.Network, depositID string) (*types.BridgeTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.deposits[depositKey(network, depositID)]
	if !ok {
		return nil, errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "deposit %s on %s", depositID, network)
	}
	return s.records[id].Clone(), nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]*types.BridgeTransaction, error) {
	out := s.filter(func(tx *types.BridgeTransaction) bool { return tx.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return newer(out[i], out[j]) })
	return out, nil
}

func (s *Store) ListByStatus(_ context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error) {
	out := s.filter(func(tx *types.BridgeTransaction) bool { return tx.Status == status && tx.ID > afterID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) History(_ context.Context, id int64) ([]types.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes, ok := s.history[id]
	if !ok {
		return nil, notFound(id)
	}
	out := make([]types.StatusChange, len(changes))
	copy(out, changes)
	return out, nil
}

func (s *Store) Update(_ context.Context, id int64, mutate types.Mutation) (*types.BridgeTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, notFound(id)
	}

	working := record.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	updated := record.Clone()
	types.ApplyMutableFields(updated, working)

	if deposit := types.ClaimedDeposit(record, updated); deposit != "" {
		key := depositKey(updated.SourceNetwork, deposit)
		if owner, ok := s.deposits[key]; ok && owner != id {
			return nil, errors.Wrapf(bridgeerrors.ErrDepositClaimed, "deposit %s claimed by transaction %d", deposit, owner)
		}
		s.deposits[key] = id
	}

	s.records[id] = updated
	s.history[id] = append(s.history[id], types.StatusChange{
		From: record.Status,
		To:   updated.Status,
		At:   updated.UpdatedAt,
	})

	return updated.Clone(), nil
}

func (s *Store) filter(keep func(*types.BridgeTransaction) bool) []*types.BridgeTransaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.BridgeTransaction, 0)
	for _, record := range s.records {
		if keep(record) {
			out = append(out, record.Clone())
		}
	}
	return out
}

// newer orders by creation time, then id.
func newer(a, b *types.BridgeTransaction) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
