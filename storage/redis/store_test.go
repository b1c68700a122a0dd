package redis

import (
	"context"
	"io"
	"testing"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/storage/storetest"
	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := NewStore(context.Background(), Config{
		URL:       "redis://" + server.Addr(),
		KeyPrefix: "bridge:",
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, server
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) types.TransactionStore {
		store, _ := newTestStore(t)
		return store
	})
}

func TestStatusIndexFollowsUpdates(t *testing.T) {
	store, server := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, storetest.Fixture("alice", 0))
	require.NoError(t, err)

	_, err = store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusConfirmedSource
		return nil
	})
	require.NoError(t, err)

	initiated, err := server.ZMembers("bridge:status:INITIATED")
	if err == nil {
		assert.Empty(t, initiated)
	}
	confirmed, err := server.ZMembers("bridge:status:CONFIRMED_SOURCE")
	require.NoError(t, err)
	assert.Equal(t, []string{member(id)}, confirmed)
}

func TestNewStoreRejectsBadURL(t *testing.T) {
	_, err := NewStore(context.Background(), Config{URL: "not a url"}, logrus.New())
	assert.Error(t, err)
}
