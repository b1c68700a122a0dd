// Package storetest holds the behaviour every TransactionStore backend must
// show. Backends call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"testing"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) types.TransactionStore

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Fixture returns an INITIATED transaction created offset seconds after a fixed base time.
func Fixture(userID string, offset int) *types.BridgeTransaction {
	createdAt := baseTime.Add(time.Duration(offset) * time.Second)
	amount, _ := new(big.Int).SetString("1000000000000000000000", 10)
	return &types.BridgeTransaction{
		UserID:             userID,
		SourceNetwork:      types.NetworkEthereum,
		DestinationNetwork: types.NetworkBSC,
		Direction:          types.NewDirection(types.NetworkEthereum, types.NetworkBSC),
		SourceAddress:      "0x1111111111111111111111111111111111111111",
		DestinationAddress: "0x2222222222222222222222222222222222222222",
		Amount:             amount,
		Fee:                big.NewInt(1_000_000_000_000_000_000),
		Status:             types.StatusInitiated,
		SourceTxHash:       fmt.Sprintf("0x%064x", offset+1),
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
		Metadata:           types.Metadata{"channel": "test"},
	}
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndGet", func(t *testing.T) { testInsertAndGet(t, newStore(t)) })
	t.Run("MonotonicIDs", func(t *testing.T) { testMonotonicIDs(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("ListByUser", func(t *testing.T) { testListByUser(t, newStore(t)) })
	t.Run("ListByStatus", func(t *testing.T) { testListByStatus(t, newStore(t)) })
	t.Run("UpdateMutableFieldsOnly", func(t *testing.T) { testUpdateMutableFieldsOnly(t, newStore(t)) })
	t.Run("MutationErrorAborts", func(t *testing.T) { testMutationErrorAborts(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
	t.Run("SingleWinnerTransition", func(t *testing.T) { testSingleWinnerTransition(t, newStore(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, newStore(t)) })
	t.Run("DepositClaims", func(t *testing.T) { testDepositClaims(t, newStore(t)) })
	t.Run("ConcurrentDepositClaims", func(t *testing.T) { testConcurrentDepositClaims(t, newStore(t)) })
}

func insert(t *testing.T, store types.TransactionStore, tx *types.BridgeTransaction) int64 {
	t.Helper()
	id, err := store.Insert(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, id, tx.ID)
	return id
}

func ids(txs []*types.BridgeTransaction) []int64 {
	out := make([]int64, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func testInsertAndGet(t *testing.T, store types.TransactionStore) {
	want := Fixture("alice", 0)
	id := insert(t, store, want)
	assert.Positive(t, id)

	got, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, id, got.ID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.SourceNetwork, got.SourceNetwork)
	assert.Equal(t, want.DestinationNetwork, got.DestinationNetwork)
	assert.Equal(t, want.Direction, got.Direction)
	assert.Equal(t, want.SourceAddress, got.SourceAddress)
	assert.Equal(t, want.DestinationAddress, got.DestinationAddress)
	assert.Equal(t, 0, want.Amount.Cmp(got.Amount), "amount %s", got.Amount)
	assert.Equal(t, 0, want.Fee.Cmp(got.Fee), "fee %s", got.Fee)
	assert.Equal(t, types.StatusInitiated, got.Status)
	assert.Equal(t, want.SourceTxHash, got.SourceTxHash)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, want.Metadata, got.Metadata)
}

func testMonotonicIDs(t *testing.T, store types.TransactionStore) {
	first := insert(t, store, Fixture("alice", 0))
	second := insert(t, store, Fixture("alice", 1))
	third := insert(t, store, Fixture("bob", 2))

	assert.Less(t, first, second)
	assert.Less(t, second, third)
}

func testNotFound(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()

	_, err := store.GetByID(ctx, 424242)
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound), "get: %v", err)

	_, err = store.Update(ctx, 424242, func(*types.BridgeTransaction) error { return nil })
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound), "update: %v", err)

	_, err = store.History(ctx, 424242)
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound), "history: %v", err)

	list, err := store.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testListByUser(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	a1 := insert(t, store, Fixture("alice", 0))
	b1 := insert(t, store, Fixture("bob", 1))
	a2 := insert(t, store, Fixture("alice", 2))
	a3 := insert(t, store, Fixture("alice", 2))

	list, err := store.ListByUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{a3, a2, a1}, ids(list))

	list, err = store.ListByUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []int64{b1}, ids(list))
}

func testListByStatus(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	first := insert(t, store, Fixture("alice", 0))
	second := insert(t, store, Fixture("bob", 1))
	moved := insert(t, store, Fixture("carol", 2))
	// Created earlier than the others but inserted last: paging follows ids.
	late := Fixture("dave", 3)
	late.CreatedAt = baseTime.Add(-time.Hour)
	late.UpdatedAt = late.CreatedAt
	fourth := insert(t, store, late)

	_, err := store.Update(ctx, moved, func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusConfirmedSource
		tx.UpdatedAt = baseTime.Add(time.Minute)
		return nil
	})
	require.NoError(t, err)

	list, err := store.ListByStatus(ctx, types.StatusInitiated, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{first, second, fourth}, ids(list))

	list, err = store.ListByStatus(ctx, types.StatusInitiated, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{first, second}, ids(list))

	list, err = store.ListByStatus(ctx, types.StatusInitiated, second, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{fourth}, ids(list))

	list, err = store.ListByStatus(ctx, types.StatusInitiated, fourth, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = store.ListByStatus(ctx, types.StatusConfirmedSource, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{moved}, ids(list))
}

func testUpdateMutableFieldsOnly(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	original := Fixture("alice", 0)
	id := insert(t, store, original)

	completedAt := baseTime.Add(time.Hour)
	updated, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusCompleted
		tx.Metadata = tx.Metadata.Merge(types.Metadata{types.MetaDestinationTxID: "0xabc"})
		tx.CompletedAt = &completedAt
		tx.UpdatedAt = completedAt

		// Write-once fields are ignored.
		tx.Amount = big.NewInt(1)
		tx.UserID = "mallory"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, updated.Status)

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, types.Metadata{"channel": "test", types.MetaDestinationTxID: "0xabc"}, got.Metadata)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completedAt.Equal(*got.CompletedAt))
	assert.True(t, completedAt.Equal(got.UpdatedAt))
	assert.Equal(t, 0, original.Amount.Cmp(got.Amount))
	assert.Equal(t, "alice", got.UserID)
}

func testMutationErrorAborts(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	id := insert(t, store, Fixture("alice", 0))
	abort := errors.New("precondition failed")

	_, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusFailed
		return abort
	})
	assert.Equal(t, abort, err)

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, got.Status)

	history, err := store.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func testConcurrentUpdates(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	id := insert(t, store, Fixture("alice", 0))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
				n, _ := strconv.Atoi(tx.Metadata["count"])
				tx.Metadata = tx.Metadata.Merge(types.Metadata{"count": strconv.Itoa(n + 1)})
				tx.UpdatedAt = baseTime.Add(time.Second)
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(writers), got.Metadata["count"])
}

func testSingleWinnerTransition(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	id := insert(t, store, Fixture("alice", 0))
	lost := errors.New("not in INITIATED")

	const racers = 4
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
				if tx.Status != types.StatusInitiated {
					return lost
				}
				tx.Status = types.StatusMinting
				tx.UpdatedAt = baseTime.Add(time.Second)
				return nil
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case err == lost:
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, racers-1, rejected)
}

func testHistory(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	id := insert(t, store, Fixture("alice", 0))

	steps := []types.BridgeStatus{types.StatusConfirmedSource, types.StatusMinting, types.StatusCompleted}
	for i, status := range steps {
		status := status
		at := baseTime.Add(time.Duration(i+1) * time.Minute)
		_, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
			tx.Status = status
			tx.UpdatedAt = at
			return nil
		})
		require.NoError(t, err)
	}

	history, err := store.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 4)

	assert.Equal(t, types.BridgeStatus(""), history[0].From)
	assert.Equal(t, types.StatusInitiated, history[0].To)
	assert.True(t, baseTime.Equal(history[0].At))

	prev := types.StatusInitiated
	for i, status := range steps {
		assert.Equal(t, prev, history[i+1].From)
		assert.Equal(t, status, history[i+1].To)
		assert.True(t, baseTime.Add(time.Duration(i+1)*time.Minute).Equal(history[i+1].At))
		prev = status
	}
}

func claim(ctx context.Context, store types.TransactionStore, id int64, deposit string) error {
	_, err := store.Update(ctx, id, func(tx *types.BridgeTransaction) error {
		if tx.Status != types.StatusInitiated {
			return errors.Wrap(bridgeerrors.ErrInvalidState, "already confirmed")
		}
		tx.Status = types.StatusConfirmedSource
		tx.Metadata = tx.Metadata.Merge(types.Metadata{types.MetaSourceDepositTx: deposit})
		tx.UpdatedAt = baseTime.Add(time.Minute)
		return nil
	})
	return err
}

func testDepositClaims(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()
	first := insert(t, store, Fixture("alice", 0))
	second := insert(t, store, Fixture("alice", 1))

	other := Fixture("alice", 2)
	other.SourceNetwork = types.NetworkBSC
	other.DestinationNetwork = types.NetworkEthereum
	other.Direction = types.NewDirection(types.NetworkBSC, types.NetworkEthereum)
	onBSC := insert(t, store, other)

	_, err := store.GetByDeposit(ctx, types.NetworkEthereum, "0xdeposit:0")
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound), "unclaimed: %v", err)

	require.NoError(t, claim(ctx, store, first, "0xdeposit:0"))

	got, err := store.GetByDeposit(ctx, types.NetworkEthereum, "0xdeposit:0")
	require.NoError(t, err)
	assert.Equal(t, first, got.ID)
	assert.Equal(t, "0xdeposit:0", got.Metadata[types.MetaSourceDepositTx])

	// The same deposit cannot back a second transaction.
	err = claim(ctx, store, second, "0xdeposit:0")
	assert.True(t, errors.Is(err, bridgeerrors.ErrDepositClaimed), "reuse: %v", err)

	rejected, err := store.GetByID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, rejected.Status)
	assert.Empty(t, rejected.Metadata[types.MetaSourceDepositTx])

	history, err := store.History(ctx, second)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// Identifiers are scoped to the source network.
	require.NoError(t, claim(ctx, store, onBSC, "0xdeposit:0"))

	// Later updates of the owner keep its claim.
	_, err = store.Update(ctx, first, func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusMinting
		tx.Metadata = tx.Metadata.Merge(types.Metadata{types.MetaSourceDepositTx: "0xother:1"})
		tx.UpdatedAt = baseTime.Add(2 * time.Minute)
		return nil
	})
	require.NoError(t, err)

	got, err = store.GetByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "0xdeposit:0", got.Metadata[types.MetaSourceDepositTx])

	_, err = store.GetByDeposit(ctx, types.NetworkEthereum, "0xother:1")
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound), "not claimed: %v", err)

	require.NoError(t, claim(ctx, store, second, "0xdeposit:1"))
}

func testConcurrentDepositClaims(t *testing.T, store types.TransactionStore) {
	ctx := context.Background()

	const racers = 4
	txIDs := make([]int64, racers)
	for i := range txIDs {
		txIDs[i] = insert(t, store, Fixture("alice", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		claimed int
	)
	for _, id := range txIDs {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := claim(ctx, store, id, "0xshared:7")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, bridgeerrors.ErrDepositClaimed):
				claimed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, racers-1, claimed)

	got, err := store.GetByDeposit(ctx, types.NetworkEthereum, "0xshared:7")
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.ID)
}
