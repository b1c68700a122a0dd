package watcher

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-engine/bridge"
	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/chains/mock"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/pairs"
	"github.com/ClipFinance/bridge-engine/storage/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	engine *bridge.Engine
	clock  *clock
	eth    *mock.Adapter
	bsc    *mock.Adapter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	table, err := pairs.NewRegistry(pairs.DefaultTable())
	require.NoError(t, err)

	h := &harness{
		clock: &clock{now: start},
		eth:   mock.NewAdapter(types.NetworkEthereum, false, logger),
		bsc:   mock.NewAdapter(types.NetworkBSC, false, logger),
	}
	adapters := chainmanager.NewAdapterRegistry(nil, logger)
	require.NoError(t, adapters.Register(types.NetworkEthereum, h.eth))
	require.NoError(t, adapters.Register(types.NetworkBSC, h.bsc))

	h.engine = bridge.NewEngine(table, memory.NewStore(), adapters, logger, bridge.WithClock(h.clock))
	return h
}

func (h *harness) watcher(cfg Config) *Watcher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewWatcher(h.engine, cfg, logger, WithClock(h.clock.Now))
}

func amount(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func (h *harness) create(t *testing.T, source string, n int64) *types.BridgeTransaction {
	t.Helper()
	tx, err := h.engine.CreateBridgeTransaction(context.Background(), bridge.CreateRequest{
		UserID:             "user-1",
		SourceAddress:      source,
		DestinationAddress: "0x2222222222222222222222222222222222222222",
		Amount:             amount(n),
		Direction:          "ETHEREUM_TO_BSC",
	})
	require.NoError(t, err)
	return tx
}

func (h *harness) status(t *testing.T, id int64) types.BridgeStatus {
	t.Helper()
	tx, err := h.engine.GetBridgeTransaction(context.Background(), id)
	require.NoError(t, err)
	return tx.Status
}

func TestRunOnceConfirmsAndExpires(t *testing.T) {
	h := newHarness(t)

	stale := h.create(t, "0xaaaa000000000000000000000000000000000001", 10)
	h.clock.now = start.Add(23 * time.Hour)
	confirmed := h.create(t, "0xaaaa000000000000000000000000000000000002", 20)
	waiting := h.create(t, "0xaaaa000000000000000000000000000000000003", 30)

	h.eth.SetDeposit("0xaaaa000000000000000000000000000000000002", amount(20), 12)
	h.eth.SetDeposit("0xaaaa000000000000000000000000000000000003", amount(30), 3)
	h.clock.now = start.Add(25 * time.Hour)

	w := h.watcher(Config{ExpireAfter: 24 * time.Hour, Workers: 2})
	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{OutcomeExpired: 1, OutcomeConfirmed: 1, OutcomePending: 1}, summary)
	assert.Equal(t, types.StatusFailed, h.status(t, stale.ID))
	assert.Equal(t, types.StatusConfirmedSource, h.status(t, confirmed.ID))
	assert.Equal(t, types.StatusInitiated, h.status(t, waiting.ID))
	assert.Zero(t, h.bsc.CallCount(mock.OpMintOrRelease))

	expired, err := h.engine.GetBridgeTransaction(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, "deposit not confirmed within 24h0m0s", expired.Metadata[types.MetaExpiredReason])
}

func TestRunOnceAutoCompletes(t *testing.T) {
	h := newHarness(t)

	tx := h.create(t, "0xbbbb000000000000000000000000000000000001", 10)
	h.eth.SetDeposit("0xbbbb000000000000000000000000000000000001", amount(10), 12)

	// A transaction confirmed earlier whose mint never ran.
	leftover := h.create(t, "0xbbbb000000000000000000000000000000000002", 10)
	_, err := h.engine.UpdateBridgeTransactionStatus(context.Background(), leftover.ID, types.StatusConfirmedSource, nil)
	require.NoError(t, err)

	w := h.watcher(Config{AutoComplete: true})
	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary[OutcomeCompleted])
	assert.Equal(t, types.StatusCompleted, h.status(t, tx.ID))
	assert.Equal(t, types.StatusCompleted, h.status(t, leftover.ID))
	assert.Equal(t, 2, h.bsc.CallCount(mock.OpMintOrRelease))
}

func TestRunOnceRecordsFailuresAndErrors(t *testing.T) {
	h := newHarness(t)

	// With one worker the oldest transaction takes the queued verify failure.
	broken := h.create(t, "0xcccc000000000000000000000000000000000002", 10)
	h.eth.FailNext(mock.OpVerifyDeposit, errors.New("rpc unavailable"))

	minted := h.create(t, "0xcccc000000000000000000000000000000000001", 10)
	h.eth.SetDeposit("0xcccc000000000000000000000000000000000001", amount(10), 12)
	h.bsc.FailNext(mock.OpMintOrRelease, errors.New("out of gas"))

	w := h.watcher(Config{AutoComplete: true, Workers: 1})
	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary[OutcomeFailed])
	assert.Equal(t, 1, summary[OutcomeError])
	assert.Equal(t, types.StatusFailed, h.status(t, minted.ID))
	assert.Equal(t, types.StatusInitiated, h.status(t, broken.ID))
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	tx := h.create(t, "0xdddd000000000000000000000000000000000001", 10)
	h.eth.SetDeposit("0xdddd000000000000000000000000000000000001", amount(10), 100)

	w := h.watcher(Config{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.status(t, tx.ID) == types.StatusConfirmedSource
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewWatcherDefaults(t *testing.T) {
	w := NewWatcher(nil, Config{}, logrus.New())
	assert.Equal(t, defaultInterval, w.config.Interval)
	assert.Equal(t, defaultBatchSize, w.config.BatchSize)
	assert.Equal(t, defaultWorkers, w.config.Workers)
}

func TestRunOncePagesPastPendingTransactions(t *testing.T) {
	h := newHarness(t)

	// The two oldest never see a deposit and would fill every batch.
	h.create(t, "0xeeee000000000000000000000000000000000001", 10)
	h.create(t, "0xeeee000000000000000000000000000000000002", 10)
	ready := h.create(t, "0xeeee000000000000000000000000000000000003", 10)
	h.eth.SetDeposit("0xeeee000000000000000000000000000000000003", amount(10), 12)

	w := h.watcher(Config{BatchSize: 2, Workers: 1})

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{OutcomePending: 2}, summary)
	assert.Equal(t, types.StatusInitiated, h.status(t, ready.ID))

	summary, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{OutcomeConfirmed: 1}, summary)
	assert.Equal(t, types.StatusConfirmedSource, h.status(t, ready.ID))

	// The short page ended the pass, so the next poll starts over.
	summary, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{OutcomePending: 2}, summary)
}
