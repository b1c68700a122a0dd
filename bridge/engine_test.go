package bridge

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-engine/chainmanager"
	"github.com/ClipFinance/bridge-engine/chains/mock"
	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/fees"
	"github.com/ClipFinance/bridge-engine/pairs"
	"github.com/ClipFinance/bridge-engine/storage/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ethSender   = "0x1111111111111111111111111111111111111111"
	bscReceiver = "0x2222222222222222222222222222222222222222"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine *Engine
	store  *memory.Store
	clock  *fakeClock
	eth    *mock.Adapter
	bsc    *mock.Adapter
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// newFixture wires an engine with mock adapters for ETHEREUM and BSC only.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := quietLogger()

	registry, err := pairs.NewRegistry(pairs.DefaultTable())
	require.NoError(t, err)

	f := &fixture{
		store: memory.NewStore(),
		clock: newFakeClock(),
		eth:   mock.NewAdapter(types.NetworkEthereum, false, logger),
		bsc:   mock.NewAdapter(types.NetworkBSC, false, logger),
	}

	adapters := chainmanager.NewAdapterRegistry(nil, logger)
	require.NoError(t, adapters.Register(types.NetworkEthereum, f.eth))
	require.NoError(t, adapters.Register(types.NetworkBSC, f.bsc))

	f.engine = NewEngine(registry, f.store, adapters, logger, append([]Option{WithClock(f.clock)}, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, amount *big.Int) *types.BridgeTransaction {
	t.Helper()
	tx, err := f.engine.CreateBridgeTransaction(context.Background(), CreateRequest{
		UserID:             "user-1",
		SourceAddress:      ethSender,
		DestinationAddress: bscReceiver,
		Amount:             amount,
		Direction:          "ETHEREUM_TO_BSC",
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) confirmed(t *testing.T, amount *big.Int) *types.BridgeTransaction {
	t.Helper()
	tx := f.create(t, amount)
	tx, err := f.engine.UpdateBridgeTransactionStatus(context.Background(), tx.ID, types.StatusConfirmedSource, nil)
	require.NoError(t, err)
	return tx
}

func statuses(history []types.StatusChange) []types.BridgeStatus {
	out := make([]types.BridgeStatus, len(history))
	for i, h := range history {
		out[i] = h.To
	}
	return out
}

func TestCreateAtPairMinimum(t *testing.T) {
	f := newFixture(t)
	min := tokens(10)

	tx := f.create(t, min)

	pair, err := f.engine.GetBridgeConfig(types.NetworkEthereum, types.NetworkBSC)
	require.NoError(t, err)

	assert.Positive(t, tx.ID)
	assert.Equal(t, types.StatusInitiated, tx.Status)
	assert.Equal(t, types.Direction("ETHEREUM_TO_BSC"), tx.Direction)
	assert.Equal(t, 0, fees.ComputeFee(min, pair).Cmp(tx.Fee))
	assert.Equal(t, "10000000000000000", tx.Fee.String())
	assert.Len(t, tx.SourceTxHash, 66)
	assert.True(t, f.clock.Now().Equal(tx.CreatedAt))
	assert.Nil(t, tx.CompletedAt)

	stored, err := f.engine.GetBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.SourceTxHash, stored.SourceTxHash)

	history, err := f.engine.GetBridgeTransactionHistory(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.BridgeStatus{types.StatusInitiated}, statuses(history))
}

func TestCreateAmountBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, tokens(1_000_000))

	for _, amount := range []*big.Int{
		new(big.Int).Sub(tokens(10), big.NewInt(1)),
		new(big.Int).Add(tokens(1_000_000), big.NewInt(1)),
		big.NewInt(0),
	} {
		_, err := f.engine.CreateBridgeTransaction(ctx, CreateRequest{
			UserID:             "user-2",
			SourceAddress:      ethSender,
			DestinationAddress: bscReceiver,
			Amount:             amount,
			Direction:          "ETHEREUM_TO_BSC",
		})
		assert.True(t, errors.Is(err, bridgeerrors.ErrAmountOutOfRange), "amount %s: %v", amount, err)
	}

	list, err := f.engine.GetUserBridgeTransactions(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateUnsupportedPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, direction := range []types.Direction{"BSC_TO_SOLANA", "TRON_TO_BSC", "ETHEREUM_TO_ETHEREUM", "garbage"} {
		_, err := f.engine.CreateBridgeTransaction(ctx, CreateRequest{
			UserID:             "user-1",
			SourceAddress:      ethSender,
			DestinationAddress: bscReceiver,
			Amount:             tokens(100),
			Direction:          direction,
		})
		assert.True(t, errors.Is(err, bridgeerrors.ErrUnsupportedPair), "direction %s: %v", direction, err)
	}

	list, err := f.engine.GetUserBridgeTransactions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)

	valid := CreateRequest{
		UserID:             "user-1",
		SourceAddress:      ethSender,
		DestinationAddress: bscReceiver,
		Amount:             tokens(100),
		Direction:          "ETHEREUM_TO_BSC",
	}

	cases := map[string]func(r *CreateRequest){
		"missing user":        func(r *CreateRequest) { r.UserID = " " },
		"missing source":      func(r *CreateRequest) { r.SourceAddress = "" },
		"missing destination": func(r *CreateRequest) { r.DestinationAddress = "" },
		"nil amount":          func(r *CreateRequest) { r.Amount = nil },
		"negative amount":     func(r *CreateRequest) { r.Amount = big.NewInt(-5) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := valid
			mutate(&req)
			_, err := f.engine.CreateBridgeTransaction(context.Background(), req)
			assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest), "%v", err)
		})
	}
}

func TestCreateNormalizesDirection(t *testing.T) {
	f := newFixture(t)

	tx, err := f.engine.CreateBridgeTransaction(context.Background(), CreateRequest{
		UserID:             "user-1",
		SourceAddress:      ethSender,
		DestinationAddress: bscReceiver,
		Amount:             tokens(20),
		Direction:          "ethereum_to_bsc",
	})
	require.NoError(t, err)
	assert.Equal(t, types.Direction("ETHEREUM_TO_BSC"), tx.Direction)
	assert.Equal(t, types.NetworkEthereum, tx.SourceNetwork)
	assert.Equal(t, types.NetworkBSC, tx.DestinationNetwork)
}

func TestUserTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, tokens(10))
	f.clock.Advance(time.Second)
	second := f.create(t, tokens(11))

	list, err := f.engine.GetUserBridgeTransactions(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestCompleteSucceeds(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.clock.Advance(time.Minute)

	done, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, done.Status)
	assert.NotEmpty(t, done.Metadata[types.MetaDestinationTxID])
	assert.Equal(t, "9990000000000000000", done.Metadata[types.MetaDestinationAmount])
	require.NotNil(t, done.CompletedAt)
	assert.True(t, f.clock.Now().Equal(*done.CompletedAt))

	calls := f.bsc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, mock.OpMintOrRelease, calls[0].Op)
	assert.Equal(t, bscReceiver, calls[0].Address)
	assert.Equal(t, "9990000000000000000", calls[0].Amount.String())
	assert.Equal(t, calls[0].TxID, done.Metadata[types.MetaDestinationTxID])

	history, err := f.engine.GetBridgeTransactionHistory(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.BridgeStatus{
		types.StatusInitiated,
		types.StatusConfirmedSource,
		types.StatusMinting,
		types.StatusCompleted,
	}, statuses(history))
}

func TestCompleteFailureThenRevert(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.bsc.FailNext(mock.OpMintOrRelease, errors.New("insufficient liquidity"))

	failed, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Metadata[types.MetaError], "insufficient liquidity")
	require.NotNil(t, failed.CompletedAt)
	failedAt := *failed.CompletedAt

	f.clock.Advance(time.Hour)
	reverted, err := f.engine.RevertBridgeTransaction(context.Background(), tx.ID, "destination mint failed")
	require.NoError(t, err)

	assert.Equal(t, types.StatusReverted, reverted.Status)
	assert.Equal(t, "destination mint failed", reverted.Metadata[types.MetaRevertReason])
	assert.Equal(t, types.StatusFailed.String(), reverted.Metadata[types.MetaRevertedFrom])
	assert.NotEmpty(t, reverted.Metadata[types.MetaRefundTxID])
	assert.Contains(t, reverted.Metadata[types.MetaError], "insufficient liquidity")
	require.NotNil(t, reverted.CompletedAt)
	assert.True(t, failedAt.Equal(*reverted.CompletedAt))

	refunds := f.eth.Calls()
	require.Len(t, refunds, 1)
	assert.Equal(t, mock.OpRefund, refunds[0].Op)
	assert.Equal(t, ethSender, refunds[0].Address)
	assert.Equal(t, 0, tokens(10).Cmp(refunds[0].Amount))
}

func TestCompleteRequiresConfirmedSource(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, tokens(10))

	_, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState), "%v", err)

	done, err := f.engine.UpdateBridgeTransactionStatus(context.Background(), tx.ID, types.StatusConfirmedSource, nil)
	require.NoError(t, err)
	_, err = f.engine.CompleteBridgeTransaction(context.Background(), done.ID)
	require.NoError(t, err)

	_, err = f.engine.CompleteBridgeTransaction(context.Background(), done.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState), "%v", err)
	assert.Equal(t, 1, f.bsc.CallCount(mock.OpMintOrRelease))

	_, err = f.engine.CompleteBridgeTransaction(context.Background(), 9999)
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound))
}

func TestTerminalStatusKeepsCompletedAt(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, tokens(10))
	ctx := context.Background()

	first, err := f.engine.UpdateBridgeTransactionStatus(ctx, tx.ID, types.StatusCompleted, types.Metadata{"note": "manual"})
	require.NoError(t, err)
	require.NotNil(t, first.CompletedAt)

	f.clock.Advance(time.Hour)
	second, err := f.engine.UpdateBridgeTransactionStatus(ctx, tx.ID, types.StatusCompleted, types.Metadata{"operator": "ops-1"})
	require.NoError(t, err)

	assert.True(t, first.CompletedAt.Equal(*second.CompletedAt))
	assert.True(t, f.clock.Now().Equal(second.UpdatedAt))
	assert.Equal(t, "manual", second.Metadata["note"])
	assert.Equal(t, "ops-1", second.Metadata["operator"])
}

func TestUpdateStatusValidation(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, tokens(10))

	_, err := f.engine.UpdateBridgeTransactionStatus(context.Background(), tx.ID, "PENDING", nil)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	_, err = f.engine.UpdateBridgeTransactionStatus(context.Background(), 4242, types.StatusFailed, nil)
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound))

	// Non-terminal statuses leave completedAt unset.
	updated, err := f.engine.UpdateBridgeTransactionStatus(context.Background(), tx.ID, types.StatusMinting, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.CompletedAt)
}

func TestConcurrentCompleteMintsOnce(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.bsc.SetLatency(50 * time.Millisecond)

	const callers = 2
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, bridgeerrors.ErrInvalidState):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, f.bsc.CallCount(mock.OpMintOrRelease))

	final, err := f.engine.GetBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, final.Status)
}

func TestConcurrentRevertRefundsOnce(t *testing.T) {
	f := newFixture(t)
	tx := f.create(t, tokens(10))
	f.eth.SetLatency(50 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.RevertBridgeTransaction(context.Background(), tx.ID, "user cancelled")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState), "%v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.eth.CallCount(mock.OpRefund))

	final, err := f.engine.GetBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusReverted, final.Status)
	assert.Equal(t, types.StatusInitiated.String(), final.Metadata[types.MetaRevertedFrom])
}

func TestRevertRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx := f.create(t, tokens(10))
	_, err := f.engine.RevertBridgeTransaction(ctx, tx.ID, "  ")
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	for _, status := range []types.BridgeStatus{types.StatusCompleted, types.StatusReverted, types.StatusReverting} {
		tx := f.create(t, tokens(10))
		_, err := f.engine.UpdateBridgeTransactionStatus(ctx, tx.ID, status, nil)
		require.NoError(t, err)

		_, err = f.engine.RevertBridgeTransaction(ctx, tx.ID, "too late")
		assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState), "from %s: %v", status, err)
	}
	assert.Zero(t, f.eth.CallCount(mock.OpRefund))
}

func TestRevertRefundFailure(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.eth.FailNext(mock.OpRefund, errors.New("nonce too low"))

	failed, err := f.engine.RevertBridgeTransaction(context.Background(), tx.ID, "operator abort")
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Metadata[types.MetaRevertError], "Failed to revert: ")
	assert.Contains(t, failed.Metadata[types.MetaRevertError], "nonce too low")
	assert.Equal(t, failed.Metadata[types.MetaRevertError], failed.Metadata[types.MetaError])
	assert.Equal(t, types.StatusConfirmedSource.String(), failed.Metadata[types.MetaRevertedFrom])
	assert.NotNil(t, failed.CompletedAt)
}

func TestRevertFailureKeepsMintError(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.bsc.FailNext(mock.OpMintOrRelease, errors.New("insufficient liquidity"))

	failed, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, failed.Status)
	mintErr := failed.Metadata[types.MetaError]
	require.Contains(t, mintErr, "insufficient liquidity")

	f.eth.FailNext(mock.OpRefund, errors.New("nonce too low"))
	failed, err = f.engine.RevertBridgeTransaction(context.Background(), tx.ID, "destination mint failed")
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Equal(t, mintErr, failed.Metadata[types.MetaError])
	assert.Contains(t, failed.Metadata[types.MetaRevertError], "Failed to revert: ")
	assert.Contains(t, failed.Metadata[types.MetaRevertError], "nonce too low")
	assert.Equal(t, types.StatusFailed.String(), failed.Metadata[types.MetaRevertedFrom])
}

func TestAdapterTimeoutFailsTransaction(t *testing.T) {
	f := newFixture(t, WithAdapterTimeout(20*time.Millisecond))
	tx := f.confirmed(t, tokens(10))
	f.bsc.SetLatency(time.Second)

	failed, err := f.engine.CompleteBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Metadata[types.MetaError], "timed out")
}

func TestCompleteSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	tx := f.confirmed(t, tokens(10))
	f.bsc.SetLatency(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	failed, err := f.engine.CompleteBridgeTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, failed.Status)

	stored, err := f.engine.GetBridgeTransaction(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, stored.Status)
}

func TestVerifySourceTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, tokens(10))

	ok, err := f.engine.VerifySourceTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.eth.SetDeposit(ethSender, tokens(10), 11)
	ok, err = f.engine.VerifySourceTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	f.eth.SetDeposit(ethSender, tokens(10), 12)
	ok, err = f.engine.VerifySourceTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := f.engine.GetBridgeTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitiated, stored.Status)

	_, err = f.engine.VerifySourceTransaction(ctx, 777)
	assert.True(t, errors.Is(err, bridgeerrors.ErrTransactionNotFound))

	f.eth.FailNext(mock.OpVerifyDeposit, errors.New("rpc timeout"))
	_, err = f.engine.VerifySourceTransaction(ctx, tx.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterOperationFailed), "%v", err)
}

func TestVerifyWithoutAdapter(t *testing.T) {
	f := newFixture(t)

	tx, err := f.engine.CreateBridgeTransaction(context.Background(), CreateRequest{
		UserID:             "user-1",
		SourceAddress:      "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		DestinationAddress: ethSender,
		Amount:             big.NewInt(50_000_000_000),
		Direction:          "SOLANA_TO_ETHEREUM",
	})
	require.NoError(t, err)

	_, err = f.engine.VerifySourceTransaction(context.Background(), tx.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable), "%v", err)
	assert.True(t, bridgeerrors.IsRetryable(err))
}

func TestConfirmSourceTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, tokens(10))

	same, confirmed, err := f.engine.ConfirmSourceTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.Equal(t, types.StatusInitiated, same.Status)

	f.eth.SetDeposit(ethSender, tokens(10), 40)
	updated, confirmed, err := f.engine.ConfirmSourceTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, types.StatusConfirmedSource, updated.Status)

	_, _, err = f.engine.ConfirmSourceTransaction(ctx, tx.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState))
}

func TestDepositBacksOneTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, tokens(10))
	second := f.create(t, tokens(10))
	deposit := f.eth.SetDeposit(ethSender, tokens(10), 12)

	confirmed, ok, err := f.engine.ConfirmSourceTransaction(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, deposit, confirmed.Metadata[types.MetaSourceDepositTx])

	done, err := f.engine.CompleteBridgeTransaction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, done.Status)

	// The same on-chain deposit must not confirm a second transaction.
	verified, err := f.engine.VerifySourceTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, verified)

	same, ok, err := f.engine.ConfirmSourceTransaction(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, types.StatusInitiated, same.Status)

	_, err = f.engine.CompleteBridgeTransaction(ctx, second.ID)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState), "%v", err)
	assert.Equal(t, 1, f.bsc.CallCount(mock.OpMintOrRelease))

	// A fresh deposit of the same amount backs the second transaction.
	next := f.eth.AddDeposit(ethSender, tokens(10), 12)
	confirmed, ok, err = f.engine.ConfirmSourceTransaction(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, confirmed.Metadata[types.MetaSourceDepositTx])

	owner, err := f.store.GetByDeposit(ctx, types.NetworkEthereum, deposit)
	require.NoError(t, err)
	assert.Equal(t, first.ID, owner.ID)
}

func TestConcurrentConfirmsShareNoDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 4
	txs := make([]*types.BridgeTransaction, n)
	for i := range txs {
		txs[i] = f.create(t, tokens(10))
	}
	f.eth.SetDeposit(ethSender, tokens(10), 12)
	f.eth.AddDeposit(ethSender, tokens(10), 12)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
	)
	for _, tx := range txs {
		tx := tx
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := f.engine.ConfirmSourceTransaction(ctx, tx.ID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				confirmed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, confirmed)

	claimed := map[string]int64{}
	for _, tx := range txs {
		stored, err := f.engine.GetBridgeTransaction(ctx, tx.ID)
		require.NoError(t, err)
		if deposit := stored.Metadata[types.MetaSourceDepositTx]; deposit != "" {
			_, dup := claimed[deposit]
			assert.False(t, dup, "deposit %s claimed twice", deposit)
			claimed[deposit] = tx.ID
		}
	}
	assert.Len(t, claimed, 2)
}

func TestExpireBridgeTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := f.create(t, tokens(10))

	expired, err := f.engine.ExpireBridgeTransaction(ctx, tx.ID, "deposit not seen within 24h")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, expired.Status)
	assert.Equal(t, "deposit not seen within 24h", expired.Metadata[types.MetaExpiredReason])
	assert.NotNil(t, expired.CompletedAt)

	_, err = f.engine.ExpireBridgeTransaction(ctx, tx.ID, "again")
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidState))
}

func TestFeeAndConfigQueries(t *testing.T) {
	f := newFixture(t)

	fee, err := f.engine.CalculateBridgeFee(tokens(1000), "ETHEREUM_TO_BSC")
	require.NoError(t, err)
	assert.Equal(t, 0, tokens(1).Cmp(fee))

	fee, err = f.engine.CalculateBridgeFee(big.NewInt(0), "BSC_TO_ETHEREUM")
	require.NoError(t, err)
	assert.Zero(t, fee.Sign())

	_, err = f.engine.CalculateBridgeFee(big.NewInt(-1), "ETHEREUM_TO_BSC")
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	_, err = f.engine.CalculateBridgeFee(tokens(1), "SOLANA_TO_BSC")
	assert.True(t, errors.Is(err, bridgeerrors.ErrUnsupportedPair))

	_, err = f.engine.GetBridgeConfig(types.NetworkBSC, types.NetworkSolana)
	assert.True(t, errors.Is(err, bridgeerrors.ErrUnsupportedPair))

	assert.Len(t, f.engine.ListBridgeConfigs(), 4)
}

func TestTransactionsByStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, tokens(10))
	f.clock.Advance(time.Second)
	second := f.create(t, tokens(10))
	f.clock.Advance(time.Second)
	f.confirmed(t, tokens(10))

	list, err := f.engine.GetBridgeTransactionsByStatus(ctx, types.StatusInitiated, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	list, err = f.engine.GetBridgeTransactionsByStatus(ctx, types.StatusInitiated, first.ID, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = f.engine.GetBridgeTransactionsByStatus(ctx, "BOGUS", 0, 1)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))

	_, err = f.engine.GetBridgeTransactionsByStatus(ctx, types.StatusInitiated, -1, 1)
	assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest))
}

func TestKeccakHasherDeterministic(t *testing.T) {
	tx := &types.BridgeTransaction{
		UserID:             "user-1",
		SourceAddress:      ethSender,
		DestinationAddress: bscReceiver,
		Amount:             tokens(10),
		Direction:          "ETHEREUM_TO_BSC",
		CreatedAt:          time.Unix(1_700_000_000, 0),
	}

	first, err := KeccakHasher{}.Hash(tx)
	require.NoError(t, err)
	again, err := KeccakHasher{}.Hash(tx.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", first)

	later := tx.Clone()
	later.CreatedAt = later.CreatedAt.Add(time.Millisecond)
	other, err := KeccakHasher{}.Hash(later)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = KeccakHasher{}.Hash(&types.BridgeTransaction{})
	assert.Error(t, err)
}

func TestSourceTxHashSurvivesStoredTimestamps(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, now, now.Truncate(time.Millisecond))

	tx := &types.BridgeTransaction{
		UserID:             "user-1",
		SourceAddress:      ethSender,
		DestinationAddress: bscReceiver,
		Amount:             tokens(10),
		Direction:          "ETHEREUM_TO_BSC",
		CreatedAt:          time.Date(2024, 6, 1, 12, 0, 0, 123456789, time.UTC),
	}
	want, err := KeccakHasher{}.Hash(tx)
	require.NoError(t, err)

	// postgres keeps microseconds, mongo milliseconds.
	for _, precision := range []time.Duration{time.Microsecond, time.Millisecond} {
		stored := tx.Clone()
		stored.CreatedAt = tx.CreatedAt.Truncate(precision)
		got, err := KeccakHasher{}.Hash(stored)
		require.NoError(t, err)
		assert.Equal(t, want, got, "precision %s", precision)
	}
}
