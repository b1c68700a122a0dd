package chainmanager

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/common/types/mocks"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() *types.NetworkConfig {
	return &types.NetworkConfig{Network: types.NetworkBSC, ChainType: types.EVM}
}

func TestAdapterDelegatesToCapabilities(t *testing.T) {
	ctrl := gomock.NewController(t)
	impl := mocks.NewMockNetworkAdapter(ctrl)
	amount := big.NewInt(42)

	impl.EXPECT().VerifyDeposit(gomock.Any(), "0xfrom", amount, uint64(12)).Return([]string{"0xdep:0"}, nil)
	impl.EXPECT().MintOrRelease(gomock.Any(), "0xto", amount).Return("0xmint", nil)
	impl.EXPECT().Refund(gomock.Any(), "0xfrom", amount).Return("0xrefund", nil)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithDepositVerifier(impl).
		WithMinter(impl).
		WithRefunder(impl).
		Build()

	deposits, err := adapter.VerifyDeposit(context.Background(), "0xfrom", amount, 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xdep:0"}, deposits)

	txID, err := adapter.MintOrRelease(context.Background(), "0xto", amount)
	require.NoError(t, err)
	assert.Equal(t, "0xmint", txID)

	txID, err = adapter.Refund(context.Background(), "0xfrom", amount)
	require.NoError(t, err)
	assert.Equal(t, "0xrefund", txID)
}

func TestAdapterMissingCapabilityIsUnavailable(t *testing.T) {
	adapter := NewAdapterBuilder(testConfig(), testLogger()).Build()

	_, err := adapter.VerifyDeposit(context.Background(), "a", big.NewInt(1), 1)
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable))

	_, err = adapter.MintOrRelease(context.Background(), "a", big.NewInt(1))
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable))

	_, err = adapter.Refund(context.Background(), "a", big.NewInt(1))
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable))
}

func TestAdapterTimeoutIsOperationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	minter := mocks.NewMockMinter(ctrl)
	minter.EXPECT().MintOrRelease(gomock.Any(), "0xto", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ *big.Int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithMinter(minter).
		WithTimeout(20 * time.Millisecond).
		Build()

	_, err := adapter.MintOrRelease(context.Background(), "0xto", big.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterOperationFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
}

func TestAdapterCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	refunder := mocks.NewMockRefunder(ctrl)
	refunder.EXPECT().Refund(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("rpc down")).Times(2)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithRefunder(refunder).
		WithCircuitBreaker(2, time.Hour).
		Build()
	require.True(t, adapter.Healthy())

	for i := 0; i < 2; i++ {
		_, err := adapter.Refund(context.Background(), "a", big.NewInt(1))
		assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterOperationFailed))
	}

	// The third call never reaches the refunder.
	_, err := adapter.Refund(context.Background(), "a", big.NewInt(1))
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable))
	assert.False(t, adapter.Healthy())
}

func TestAdapterCircuitIgnoresInvalidInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockDepositVerifier(ctrl)
	verifier.EXPECT().VerifyDeposit(gomock.Any(), "not-an-address", gomock.Any(), gomock.Any()).
		Return(nil, errors.Wrap(bridgeerrors.ErrInvalidRequest, "invalid address \"not-an-address\"")).Times(5)
	verifier.EXPECT().VerifyDeposit(gomock.Any(), "0xfrom", gomock.Any(), gomock.Any()).
		Return([]string{"0xdep:0"}, nil)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithDepositVerifier(verifier).
		WithCircuitBreaker(2, time.Hour).
		Build()

	// Malformed user input says nothing about the network.
	for i := 0; i < 5; i++ {
		_, err := adapter.VerifyDeposit(context.Background(), "not-an-address", big.NewInt(1), 1)
		assert.True(t, errors.Is(err, bridgeerrors.ErrInvalidRequest), "%v", err)
		assert.False(t, errors.Is(err, bridgeerrors.ErrAdapterUnavailable), "%v", err)
	}
	assert.True(t, adapter.Healthy())

	deposits, err := adapter.VerifyDeposit(context.Background(), "0xfrom", big.NewInt(1), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xdep:0"}, deposits)
}

func TestAdapterCircuitIgnoresCallerCancellation(t *testing.T) {
	ctrl := gomock.NewController(t)
	minter := mocks.NewMockMinter(ctrl)
	minter.EXPECT().MintOrRelease(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", context.Canceled).Times(3)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithMinter(minter).
		WithCircuitBreaker(2, time.Hour).
		Build()

	for i := 0; i < 3; i++ {
		_, err := adapter.MintOrRelease(context.Background(), "0xto", big.NewInt(1))
		assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	}
	assert.True(t, adapter.Healthy())
}

func TestNetworkFailure(t *testing.T) {
	assert.False(t, networkFailure(nil))
	assert.False(t, networkFailure(errors.Wrap(bridgeerrors.ErrInvalidRequest, "bad address")))
	assert.False(t, networkFailure(errors.Wrap(context.Canceled, "caller left")))
	assert.True(t, networkFailure(errors.New("connection refused")))
	assert.True(t, networkFailure(context.DeadlineExceeded))
}

func TestAdapterHealthFollowsReporter(t *testing.T) {
	ctrl := gomock.NewController(t)
	health := mocks.NewMockHealthReporter(ctrl)
	health.EXPECT().Healthy().Return(false)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).WithHealthReporter(health).Build()
	assert.False(t, adapter.Healthy())
}

func TestAdapterRateLimitHonoursContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	verifier := mocks.NewMockDepositVerifier(ctrl)
	verifier.EXPECT().VerifyDeposit(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)

	adapter := NewAdapterBuilder(testConfig(), testLogger()).
		WithDepositVerifier(verifier).
		WithRateLimit(0.001, 1).
		Build()

	_, err := adapter.VerifyDeposit(context.Background(), "a", big.NewInt(1), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = adapter.VerifyDeposit(ctx, "a", big.NewInt(1), 1)
	assert.True(t, errors.Is(err, bridgeerrors.ErrAdapterOperationFailed))
}
