package postgres

import (
	"math/big"
	"testing"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountRoundTrip(t *testing.T) {
	huge, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	got, err := parseAmount(amountString(huge))
	require.NoError(t, err)
	assert.Equal(t, 0, huge.Cmp(got))

	assert.Equal(t, "0", amountString(nil))

	_, err = parseAmount("1.5")
	assert.Error(t, err)
}

func TestMetadataEncoding(t *testing.T) {
	raw, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", raw)

	m, err := decodeMetadata([]byte(`{"error":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, types.Metadata{types.MetaError: "boom"}, m)

	m, err = decodeMetadata(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)

	_, err = decodeMetadata([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	script, err := migrations.ReadFile("migrations/0001_bridge_transactions.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "bridge_transaction_events")

	script, err = migrations.ReadFile("migrations/0002_source_deposit_claims.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "UNIQUE INDEX")
	assert.Contains(t, string(script), "(source_network, source_deposit_tx)")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(errors.Wrap(&pq.Error{Code: "23505"}, "update")))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "40001"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}
