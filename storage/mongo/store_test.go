package mongo

import (
	"math/big"
	"testing"
	"time"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/storage/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentMapping(t *testing.T) {
	tx := storetest.Fixture("alice", 3)
	tx.ID = 9
	completedAt := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	tx.CompletedAt = &completedAt

	doc := toDoc(tx)
	doc.ID = tx.ID
	assert.Equal(t, "1000000000000000000000", doc.Amount)
	assert.Equal(t, "ETHEREUM_TO_BSC", doc.Direction)

	got, err := fromDoc(doc)
	require.NoError(t, err)
	assert.Equal(t, tx, got)

	// The document owns its own metadata map.
	doc.Metadata["channel"] = "changed"
	assert.Equal(t, "test", tx.Metadata["channel"])
}

func TestFromDocRejectsCorruptAmount(t *testing.T) {
	doc := toDoc(storetest.Fixture("alice", 0))
	doc.Amount = "12abc"

	_, err := fromDoc(doc)
	assert.Error(t, err)

	doc = toDoc(storetest.Fixture("alice", 0))
	doc.Fee = ""
	_, err = fromDoc(doc)
	assert.Error(t, err)
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "0", amountString(nil))
	assert.Equal(t, "42", amountString(big.NewInt(42)))
	assert.Equal(t, types.Metadata{}, types.Metadata(nil).Clone())
}
