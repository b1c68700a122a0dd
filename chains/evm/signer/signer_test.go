package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignTxRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s, err := NewSigner(key)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.Address())

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	chainID := big.NewInt(56)
	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     7,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       60000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	sender, err := ethtypes.Sender(ethtypes.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
}

func TestSignTxRequiresChainID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := NewSigner(key)
	require.NoError(t, err)

	_, err = s.SignTx(ethtypes.NewTx(&ethtypes.LegacyTx{}), nil)
	assert.Error(t, err)

	_, err = NewSigner(nil)
	assert.Error(t, err)
}
