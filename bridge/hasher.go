package bridge

import (
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// TxHasher derives the source transaction hash recorded at creation.
type TxHasher interface {
	Hash(tx *types.BridgeTransaction) (string, error)
}

var hashArguments = mustArguments("string", "string", "string", "uint256", "string", "int64")

func mustArguments(names ...string) abi.Arguments {
	args := make(abi.Arguments, len(names))
	for i, name := range names {
		t, err := abi.NewType(name, "", nil)
		if err != nil {
			panic(err)
		}
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// KeccakHasher hashes the ABI encoding of (userId, sourceAddress,
// destinationAddress, amount, direction, createdAt in unix milliseconds).
// Millisecond precision survives every store, so a reloaded record hashes
// to its stored sourceTxHash.
type KeccakHasher struct{}

// Hash returns the 0x-prefixed keccak256 digest of the transaction's identifying fields.
func (KeccakHasher) Hash(tx *types.BridgeTransaction) (string, error) {
	if tx.Amount == nil {
		return "", errors.New("cannot hash transaction without amount")
	}

	packed, err := hashArguments.Pack(
		tx.UserID,
		tx.SourceAddress,
		tx.DestinationAddress,
		tx.Amount,
		tx.Direction.String(),
		tx.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode transaction for hashing")
	}

	return crypto.Keccak256Hash(packed).Hex(), nil
}
