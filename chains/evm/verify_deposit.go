package evm

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// maxLogRange bounds the block span of a single eth_getLogs request.
const maxLogRange = 2000

// VerifyDeposit scans recent token Transfer logs from address to the vault
// for the ones carrying exactly amount with at least confirmations
// confirmations.
//
// Parameters:
// - ctx: the context for managing the request.
// - address: the depositor address.
// - amount: the deposited amount in token minor units.
// - confirmations: the required confirmation count.
//
// Returns:
// - []string: the matching deposits as "<tx hash>:<log index>", oldest first.
// - error: an error if the node could not be queried, or one wrapping ErrInvalidRequest for a malformed address.
func (e *evm) VerifyDeposit(ctx context.Context, address string, amount *big.Int, confirmations uint64) ([]string, error) {
	from, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	client, err := e.getClient()
	if err != nil {
		return nil, err
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get current block number")
	}

	lookback := e.config.DepositLookback
	if lookback == 0 {
		lookback = defaultDepositLookback
	}
	start := uint64(0)
	if head > lookback {
		start = head - lookback
	}

	var logs []ethtypes.Log
	for fromBlock := start; fromBlock <= head; fromBlock += maxLogRange {
		toBlock := fromBlock + maxLogRange - 1
		if toBlock > head {
			toBlock = head
		}

		batch, err := client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(fromBlock),
			ToBlock:   new(big.Int).SetUint64(toBlock),
			Addresses: []common.Address{e.token},
			Topics: [][]common.Hash{
				{transferTopic},
				{common.BytesToHash(from.Bytes())},
				{common.BytesToHash(e.vault.Bytes())},
			},
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to filter logs in blocks %d-%d", fromBlock, toBlock)
		}
		logs = append(logs, batch...)
	}

	deposits := confirmedDeposits(logs, amount, head, confirmations)

	e.logger.WithFields(logrus.Fields{
		"network":  e.config.Network,
		"from":     from.Hex(),
		"amount":   amount.String(),
		"logs":     len(logs),
		"deposits": len(deposits),
		"required": confirmations,
	}).Debug("Deposit lookup finished")

	return deposits, nil
}

// depositID names a transfer log by its transaction and position in the block.
func depositID(l ethtypes.Log) string {
	return fmt.Sprintf("%s:%d", l.TxHash.Hex(), l.Index)
}

// confirmedDeposits returns the ids of the non-removed logs whose value equals
// amount and that have at least confirmations confirmations, in chain order.
// A log in the head block has one confirmation.
func confirmedDeposits(logs []ethtypes.Log, amount *big.Int, head, confirmations uint64) []string {
	matched := make([]ethtypes.Log, 0, len(logs))
	for _, l := range logs {
		if l.Removed || l.BlockNumber > head {
			continue
		}
		if new(big.Int).SetBytes(l.Data).Cmp(amount) != 0 {
			continue
		}
		if head-l.BlockNumber+1 < confirmations {
			continue
		}
		matched = append(matched, l)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].BlockNumber != matched[j].BlockNumber {
			return matched[i].BlockNumber < matched[j].BlockNumber
		}
		return matched[i].Index < matched[j].Index
	})

	seen := make(map[string]struct{}, len(matched))
	out := make([]string, 0, len(matched))
	for _, l := range matched {
		id := depositID(l)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
