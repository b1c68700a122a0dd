// Package mock provides an in-process network adapter whose deposits and
// failures are set by the caller. It backs local runs and tests.
package mock

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Operation names reported in Call.
const (
	OpVerifyDeposit = "verify_deposit"
	OpMintOrRelease = "mint_or_release"
	OpRefund        = "refund"
)

// Call records one adapter invocation.
type Call struct {
	Op      string
	Address string
	Amount  *big.Int
	TxID    string
}

type deposit struct {
	id            string
	confirmations uint64
}

// Adapter is a scriptable types.NetworkAdapter.
type Adapter struct {
	network types.Network
	logger  *logrus.Logger

	mu          sync.Mutex
	autoConfirm bool
	deposits    map[string][]deposit
	failures    map[string][]error
	latency     time.Duration
	calls       []Call
}

// NewAdapter creates a mock adapter for network. With autoConfirm every
// address and amount without recorded deposits reports one fresh confirmed
// deposit per call.
func NewAdapter(network types.Network, autoConfirm bool, logger *logrus.Logger) *Adapter {
	return &Adapter{
		network:     network,
		logger:      logger,
		autoConfirm: autoConfirm,
		deposits:    make(map[string][]deposit),
		failures:    make(map[string][]error),
	}
}

// NewMockAdapter matches the adapter constructor signature used by the chain factory.
func NewMockAdapter(_ context.Context, config *types.NetworkConfig, logger *logrus.Logger) (types.NetworkAdapter, error) {
	return NewAdapter(config.Network, true, logger), nil
}

func depositKey(address string, amount *big.Int) string {
	return strings.ToLower(address) + "/" + amount.String()
}

// SetDeposit makes a single deposit of amount from address with the given
// confirmations the only one recorded for them. Repeated calls keep its id.
//
// Returns:
// - string: the deposit id.
func (a *Adapter) SetDeposit(address string, amount *big.Int, confirmations uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := depositKey(address, amount)
	a.deposits[key] = []deposit{{id: key + ":0", confirmations: confirmations}}
	return key + ":0"
}

// AddDeposit records one more deposit of amount from address.
//
// Returns:
// - string: the deposit id.
func (a *Adapter) AddDeposit(address string, amount *big.Int, confirmations uint64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := depositKey(address, amount)
	id := fmt.Sprintf("%s:%d", key, len(a.deposits[key]))
	a.deposits[key] = append(a.deposits[key], deposit{id: id, confirmations: confirmations})
	return id
}

// FailNext makes the next call of op return err. Failures queue up.
func (a *Adapter) FailNext(op string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[op] = append(a.failures[op], err)
}

// SetLatency delays every call by d, or until the context is done.
func (a *Adapter) SetLatency(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.latency = d
}

// Calls returns the recorded invocations in order.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (a *Adapter) CallCount(op string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// begin records the call, waits for the configured latency and pops a queued failure.
func (a *Adapter) begin(ctx context.Context, op, address string, amount *big.Int) (int, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Op: op, Address: address, Amount: new(big.Int).Set(amount)})
	idx := len(a.calls) - 1
	latency := a.latency
	var err error
	if queued := a.failures[op]; len(queued) > 0 {
		err = queued[0]
		a.failures[op] = queued[1:]
	}
	a.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return idx, ctx.Err()
		case <-timer.C:
		}
	}
	return idx, err
}

func (a *Adapter) finish(idx int, txID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[idx].TxID = txID
	return txID
}

// VerifyDeposit implements types.DepositVerifier.
func (a *Adapter) VerifyDeposit(ctx context.Context, address string, amount *big.Int, confirmations uint64) ([]string, error) {
	if _, err := a.begin(ctx, OpVerifyDeposit, address, amount); err != nil {
		return nil, err
	}

	a.mu.Lock()
	recorded, known := a.deposits[depositKey(address, amount)]
	auto := a.autoConfirm
	a.mu.Unlock()

	if !known {
		if auto {
			return []string{a.txID("deposit")}, nil
		}
		return nil, nil
	}

	var ids []string
	for _, d := range recorded {
		if d.confirmations >= confirmations {
			ids = append(ids, d.id)
		}
	}
	return ids, nil
}

// MintOrRelease implements types.Minter.
func (a *Adapter) MintOrRelease(ctx context.Context, address string, amount *big.Int) (string, error) {
	idx, err := a.begin(ctx, OpMintOrRelease, address, amount)
	if err != nil {
		return "", err
	}
	txID := a.finish(idx, a.txID("mint"))

	a.logger.WithFields(logrus.Fields{
		"network": a.network,
		"to":      address,
		"amount":  amount.String(),
		"txId":    txID,
	}).Debug("Mock mint")

	return txID, nil
}

// Refund implements types.Refunder.
func (a *Adapter) Refund(ctx context.Context, address string, amount *big.Int) (string, error) {
	idx, err := a.begin(ctx, OpRefund, address, amount)
	if err != nil {
		return "", err
	}
	txID := a.finish(idx, a.txID("refund"))

	a.logger.WithFields(logrus.Fields{
		"network": a.network,
		"to":      address,
		"amount":  amount.String(),
		"txId":    txID,
	}).Debug("Mock refund")

	return txID, nil
}

func (a *Adapter) txID(kind string) string {
	return strings.ToLower(a.network.String()) + "-" + kind + "-" + uuid.NewString()
}
