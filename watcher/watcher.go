// Package watcher polls INITIATED transactions, confirms their deposits and
// expires the ones whose deposit never arrives.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/ClipFinance/bridge-engine/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	defaultInterval  = 15 * time.Second
	defaultBatchSize = 100
	defaultWorkers   = 4
)

// Outcomes reported per transaction.
const (
	OutcomeConfirmed = "confirmed"
	OutcomePending   = "pending"
	OutcomeExpired   = "expired"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Engine is the part of bridge.Engine the watcher drives.
type Engine interface {
	GetBridgeTransactionsByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error)
	ConfirmSourceTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, bool, error)
	ExpireBridgeTransaction(ctx context.Context, id int64, reason string) (*types.BridgeTransaction, error)
	CompleteBridgeTransaction(ctx context.Context, id int64) (*types.BridgeTransaction, error)
}

// Config is the polling policy.
//
// Fields:
// - Interval: time between polls.
// - BatchSize: transactions fetched per status per poll. Consecutive polls
//   page through the status in id order and wrap around at the end.
// - Workers: transactions processed concurrently.
// - ExpireAfter: age after which an unconfirmed deposit fails, zero disables expiry.
// - AutoComplete: mint right after confirmation and retry CONFIRMED_SOURCE leftovers.
type Config struct {
	Interval     time.Duration
	BatchSize    int
	Workers      int
	ExpireAfter  time.Duration
	AutoComplete bool
}

// Summary counts the outcomes of one poll.
type Summary map[string]int

// Watcher runs the confirmation policy against the engine.
type Watcher struct {
	engine Engine
	config Config
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	cursors map[types.BridgeStatus]int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		w.now = now
	}
}

// NewWatcher creates a Watcher, filling unset config fields with defaults.
//
// Parameters:
// - engine: the bridge engine.
// - config: the polling policy.
// - logger: the logger instance.
//
// Returns:
// - *Watcher: the watcher, not yet running.
func NewWatcher(engine Engine, config Config, logger *logrus.Logger, opts ...Option) *Watcher {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Workers <= 0 {
		config.Workers = defaultWorkers
	}

	w := &Watcher{
		engine: engine,
		config: config,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },

		cursors: make(map[types.BridgeStatus]int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Poll errors are logged and the next tick
// tries again.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.WithFields(logrus.Fields{
		"interval":     w.config.Interval,
		"batchSize":    w.config.BatchSize,
		"workers":      w.config.Workers,
		"expireAfter":  w.config.ExpireAfter,
		"autoComplete": w.config.AutoComplete,
	}).Info("Confirmation watcher started")

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.WithError(err).Error("Confirmation poll failed")
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Confirmation watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce processes one batch of INITIATED transactions and, with
// AutoComplete, one batch of CONFIRMED_SOURCE transactions.
//
// Returns:
// - Summary: outcome counts.
// - error: an error if a batch could not be listed.
func (w *Watcher) RunOnce(ctx context.Context) (Summary, error) {
	metrics.WatcherPolls.Inc()
	summary := Summary{}
	var mu sync.Mutex
	record := func(outcome string) {
		metrics.WatcherOutcomes.WithLabelValues(outcome).Inc()
		mu.Lock()
		summary[outcome]++
		mu.Unlock()
	}

	initiated, err := w.nextBatch(ctx, types.StatusInitiated)
	if err != nil {
		return summary, errors.Wrap(err, "failed to list initiated transactions")
	}
	w.process(ctx, initiated, func(ctx context.Context, tx *types.BridgeTransaction) string {
		return w.confirm(ctx, tx)
	}, record)

	if w.config.AutoComplete {
		confirmed, err := w.nextBatch(ctx, types.StatusConfirmedSource)
		if err != nil {
			return summary, errors.Wrap(err, "failed to list confirmed transactions")
		}
		w.process(ctx, confirmed, w.complete, record)
	}

	if len(summary) > 0 {
		fields := logrus.Fields{}
		for outcome, n := range summary {
			fields[outcome] = n
		}
		w.logger.WithFields(fields).Debug("Confirmation poll finished")
	}
	return summary, nil
}

// nextBatch lists the page of status after the last one handed out. A short
// page ends the pass, so the following poll starts again from the lowest id.
func (w *Watcher) nextBatch(ctx context.Context, status types.BridgeStatus) ([]*types.BridgeTransaction, error) {
	w.mu.Lock()
	after := w.cursors[status]
	w.mu.Unlock()

	batch, err := w.engine.GetBridgeTransactionsByStatus(ctx, status, after, w.config.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 && after > 0 {
		after = 0
		batch, err = w.engine.GetBridgeTransactionsByStatus(ctx, status, after, w.config.BatchSize)
		if err != nil {
			return nil, err
		}
	}

	next := int64(0)
	if len(batch) >= w.config.BatchSize {
		next = batch[len(batch)-1].ID
	}

	w.mu.Lock()
	w.cursors[status] = next
	w.mu.Unlock()
	return batch, nil
}

func (w *Watcher) process(
	ctx context.Context,
	batch []*types.BridgeTransaction,
	handle func(context.Context, *types.BridgeTransaction) string,
	record func(string),
) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Workers)

	for _, tx := range batch {
		tx := tx
		g.Go(func() error {
			record(handle(gctx, tx))
			return nil
		})
	}
	g.Wait()
}

func (w *Watcher) confirm(ctx context.Context, tx *types.BridgeTransaction) string {
	logger := w.logger.WithFields(logrus.Fields{
		"id":      tx.ID,
		"network": tx.SourceNetwork,
	})

	_, confirmed, err := w.engine.ConfirmSourceTransaction(ctx, tx.ID)
	switch {
	case errors.Is(err, bridgeerrors.ErrInvalidState):
		return OutcomeSkipped
	case err != nil:
		logger.WithError(err).Warn("Deposit check failed")
		return OutcomeError
	case confirmed:
		logger.Info("Deposit confirmed")
		if w.config.AutoComplete {
			return w.complete(ctx, tx)
		}
		return OutcomeConfirmed
	}

	if w.config.ExpireAfter > 0 && w.now().Sub(tx.CreatedAt) >= w.config.ExpireAfter {
		reason := fmt.Sprintf("deposit not confirmed within %s", w.config.ExpireAfter)
		if _, err := w.engine.ExpireBridgeTransaction(ctx, tx.ID, reason); err != nil {
			if errors.Is(err, bridgeerrors.ErrInvalidState) {
				return OutcomeSkipped
			}
			logger.WithError(err).Error("Failed to expire transaction")
			return OutcomeError
		}
		logger.WithField("reason", reason).Warn("Transaction expired")
		return OutcomeExpired
	}

	return OutcomePending
}

func (w *Watcher) complete(ctx context.Context, tx *types.BridgeTransaction) string {
	done, err := w.engine.CompleteBridgeTransaction(ctx, tx.ID)
	switch {
	case errors.Is(err, bridgeerrors.ErrInvalidState):
		return OutcomeSkipped
	case err != nil:
		w.logger.WithField("id", tx.ID).WithError(err).Warn("Completion deferred")
		return OutcomeError
	case done.Status == types.StatusFailed:
		return OutcomeFailed
	default:
		return OutcomeCompleted
	}
}
