// Package redis stores bridge transactions in Redis.
//
// Layout, relative to the key prefix:
//   - tx:seq           id counter
//   - tx:{id}          JSON record
//   - user:{userID}    sorted set of ids scored by creation time in milliseconds
//   - status:{status}  sorted set of ids scored by id
//   - history:{id}     list of JSON status changes
//   - deposit:{network}:{depositID}  id of the transaction that claimed the deposit
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const maxUpdateAttempts = 100

// Config holds the connection settings of the store.
type Config struct {
	URL       string
	KeyPrefix string
}

// Store implements types.TransactionStore with optimistic WATCH/MULTI updates.
type Store struct {
	client *redis.Client
	prefix string
	logger *logrus.Logger
}

// NewStore connects to Redis and checks the connection.
//
// Parameters:
// - ctx: the context for managing the request.
// - cfg: the connection settings.
// - logger: the logger instance.
//
// Returns:
// - *Store: a ready store.
// - error: an error wrapping ErrDatabaseConnect if Redis is unreachable.
func NewStore(ctx context.Context, cfg Config, logger *logrus.Logger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrInvalidConfig, err.Error())
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}

	return &Store{client: client, prefix: cfg.KeyPrefix, logger: logger}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) seqKey() string {
	return s.prefix + "tx:seq"
}

func (s *Store) txKey(id int64) string {
	return s.prefix + "tx:" + strconv.FormatInt(id, 10)
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *Store) statusKey(status types.BridgeStatus) string {
	return s.prefix + "status:" + status.String()
}

func (s *Store) historyKey(id int64) string {
	return s.prefix + "history:" + strconv.FormatInt(id, 10)
}

func (s *Store) depositKey(network types.Network, depositID string) string {
	return s.prefix + "deposit:" + network.String() + ":" + depositID
}

// member pads ids so equal scores sort by id.
func member(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func score(tx *types.BridgeTransaction) float64 {
	return float64(tx.CreatedAt.UnixMilli())
}

func idScore(id int64) float64 {
	return float64(id)
}

func notFound(id int64) error {
	return errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "id %d", id)
}

func (s *Store) Insert(ctx context.Context, tx *types.BridgeTransaction) (int64, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate transaction id")
	}

	record := tx.Clone()
	record.ID = id

	raw, err := json.Marshal(record)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode transaction")
	}
	change, err := json.Marshal(types.StatusChange{To: record.Status, At: record.CreatedAt})
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode status change")
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.txKey(id), raw, 0)
		pipe.ZAdd(ctx, s.userKey(record.UserID), redis.Z{Score: score(record), Member: member(id)})
		pipe.ZAdd(ctx, s.statusKey(record.Status), redis.Z{Score: idScore(id), Member: member(id)})
		pipe.RPush(ctx, s.historyKey(id), change)
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert transaction")
	}

	tx.ID = id
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*types.BridgeTransaction, error) {
	return s.get(ctx, s.client, id)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	members, err := s.client.ZRevRange(ctx, s.userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user transactions")
	}
	return s.load(ctx, members)
}

func (s *Store) GetByDeposit(ctx context.Context, network types.Network, depositID string) (*types.BridgeTransaction, error) {
	id, err := s.client.Get(ctx, s.depositKey(network, depositID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "deposit %s on %s", depositID, network)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read deposit claim")
	}
	return s.get(ctx, s.client, id)
}

func (s *Store) ListByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error) {
	by := &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(afterID, 10),
		Max: "+inf",
	}
	if limit > 0 {
		by.Count = int64(limit)
	}

	members, err := s.client.ZRangeByScore(ctx, s.statusKey(status), by).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transactions by status")
	}
	return s.load(ctx, members)
}

func (s *Store) History(ctx context.Context, id int64) ([]types.StatusChange, error) {
	raw, err := s.client.LRange(ctx, s.historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read history")
	}
	if len(raw) == 0 {
		return nil, notFound(id)
	}

	changes := make([]types.StatusChange, len(raw))
	for i, entry := range raw {
		if err := json.Unmarshal([]byte(entry), &changes[i]); err != nil {
			return nil, errors.Wrap(err, "failed to decode status change")
		}
	}
	return changes, nil
}

// Update watches the record key and retries when another writer commits
// between the read and the MULTI/EXEC block. A newly claimed source deposit
// also watches its deposit key, so two transactions racing for one deposit
// cannot both commit.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
// - mutate: the change to apply; its error aborts the update and is returned unchanged.
//
// Returns:
// - *types.BridgeTransaction: the stored transaction after the update.
// - error: an error if the transaction is unknown, mutate fails or Redis keeps rejecting the write.
func (s *Store) Update(ctx context.Context, id int64, mutate types.Mutation) (*types.BridgeTransaction, error) {
	key := s.txKey(id)
	var updated *types.BridgeTransaction

	apply := func(rtx *redis.Tx) error {
		current, err := s.get(ctx, rtx, id)
		if err != nil {
			return err
		}

		working := current.Clone()
		if err := mutate(working); err != nil {
			return err
		}

		next := current.Clone()
		types.ApplyMutableFields(next, working)

		claimKey := ""
		if deposit := types.ClaimedDeposit(current, next); deposit != "" {
			claimKey = s.depositKey(next.SourceNetwork, deposit)
			if err := s.checkClaim(ctx, rtx, claimKey, id); err != nil {
				return errors.Wrapf(err, "deposit %s", deposit)
			}
		}

		raw, err := json.Marshal(next)
		if err != nil {
			return errors.Wrap(err, "failed to encode transaction")
		}
		change, err := json.Marshal(types.StatusChange{From: current.Status, To: next.Status, At: next.UpdatedAt})
		if err != nil {
			return errors.Wrap(err, "failed to encode status change")
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			if next.Status != current.Status {
				pipe.ZRem(ctx, s.statusKey(current.Status), member(id))
				pipe.ZAdd(ctx, s.statusKey(next.Status), redis.Z{Score: idScore(id), Member: member(id)})
			}
			if claimKey != "" {
				pipe.Set(ctx, claimKey, id, 0)
			}
			pipe.RPush(ctx, s.historyKey(id), change)
			return nil
		})
		if err != nil {
			return err
		}

		updated = next
		return nil
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, apply, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"id":      id,
			"attempt": attempt,
		}).Debug("Concurrent update detected, retrying")
	}

	return nil, errors.Errorf("failed to update transaction %d: too much contention", id)
}

// checkClaim watches key and fails with ErrDepositClaimed when another
// transaction holds it.
func (s *Store) checkClaim(ctx context.Context, rtx *redis.Tx, key string, id int64) error {
	if err := rtx.Watch(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "failed to watch deposit claim")
	}

	owner, err := rtx.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read deposit claim")
	}
	if owner != id {
		return errors.Wrapf(bridgeerrors.ErrDepositClaimed, "claimed by transaction %d", owner)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) get(ctx context.Context, c getter, id int64) (*types.BridgeTransaction, error) {
	raw, err := c.Get(ctx, s.txKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transaction")
	}
	return decode(raw)
}

func (s *Store) load(ctx context.Context, members []string) ([]*types.BridgeTransaction, error) {
	out := make([]*types.BridgeTransaction, 0, len(members))
	if len(members) == 0 {
		return out, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid index member %q", m)
		}
		keys[i] = s.txKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load transactions")
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("indexed transaction %s is missing", keys[i])
		}
		tx, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func decode(raw []byte) (*types.BridgeTransaction, error) {
	var tx types.BridgeTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction")
	}
	if tx.Metadata == nil {
		tx.Metadata = types.Metadata{}
	}
	return &tx, nil
}
