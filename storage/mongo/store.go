// Package mongo stores bridge transactions as MongoDB documents with their
// status history embedded.
package mongo

import (
	"context"
	"math/big"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	transactionsCollection = "bridge_transactions"
	countersCollection     = "counters"
	transactionsCounter    = "bridge_transactions"

	maxUpdateAttempts = 100
	connectTimeout    = 10 * time.Second
)

// Config holds the connection settings of the store.
type Config struct {
	URI      string
	Database string
}

// Store implements types.TransactionStore. Updates are compare-and-set on
// the document version.
type Store struct {
	client   *mongo.Client
	database string
	logger   *logrus.Logger
}

type historyDoc struct {
	From string    `bson:"from"`
	To   string    `bson:"to"`
	At   time.Time `bson:"at"`
}

type transactionDoc struct {
	ID                 int64             `bson:"_id"`
	UserID             string            `bson:"user_id"`
	SourceNetwork      string            `bson:"source_network"`
	DestinationNetwork string            `bson:"destination_network"`
	Direction          string            `bson:"direction"`
	SourceAddress      string            `bson:"source_address"`
	DestinationAddress string            `bson:"destination_address"`
	Amount             string            `bson:"amount"`
	Fee                string            `bson:"fee"`
	Status             string            `bson:"status"`
	SourceTxHash       string            `bson:"source_tx_hash"`
	Metadata           map[string]string `bson:"metadata"`
	SourceDepositTx    string            `bson:"source_deposit_tx,omitempty"`
	CreatedAt          time.Time         `bson:"created_at"`
	UpdatedAt          time.Time         `bson:"updated_at"`
	CompletedAt        *time.Time        `bson:"completed_at,omitempty"`
	Version            int64             `bson:"version"`
	History            []historyDoc      `bson:"history,omitempty"`
}

// NewStore connects to MongoDB, checks the connection and creates indexes.
//
// Parameters:
// - ctx: the context for managing the request.
// - cfg: the connection settings.
// - logger: the logger instance.
//
// Returns:
// - *Store: a ready store.
// - error: an error wrapping ErrDatabaseConnect if MongoDB is unreachable.
func NewStore(ctx context.Context, cfg Config, logger *logrus.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(bridgeerrors.ErrDatabaseConnect, err.Error())
	}

	store := &Store{client: client, database: cfg.Database, logger: logger}
	if err := store.CreateIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

// CreateIndexes creates the indexes backing the list queries and the unique
// index that lets a source deposit be claimed once per network.
func (s *Store) CreateIndexes(ctx context.Context) error {
	_, err := s.transactions().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}}},
		{
			Keys: bson.D{{Key: "source_network", Value: 1}, {Key: "source_deposit_tx", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "source_deposit_tx", Value: bson.D{{Key: "$exists", Value: true}}}}),
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create transaction indexes")
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) transactions() *mongo.Collection {
	return s.client.Database(s.database).Collection(transactionsCollection)
}

func notFound(id int64) error {
	return errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "id %d", id)
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := s.client.Database(s.database).Collection(countersCollection).FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: transactionsCounter}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate transaction id")
	}
	return counter.Seq, nil
}

func (s *Store) Insert(ctx context.Context, tx *types.BridgeTransaction) (int64, error) {
	id, err := s.nextID(ctx)
	if err != nil {
		return 0, err
	}

	doc := toDoc(tx)
	doc.ID = id
	doc.History = []historyDoc{{To: tx.Status.String(), At: tx.CreatedAt}}

	if _, err := s.transactions().InsertOne(ctx, doc); err != nil {
		return 0, errors.Wrap(err, "failed to insert transaction")
	}

	tx.ID = id
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*types.BridgeTransaction, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromDoc(doc)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetProjection(bson.D{{Key: "history", Value: 0}})

	return s.list(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
}

func (s *Store) GetByDeposit(ctx context.Context, network types.Network, depositID string) (*types.BridgeTransaction, error) {
	var doc transactionDoc
	err := s.transactions().FindOne(ctx, bson.D{
		{Key: "source_network", Value: network.String()},
		{Key: "source_deposit_tx", Value: depositID},
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "deposit %s on %s", depositID, network)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transaction")
	}
	return fromDoc(&doc)
}

func (s *Store) ListByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "history", Value: 0}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	return s.list(ctx, bson.D{
		{Key: "status", Value: status.String()},
		{Key: "_id", Value: bson.D{{Key: "$gt", Value: afterID}}},
	}, opts)
}

func (s *Store) History(ctx context.Context, id int64) ([]types.StatusChange, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := make([]types.StatusChange, len(doc.History))
	for i, h := range doc.History {
		changes[i] = types.StatusChange{
			From: types.BridgeStatus(h.From),
			To:   types.BridgeStatus(h.To),
			At:   h.At,
		}
	}
	return changes, nil
}

// Update reads the document, applies mutate and writes the mutable fields
// back only if the version is unchanged, retrying otherwise. A newly claimed
// source deposit is set on the document, where the unique index rejects a
// deposit held by another transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
// - mutate: the change to apply; its error aborts the update and is returned unchanged.
//
// Returns:
// - *types.BridgeTransaction: the stored transaction after the update.
// - error: an error if the transaction is unknown, mutate fails or the write keeps conflicting.
func (s *Store) Update(ctx context.Context, id int64, mutate types.Mutation) (*types.BridgeTransaction, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		doc, err := s.find(ctx, id)
		if err != nil {
			return nil, err
		}

		current, err := fromDoc(doc)
		if err != nil {
			return nil, err
		}

		working := current.Clone()
		if err := mutate(working); err != nil {
			return nil, err
		}

		updated := current.Clone()
		types.ApplyMutableFields(updated, working)

		set := bson.D{
			{Key: "status", Value: updated.Status.String()},
			{Key: "metadata", Value: map[string]string(updated.Metadata)},
			{Key: "updated_at", Value: updated.UpdatedAt},
			{Key: "completed_at", Value: updated.CompletedAt},
			{Key: "version", Value: doc.Version + 1},
		}
		deposit := types.ClaimedDeposit(current, updated)
		if deposit != "" {
			set = append(set, bson.E{Key: "source_deposit_tx", Value: deposit})
		}
		push := bson.D{{Key: "history", Value: historyDoc{
			From: current.Status.String(),
			To:   updated.Status.String(),
			At:   updated.UpdatedAt,
		}}}

		result, err := s.transactions().UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}, {Key: "version", Value: doc.Version}},
			bson.D{{Key: "$set", Value: set}, {Key: "$push", Value: push}},
		)
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(bridgeerrors.ErrDepositClaimed, "deposit %s", deposit)
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to update transaction")
		}
		if result.MatchedCount == 1 {
			return updated, nil
		}

		s.logger.WithFields(logrus.Fields{
			"id":      id,
			"attempt": attempt,
		}).Debug("Concurrent update detected, retrying")
	}

	return nil, errors.Errorf("failed to update transaction %d: too much contention", id)
}

func (s *Store) find(ctx context.Context, id int64) (*transactionDoc, error) {
	var doc transactionDoc
	err := s.transactions().FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read transaction")
	}
	return &doc, nil
}

func (s *Store) list(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]*types.BridgeTransaction, error) {
	cursor, err := s.transactions().Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query transactions")
	}
	defer cursor.Close(ctx)

	var docs []transactionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "failed to decode transactions")
	}

	out := make([]*types.BridgeTransaction, 0, len(docs))
	for i := range docs {
		tx, err := fromDoc(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func toDoc(tx *types.BridgeTransaction) *transactionDoc {
	metadata := map[string]string(tx.Metadata.Clone())
	return &transactionDoc{
		UserID:             tx.UserID,
		SourceNetwork:      tx.SourceNetwork.String(),
		DestinationNetwork: tx.DestinationNetwork.String(),
		Direction:          tx.Direction.String(),
		SourceAddress:      tx.SourceAddress,
		DestinationAddress: tx.DestinationAddress,
		Amount:             amountString(tx.Amount),
		Fee:                amountString(tx.Fee),
		Status:             tx.Status.String(),
		SourceTxHash:       tx.SourceTxHash,
		Metadata:           metadata,
		CreatedAt:          tx.CreatedAt,
		UpdatedAt:          tx.UpdatedAt,
		CompletedAt:        tx.CompletedAt,
	}
}

func fromDoc(doc *transactionDoc) (*types.BridgeTransaction, error) {
	amount, ok := new(big.Int).SetString(doc.Amount, 10)
	if !ok {
		return nil, errors.Errorf("invalid stored amount %q", doc.Amount)
	}
	fee, ok := new(big.Int).SetString(doc.Fee, 10)
	if !ok {
		return nil, errors.Errorf("invalid stored fee %q", doc.Fee)
	}

	tx := &types.BridgeTransaction{
		ID:                 doc.ID,
		UserID:             doc.UserID,
		SourceNetwork:      types.Network(doc.SourceNetwork),
		DestinationNetwork: types.Network(doc.DestinationNetwork),
		Direction:          types.Direction(doc.Direction),
		SourceAddress:      doc.SourceAddress,
		DestinationAddress: doc.DestinationAddress,
		Amount:             amount,
		Fee:                fee,
		Status:             types.BridgeStatus(doc.Status),
		SourceTxHash:       doc.SourceTxHash,
		Metadata:           types.Metadata(doc.Metadata).Clone(),
		CreatedAt:          doc.CreatedAt,
		UpdatedAt:          doc.UpdatedAt,
	}
	if doc.CompletedAt != nil {
		at := *doc.CompletedAt
		tx.CompletedAt = &at
	}
	return tx, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
