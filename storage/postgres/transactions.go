package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"time"

	bridgeerrors "github.com/ClipFinance/bridge-engine/common/errors"
	"github.com/ClipFinance/bridge-engine/common/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// uniqueViolation is the SQLSTATE of a unique index conflict.
const uniqueViolation = "23505"

const selectColumns = `
	SELECT
		id,
		user_id,
		source_network,
		destination_network,
		direction,
		source_address,
		destination_address,
		amount::text,
		fee::text,
		status,
		source_tx_hash,
		metadata,
		created_at,
		updated_at,
		completed_at
	FROM bridge_transactions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func notFound(id int64) error {
	return errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "id %d", id)
}

// Insert stores tx and its initial status change in one database transaction.
//
// Parameters:
// - ctx: the context for managing the request.
// - tx: the transaction to persist; its ID is set on success.
//
// Returns:
// - int64: the assigned id.
// - error: an error if the database operation fails.
func (s *Store) Insert(ctx context.Context, tx *types.BridgeTransaction) (int64, error) {
	metadata, err := encodeMetadata(tx.Metadata)
	if err != nil {
		return 0, err
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin insert")
	}
	defer dbTx.Rollback()

	var id int64
	err = dbTx.QueryRowContext(ctx, `
		INSERT INTO bridge_transactions (
			user_id,
			source_network,
			destination_network,
			direction,
			source_address,
			destination_address,
			amount,
			fee,
			status,
			source_tx_hash,
			metadata,
			created_at,
			updated_at,
			completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11::jsonb, $12, $13, $14
		)
		RETURNING id`,
		tx.UserID,
		tx.SourceNetwork,
		tx.DestinationNetwork,
		tx.Direction,
		tx.SourceAddress,
		tx.DestinationAddress,
		amountString(tx.Amount),
		amountString(tx.Fee),
		tx.Status,
		tx.SourceTxHash,
		metadata,
		tx.CreatedAt,
		tx.UpdatedAt,
		tx.CompletedAt,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert bridge transaction")
	}

	if err := insertEvent(ctx, dbTx, id, "", tx.Status, tx.CreatedAt); err != nil {
		return 0, err
	}

	if err := dbTx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit insert")
	}

	tx.ID = id
	return id, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*types.BridgeTransaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return tx, err
}

func (s *Store) GetByDeposit(ctx context.Context, network types.Network, depositID string) (*types.BridgeTransaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx,
		selectColumns+` WHERE source_network = $1 AND source_deposit_tx = $2`, network, depositID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(bridgeerrors.ErrTransactionNotFound, "deposit %s on %s", depositID, network)
	}
	return tx, err
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]*types.BridgeTransaction, error) {
	return listTransactions(ctx, s.db,
		selectColumns+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

// ListByStatus returns transactions in status after afterID, in id order.
// A limit of zero or less returns all of them.
func (s *Store) ListByStatus(ctx context.Context, status types.BridgeStatus, afterID int64, limit int) ([]*types.BridgeTransaction, error) {
	query := selectColumns + ` WHERE status = $1 AND id > $2 ORDER BY id`
	args := []interface{}{status, afterID}

	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	return listTransactions(ctx, s.db, query, args...)
}

func (s *Store) History(ctx context.Context, id int64) ([]types.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_status, to_status, at
		FROM bridge_transaction_events
		WHERE transaction_id = $1
		ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query history")
	}
	defer rows.Close()

	var changes []types.StatusChange
	for rows.Next() {
		var change types.StatusChange
		if err := rows.Scan(&change.From, &change.To, &change.At); err != nil {
			return nil, errors.Wrap(err, "failed to scan history")
		}
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read history")
	}

	// Every stored transaction has its insert event.
	if len(changes) == 0 {
		return nil, notFound(id)
	}
	return changes, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies mutate and writes
// the mutable columns back together with a status event. A newly claimed
// source deposit goes to source_deposit_tx, whose unique index rejects a
// deposit claimed by another row.
//
// Parameters:
// - ctx: the context for managing the request.
// - id: the transaction id.
// - mutate: the change to apply; its error aborts the update and is returned unchanged.
//
// Returns:
// - *types.BridgeTransaction: the stored transaction after the update.
// - error: an error if the transaction is unknown, mutate fails or the database operation fails.
func (s *Store) Update(ctx context.Context, id int64, mutate types.Mutation) (*types.BridgeTransaction, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin update")
	}
	defer dbTx.Rollback()

	current, err := scanTransaction(dbTx.QueryRowContext(ctx, selectColumns+` WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}

	updated := current.Clone()
	types.ApplyMutableFields(updated, working)

	metadata, err := encodeMetadata(updated.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = dbTx.ExecContext(ctx, `
		UPDATE bridge_transactions
			SET status = $1,
			    metadata = $2::jsonb,
			    updated_at = $3,
			    completed_at = $4,
			    source_deposit_tx = COALESCE(source_deposit_tx, NULLIF($5, ''))
		WHERE id = $6`,
		updated.Status,
		metadata,
		updated.UpdatedAt,
		updated.CompletedAt,
		types.ClaimedDeposit(current, updated),
		id,
	)
	if isUniqueViolation(err) {
		return nil, errors.Wrapf(bridgeerrors.ErrDepositClaimed, "deposit %s", updated.Metadata[types.MetaSourceDepositTx])
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update bridge transaction")
	}

	if err := insertEvent(ctx, dbTx, id, current.Status, updated.Status, updated.UpdatedAt); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit update")
	}

	return updated, nil
}

func insertEvent(ctx context.Context, dbTx *sql.Tx, id int64, from, to types.BridgeStatus, at time.Time) error {
	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO bridge_transaction_events (transaction_id, from_status, to_status, at)
		VALUES ($1, $2, $3, $4)`,
		id, from, to, at,
	)
	return errors.Wrap(err, "failed to insert status event")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func listTransactions(ctx context.Context, q queryer, query string, args ...interface{}) ([]*types.BridgeTransaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query bridge transactions")
	}
	defer rows.Close()

	out := make([]*types.BridgeTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read bridge transactions")
	}
	return out, nil
}

func scanTransaction(row rowScanner) (*types.BridgeTransaction, error) {
	var (
		tx          types.BridgeTransaction
		amount      string
		fee         string
		metadata    []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.SourceNetwork,
		&tx.DestinationNetwork,
		&tx.Direction,
		&tx.SourceAddress,
		&tx.DestinationAddress,
		&amount,
		&fee,
		&tx.Status,
		&tx.SourceTxHash,
		&metadata,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan bridge transaction")
	}

	if tx.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	if tx.Fee, err = parseAmount(fee); err != nil {
		return nil, err
	}
	if tx.Metadata, err = decodeMetadata(metadata); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		at := completedAt.Time
		tx.CompletedAt = &at
	}

	return &tx, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}

func encodeMetadata(m types.Metadata) (string, error) {
	if m == nil {
		m = types.Metadata{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "failed to encode metadata")
	}
	return string(raw), nil
}

func decodeMetadata(raw []byte) (types.Metadata, error) {
	m := types.Metadata{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode metadata")
	}
	return m, nil
}
