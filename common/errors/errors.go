package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedPair is returned when no bridge pair is configured for a direction.
	ErrUnsupportedPair = errors.New("unsupported bridge pair")
	// ErrAmountOutOfRange is returned when an amount is outside the pair's inclusive bounds.
	ErrAmountOutOfRange = errors.New("amount out of range")
	// ErrTransactionNotFound is returned for unknown transaction ids.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidState is returned when an operation is not permitted from the current status.
	ErrInvalidState = errors.New("invalid transaction state")
	// ErrAdapterUnavailable is returned when a network adapter is missing or cannot be reached.
	// Callers may retry after a backoff.
	ErrAdapterUnavailable = errors.New("network adapter unavailable")
	// ErrAdapterOperationFailed is matched by every AdapterError.
	ErrAdapterOperationFailed = errors.New("network adapter operation failed")
	// ErrDepositClaimed is returned when a source deposit already backs another transaction.
	ErrDepositClaimed = errors.New("deposit already claimed")

	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrAdapterExists    = errors.New("adapter already registered")
	ErrInvalidChainType = errors.New("invalid chain type")
	ErrNotImplemented   = errors.New("functionality not implemented")
	ErrDatabaseConnect  = errors.New("failed to connect to database")
)

// AdapterError describes a failed call to a network adapter.
// errors.Is(err, ErrAdapterOperationFailed) holds for every AdapterError,
// and the original cause stays reachable through Unwrap.
type AdapterError struct {
	Network string // Network the adapter serves.
	Op      string // Adapter operation, e.g. "mint_or_release".
	Err     error  // Underlying cause.
}

// NewAdapterError wraps err as an AdapterError. An error that is already an
// AdapterError or signals ErrAdapterUnavailable is returned unchanged.
//
// Parameters:
// - network: the network served by the adapter.
// - op: the adapter operation that failed.
// - err: the underlying error.
//
// Returns:
// - error: the wrapped error, nil if err is nil.
func NewAdapterError(network, op string, err error) error {
	if err == nil {
		return nil
	}

	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) || errors.Is(err, ErrAdapterUnavailable) {
		return err
	}

	return &AdapterError{Network: network, Op: op, Err: err}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Network, e.Op, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

func (e *AdapterError) Is(target error) bool {
	return target == ErrAdapterOperationFailed
}

// IsRetryable reports whether the caller may retry the operation after a backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAdapterUnavailable)
}
