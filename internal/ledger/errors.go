package ledger

import (
	"github.com/cockroachdb/errors"

	"github.com/thanhnp/utxo-graph/internal/models"
	"github.com/thanhnp/utxo-graph/internal/storage"
)

var (
	// ErrInsufficientBalance is returned when the unspent outputs of the sender do not cover the amount
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidSignature is returned when an input fails its ownership proof
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrHashMismatch is returned when a transaction fails hash chain validation
	ErrHashMismatch = errors.New("transaction hash mismatch")

	// ErrOutputSpent is returned when an input references an output that already has a spender
	ErrOutputSpent = errors.New("output already spent")

	// ErrOutputNotFound is returned when an input references an output that does not exist
	ErrOutputNotFound = errors.New("output not found")

	// ErrOutputMismatch is returned when an input's value or address differ from the stored output
	ErrOutputMismatch = errors.New("input does not match stored output")

	// ErrDuplicateTransaction is returned when a transaction with the same hash is already stored
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrDuplicateInput is returned when one outpoint is spent twice by the same transaction
	ErrDuplicateInput = errors.New("duplicate input")

	// ErrUnsignedInput is returned when persisting an input without an ownership proof
	ErrUnsignedInput = errors.New("unsigned input")

	// ErrInvalidAddress is returned for addresses that are not 40 hex digits
	ErrInvalidAddress = errors.New("invalid address")

	// ErrTransactionNotFound is returned when looking up an unknown transaction hash
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidAmount is returned for amounts that are not strictly positive
	ErrInvalidAmount = models.ErrInvalidAmount

	// ErrMalformedRecord is returned when a stored transaction cannot be decoded
	ErrMalformedRecord = models.ErrMalformedRecord

	// ErrStoreUnavailable marks storage engine failures
	ErrStoreUnavailable = storage.ErrUnavailable
)
