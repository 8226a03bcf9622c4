package handlers

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/thanhnp/utxo-graph/internal/ledger"
)

// errorMapping pairs a ledger error with its HTTP status and a stable code
type errorMapping struct {
	target error
	status int
	code   string
}

// checked in order; the first match wins
var errorMappings = []errorMapping{
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{ledger.ErrDuplicateInput, http.StatusBadRequest, "duplicate_input"},
	{ledger.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{ledger.ErrOutputSpent, http.StatusConflict, "output_spent"},
	{ledger.ErrOutputMismatch, http.StatusConflict, "output_mismatch"},
	{ledger.ErrDuplicateTransaction, http.StatusConflict, "duplicate_transaction"},
	{ledger.ErrInvalidSignature, http.StatusUnprocessableEntity, "invalid_signature"},
	{ledger.ErrHashMismatch, http.StatusUnprocessableEntity, "hash_mismatch"},
	{ledger.ErrMalformedRecord, http.StatusUnprocessableEntity, "malformed_record"},
	{ledger.ErrTransactionNotFound, http.StatusNotFound, "transaction_not_found"},
	{ledger.ErrOutputNotFound, http.StatusNotFound, "output_not_found"},
	{ledger.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
}

// respondError writes err as a JSON error with the status its kind maps to
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": err.Error(), "code": m.code})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "internal"})
}

// respondBadRequest reports a request body that could not be decoded
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
}
