package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/utxo-graph/internal/ledger"
)

// AddressHandler handles address-related API requests
type AddressHandler struct {
	ledger *ledger.Ledger
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(l *ledger.Ledger) *AddressHandler {
	return &AddressHandler{ledger: l}
}

// GetBalance returns the spendable balance of an address
// GET /api/v1/addresses/:address/balance
func (h *AddressHandler) GetBalance(c *gin.Context) {
	address := c.Param("address")

	balance, err := h.ledger.GetBalance(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"balance": balance,
	})
}

// GetUnspent returns the unspent outputs of an address as unsigned inputs
// GET /api/v1/addresses/:address/unspent
func (h *AddressHandler) GetUnspent(c *gin.Context) {
	address := c.Param("address")

	inputs, err := h.ledger.ListUnspent(c.Request.Context(), address)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": address,
		"count":   len(inputs),
		"inputs":  inputs,
	})
}
