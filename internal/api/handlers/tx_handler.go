package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/utxo-graph/internal/ledger"
	"github.com/thanhnp/utxo-graph/internal/models"
)

// TxHandler handles transaction-related API requests
type TxHandler struct {
	ledger *ledger.Ledger
}

// NewTxHandler creates a new TxHandler
func NewTxHandler(l *ledger.Ledger) *TxHandler {
	return &TxHandler{ledger: l}
}

// CoinbaseRequest is the body of a coinbase request
type CoinbaseRequest struct {
	To     string        `json:"to" binding:"required"`
	Amount models.Amount `json:"amount"`
}

// Get returns a validated transaction by its hash
// GET /api/v1/transactions/:hash
func (h *TxHandler) Get(c *gin.Context) {
	tx, err := h.ledger.GetTransaction(c.Request.Context(), c.Param("hash"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// CreateCoinbase mints a new output
// POST /api/v1/coinbase
func (h *TxHandler) CreateCoinbase(c *gin.Context) {
	var req CoinbaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tx, err := h.ledger.CreateCoinbase(c.Request.Context(), req.To, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}
