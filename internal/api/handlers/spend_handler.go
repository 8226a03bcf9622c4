package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/utxo-graph/internal/ledger"
	"github.com/thanhnp/utxo-graph/internal/models"
)

// SpendHandler handles the two-phase spend flow for externally held keys
type SpendHandler struct {
	ledger *ledger.Ledger
}

// NewSpendHandler creates a new SpendHandler
func NewSpendHandler(l *ledger.Ledger) *SpendHandler {
	return &SpendHandler{ledger: l}
}

// PrepareRequest is the body of a prepare request
type PrepareRequest struct {
	From   string        `json:"from" binding:"required"`
	Amount models.Amount `json:"amount"`
}

// SubmitRequest is the body of a submit request
type SubmitRequest struct {
	From   string         `json:"from" binding:"required"`
	To     string         `json:"to" binding:"required"`
	Amount models.Amount  `json:"amount"`
	Inputs []models.Input `json:"inputs"`
}

// Prepare selects inputs covering an amount for the client to sign
// POST /api/v1/spends/prepare
func (h *SpendHandler) Prepare(c *gin.Context) {
	var req PrepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	quote, err := h.ledger.Prepare(c.Request.Context(), req.From, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// Submit verifies client-signed inputs and persists the spend
// POST /api/v1/spends/submit
func (h *SpendHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tx, err := h.ledger.Submit(c.Request.Context(), ledger.SubmitRequest{
		From:   req.From,
		To:     req.To,
		Amount: req.Amount,
		Inputs: req.Inputs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}
