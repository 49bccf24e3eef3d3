package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/node"
)

// TxHandler handles transaction-related API requests
type TxHandler struct {
	svc *node.Service
}

// NewTxHandler creates a new TxHandler
func NewTxHandler(svc *node.Service) *TxHandler {
	return &TxHandler{
		svc: svc,
	}
}

// Submit adds a transaction forwarded by a peer to the pending pool
// POST /api/v1/transaction
func (h *TxHandler) Submit(c *gin.Context) {
	var tx models.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		failure(c, http.StatusBadRequest, "Invalid transaction: "+err.Error())
		return
	}
	if tx.TransactionID == "" || tx.Sender == "" || tx.Recipient == "" {
		failure(c, http.StatusBadRequest, "Transaction id, sender and recipient are required")
		return
	}

	next, err := h.svc.SubmitTransaction(tx)
	if err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}
	success(c, http.StatusCreated, "Transaction will be added in block "+formatIndex(next)+".", gin.H{
		"blockIndex": next,
	})
}

// Broadcast creates a transaction, queues it and forwards it to every peer
// POST /api/v1/transaction/broadcast
func (h *TxHandler) Broadcast(c *gin.Context) {
	var req models.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid transaction request: "+err.Error())
		return
	}

	tx, next, results, err := h.svc.BroadcastTransaction(c.Request.Context(), req.Amount, req.Sender, req.Recipient)
	if err != nil {
		failure(c, http.StatusBadRequest, err.Error())
		return
	}
	success(c, http.StatusCreated, "Transaction created and broadcast successfully.", gin.H{
		"transaction": tx,
		"blockIndex":  next,
		"peers":       results,
	})
}

// Get returns a committed transaction and the block holding it
// GET /api/v1/transaction/:transactionId
func (h *TxHandler) Get(c *gin.Context) {
	tx, block, ok := h.svc.TransactionByID(c.Param("transactionId"))
	if !ok {
		failure(c, http.StatusNotFound, "Transaction not found")
		return
	}

	success(c, http.StatusOK, "Transaction found", gin.H{
		"transaction": tx,
		"block":       block,
	})
}
