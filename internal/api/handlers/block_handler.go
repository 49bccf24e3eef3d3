package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/ledger"
	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/node"
)

// BlockHandler handles mining and block-related API requests
type BlockHandler struct {
	svc *node.Service
}

// NewBlockHandler creates a new BlockHandler
func NewBlockHandler(svc *node.Service) *BlockHandler {
	return &BlockHandler{
		svc: svc,
	}
}

// Mine seals the pending pool into a new block and announces it
// POST /api/v1/mine
func (h *BlockHandler) Mine(c *gin.Context) {
	res, err := h.svc.Mine(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrNothingToMine):
		failure(c, http.StatusOK, "There are no pending transactions to mine")
		return
	case errors.Is(err, ledger.ErrStaleMiningContext):
		failure(c, http.StatusConflict, "Chain tip moved while mining, try again")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		failure(c, http.StatusServiceUnavailable, "Mining was cancelled")
		return
	default:
		failure(c, http.StatusInternalServerError, err.Error())
		return
	}

	success(c, http.StatusOK, "New block mined & broadcast successfully", gin.H{
		"block":  res.Block,
		"reward": res.Reward,
		"peers": gin.H{
			"block":  res.BlockResults,
			"reward": res.RewardResults,
		},
	})
}

// Receive appends a block announced by a peer when it extends the local tip
// POST /api/v1/receive-new-block
func (h *BlockHandler) Receive(c *gin.Context) {
	var req models.ReceiveBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid block: "+err.Error())
		return
	}

	resp := models.ReceiveBlockResponse{NewBlock: req.NewBlock}
	if h.svc.ReceiveBlock(req.NewBlock) {
		resp.Accepted = true
		resp.Note = "New block received and accepted."
	} else {
		resp.Note = "New block rejected."
	}
	c.JSON(http.StatusOK, resp)
}

// GetByHash returns a block by its hash
// GET /api/v1/block/:blockHash
func (h *BlockHandler) GetByHash(c *gin.Context) {
	block, ok := h.svc.BlockByHash(c.Param("blockHash"))
	if !ok {
		failure(c, http.StatusNotFound, "Block not found")
		return
	}

	success(c, http.StatusOK, "Block found", gin.H{"block": block})
}

// GetByIndex returns a block by its index
// GET /api/v1/block/index/:index
func (h *BlockHandler) GetByIndex(c *gin.Context) {
	index, err := strconv.ParseInt(c.Param("index"), 10, 64)
	if err != nil {
		failure(c, http.StatusBadRequest, "Invalid index")
		return
	}

	block, ok := h.svc.BlockByIndex(index)
	if !ok {
		failure(c, http.StatusNotFound, "Block not found")
		return
	}

	success(c, http.StatusOK, "Block found", gin.H{"block": block})
}
