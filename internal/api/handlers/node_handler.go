package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/node"
	"github.com/thanhnp/chainledger/internal/sync"
)

// NodeHandler serves the node's identity and full state
type NodeHandler struct {
	svc    *node.Service
	syncer *sync.Syncer
}

// NewNodeHandler creates a new NodeHandler. syncer may be nil.
func NewNodeHandler(svc *node.Service, syncer *sync.Syncer) *NodeHandler {
	return &NodeHandler{
		svc:    svc,
		syncer: syncer,
	}
}

type nodeResponse struct {
	models.NodeInfo
	ChainLength int          `json:"chainLength"`
	Pending     int          `json:"pendingTransactions"`
	Peers       int          `json:"peers"`
	Difficulty  string       `json:"difficulty"`
	Sync        *sync.Status `json:"sync,omitempty"`
}

// GetNode returns the node's identity and protocol version
// GET /api/v1/node
func (h *NodeHandler) GetNode(c *gin.Context) {
	l := h.svc.Ledger()
	resp := nodeResponse{
		NodeInfo:    h.svc.Info(),
		ChainLength: l.Len(),
		Pending:     l.PendingCount(),
		Peers:       len(h.svc.Registry().Peers()),
		Difficulty:  l.Engine().Difficulty(),
	}
	if h.syncer != nil {
		st := h.syncer.Status()
		resp.Sync = &st
	}
	c.JSON(http.StatusOK, resp)
}

// GetBlockchain returns the chain, the pending pool and the peer list
// GET /api/v1/blockchain
func (h *NodeHandler) GetBlockchain(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Report())
}
