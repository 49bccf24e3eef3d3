package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/node"
	"github.com/thanhnp/chainledger/internal/rpc"
)

// NetworkHandler handles peer registration and consensus
type NetworkHandler struct {
	svc *node.Service
}

// NewNetworkHandler creates a new NetworkHandler
func NewNetworkHandler(svc *node.Service) *NetworkHandler {
	return &NetworkHandler{
		svc: svc,
	}
}

// RegisterAndBroadcast introduces a new node to the whole network
// POST /api/v1/register-and-broadcast-node
func (h *NetworkHandler) RegisterAndBroadcast(c *gin.Context) {
	var req models.RegisterNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	results, err := h.svc.RegisterAndBroadcast(c.Request.Context(), req.NewNodeURL)
	switch {
	case err == nil:
	case errors.Is(err, node.ErrInvalidNodeURL), errors.Is(err, rpc.ErrIncompatiblePeer):
		failure(c, http.StatusBadRequest, err.Error())
		return
	default:
		failure(c, http.StatusBadGateway, err.Error())
		return
	}

	success(c, http.StatusOK, "New node registered with network successfully.", gin.H{
		"peers": results,
	})
}

// Register adds a single node to the registry
// POST /api/v1/register-node
func (h *NetworkHandler) Register(c *gin.Context) {
	var req models.RegisterNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	added := h.svc.RegisterNode(req.NewNodeURL)
	success(c, http.StatusOK, "New node registered successfully.", gin.H{"added": added})
}

// RegisterBulk adds every node of a network to the registry
// POST /api/v1/register-nodes-bulk
func (h *NetworkHandler) RegisterBulk(c *gin.Context) {
	var req models.RegisterNodesBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	added := h.svc.RegisterNodesBulk(req.AllNetworkNodes)
	success(c, http.StatusOK, "Bulk registration successful.", gin.H{"added": added})
}

// Consensus reconciles the local chain with every peer
// POST /api/v1/consensus
func (h *NetworkHandler) Consensus(c *gin.Context) {
	res, err := h.svc.Consensus(c.Request.Context())
	if err != nil {
		failure(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	note := "Current chain has not been replaced."
	if res.Replaced {
		note = "This chain has been replaced."
	}
	success(c, http.StatusOK, note, gin.H{
		"replaced": res.Replaced,
		"reason":   res.Decision.Reason,
		"chain":    res.Decision.Chain,
		"peers":    res.Results,
	})
}
