package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thanhnp/chainledger/internal/node"
)

// AddressHandler handles address-related API requests
type AddressHandler struct {
	svc *node.Service
}

// NewAddressHandler creates a new AddressHandler
func NewAddressHandler(svc *node.Service) *AddressHandler {
	return &AddressHandler{
		svc: svc,
	}
}

// Get returns the balance and committed transactions of an address.
// Unknown addresses have a zero balance and no transactions.
// GET /api/v1/address/:address
func (h *AddressHandler) Get(c *gin.Context) {
	data := h.svc.AddressActivity(c.Param("address"))
	success(c, http.StatusOK, "Address activity", gin.H{"addressData": data})
}
