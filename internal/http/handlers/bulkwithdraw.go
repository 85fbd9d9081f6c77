package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/bulkwithdraw"
)

// BulkWithdrawHandler handles LNURL-withdraw links spanning multiple cards.
type BulkWithdrawHandler struct {
	coordinator *bulkwithdraw.Coordinator
}

// NewBulkWithdrawHandler constructs a BulkWithdrawHandler.
func NewBulkWithdrawHandler(coordinator *bulkwithdraw.Coordinator) *BulkWithdrawHandler {
	return &BulkWithdrawHandler{coordinator: coordinator}
}

// createBulkWithdrawRequest defines the request body for a bulk withdraw.
type createBulkWithdrawRequest struct {
	CardHashes []string `json:"cardHashes" binding:"required"`
}

// Create locks the given cards and creates one withdraw link for their
// combined funded amount.
func (h *BulkWithdrawHandler) Create(c *gin.Context) {
	var body createBulkWithdrawRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	withdraw, err := h.coordinator.Create(c.Request.Context(), body.CardHashes)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, withdraw)
}

// Delete revokes a pending bulk withdraw and unlocks its cards.
func (h *BulkWithdrawHandler) Delete(c *gin.Context) {
	if err := h.coordinator.Delete(c.Request.Context(), c.Param("bulkWithdrawId")); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, nil)
}

// Withdrawn is the gateway webhook fired when the withdraw link is claimed.
// It marks all member cards as used.
func (h *BulkWithdrawHandler) Withdrawn(c *gin.Context) {
	if err := h.coordinator.MarkWithdrawn(c.Request.Context(), c.Param("bulkWithdrawId")); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, nil)
}
