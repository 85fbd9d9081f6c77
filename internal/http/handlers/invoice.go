package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/reconcile"
)

// InvoiceHandler handles direct card funding invoices.
type InvoiceHandler struct {
	repo   *cards.Repo
	engine *reconcile.Engine
}

// NewInvoiceHandler constructs an InvoiceHandler.
func NewInvoiceHandler(repo *cards.Repo, engine *reconcile.Engine) *InvoiceHandler {
	return &InvoiceHandler{repo: repo, engine: engine}
}

// createInvoiceRequest defines the request body for invoice creation.
type createInvoiceRequest struct {
	Amount int64  `json:"amount"` // In sats.
	Text   string `json:"text"`
	Note   string `json:"note"`
}

// Create creates or idempotently returns the funding invoice for a card.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var body createInvoiceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	paymentRequest, err := h.engine.CreateInvoiceForCard(c.Request.Context(),
		c.Param("cardHash"), body.Amount, body.Text, body.Note)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, paymentRequest)
}

// Paid triggers a reconciliation check for a card's funding invoice and
// reports "paid" or "not_paid".
func (h *InvoiceHandler) Paid(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	if errCheck := h.engine.CheckInvoicePaid(c.Request.Context(), card); errCheck != nil {
		respondDomainError(c, errCheck)
		return
	}
	if invoice := card.InvoiceData(); invoice != nil && invoice.Paid != nil {
		respondSuccess(c, "paid")
		return
	}
	respondSuccess(c, "not_paid")
}
