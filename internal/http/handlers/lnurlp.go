package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/reconcile"
)

// LnurlpHandler handles pull-payment card funding.
type LnurlpHandler struct {
	repo   *cards.Repo
	engine *reconcile.Engine
}

// NewLnurlpHandler constructs a LnurlpHandler.
func NewLnurlpHandler(repo *cards.Repo, engine *reconcile.Engine) *LnurlpHandler {
	return &LnurlpHandler{repo: repo, engine: engine}
}

// createLnurlpRequest defines the request body for pull-payment creation.
type createLnurlpRequest struct {
	Shared bool `json:"shared"` // Accept payments from multiple payers.
}

// Create creates a pull-payment funding link for a card.
func (h *LnurlpHandler) Create(c *gin.Context) {
	var body createLnurlpRequest
	// The body is optional; an empty body means a single-payer link.
	_ = c.ShouldBindJSON(&body)

	card, err := h.engine.CreateLnurlp(c.Request.Context(), c.Param("cardHash"), body.Shared)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, card)
}

// Paid polls the gateway for payments against the card's pull-payment link.
func (h *LnurlpHandler) Paid(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	if errCheck := h.engine.CheckLnurlpPaid(c.Request.Context(), card); errCheck != nil {
		respondDomainError(c, errCheck)
		return
	}
	if lnurlp := card.LnurlpData(); lnurlp != nil && lnurlp.Paid != nil {
		respondSuccess(c, "paid")
		return
	}
	respondSuccess(c, "not_paid")
}

// Finish settles a shared pull-payment link: all recorded payments become
// the card's funded amount.
func (h *LnurlpHandler) Finish(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	if errFinish := h.engine.FinishSharedLnurlp(c.Request.Context(), card); errFinish != nil {
		respondDomainError(c, errFinish)
		return
	}
	respondSuccess(c, card)
}
