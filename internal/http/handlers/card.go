package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/reconcile"
)

// CardHandler serves single cards to the landing page.
type CardHandler struct {
	repo   *cards.Repo
	engine *reconcile.Engine
}

// NewCardHandler constructs a CardHandler.
func NewCardHandler(repo *cards.Repo, engine *reconcile.Engine) *CardHandler {
	return &CardHandler{repo: repo, engine: engine}
}

// Get returns a card, reconciling a pending funding path with the gateway
// first so the landing page always sees the current funded state.
func (h *CardHandler) Get(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	switch cards.ActivePath(card) {
	case cards.PathInvoice:
		if errCheck := h.engine.CheckInvoicePaid(c.Request.Context(), card); errCheck != nil {
			respondDomainError(c, errCheck)
			return
		}
	case cards.PathLnurlp:
		if errCheck := h.engine.CheckLnurlpPaid(c.Request.Context(), card); errCheck != nil {
			respondDomainError(c, errCheck)
			return
		}
	}
	respondSuccess(c, card)
}

// LandingPageViewed records the first time a card's landing page was opened.
func (h *CardHandler) LandingPageViewed(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	if card.LandingPageViewed == nil {
		now := time.Now().Unix()
		card.LandingPageViewed = &now
		if errSave := h.repo.SaveCard(c.Request.Context(), card); errSave != nil {
			respondDomainError(c, errSave)
			return
		}
	}
	respondSuccess(c, nil)
}
