package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/cards"
)

// WithdrawHandler handles the gateway webhook for single-card withdraw links.
type WithdrawHandler struct {
	repo *cards.Repo
}

// NewWithdrawHandler constructs a WithdrawHandler.
func NewWithdrawHandler(repo *cards.Repo) *WithdrawHandler {
	return &WithdrawHandler{repo: repo}
}

// Used marks a card as withdrawn. Fired by the gateway once the card's
// withdraw link has been claimed; marking is idempotent.
func (h *WithdrawHandler) Used(c *gin.Context) {
	card, err := h.repo.GetCard(c.Request.Context(), c.Param("cardHash"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if card == nil || card.WithdrawID == nil {
		respondDomainError(c, cards.ErrCardNotFound)
		return
	}

	if card.Used == nil {
		now := time.Now().Unix()
		card.Used = &now
		if errSave := h.repo.SaveCard(c.Request.Context(), card); errSave != nil {
			respondDomainError(c, errSave)
			return
		}
		log.WithField("card_hash", card.CardHash).Info("card withdrawn")
	}
	respondSuccess(c, nil)
}
