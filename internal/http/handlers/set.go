package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/models"
	"github.com/lnfunding/tipcards/internal/reconcile"
)

// SetHandler handles card sets and their aggregate funding invoices.
type SetHandler struct {
	repo   *cards.Repo
	engine *reconcile.Engine
}

// NewSetHandler constructs a SetHandler.
func NewSetHandler(repo *cards.Repo, engine *reconcile.Engine) *SetHandler {
	return &SetHandler{repo: repo, engine: engine}
}

// List returns all sets of the authenticated user.
func (h *SetHandler) List(c *gin.Context) {
	userID := getUserID(c)
	sets, err := h.repo.GetSetsByUserID(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, sets)
}

// saveSetRequest defines the request body for saving a set.
type saveSetRequest struct {
	Settings *models.SetSettings `json:"settings"`
	Created  *int64              `json:"created"`
	Date     *int64              `json:"date"`
}

// Save creates or updates a set for the authenticated user. A set already
// owned by a different user is rejected.
func (h *SetHandler) Save(c *gin.Context) {
	userID := getUserID(c)
	var body saveSetRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	set, err := h.repo.GetSet(c.Request.Context(), c.Param("setId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	now := time.Now().Unix()
	if set == nil {
		set = &models.Set{ID: c.Param("setId"), Created: now, Date: now}
		if body.Created != nil {
			set.Created = *body.Created
		}
	} else if set.UserID != nil && *set.UserID != userID {
		respondDomainError(c, cards.ErrSetBelongsToAnotherUser)
		return
	}

	set.UserID = &userID
	if body.Settings != nil {
		set.SetSettingsPayload(*body.Settings)
	}
	if body.Date != nil {
		set.Date = *body.Date
	} else {
		set.Date = now
	}

	if errSave := h.repo.SaveSet(c.Request.Context(), set); errSave != nil {
		respondDomainError(c, errSave)
		return
	}
	respondSuccess(c, set)
}

// Get returns a set, first reconciling unpaid funding with the gateway.
func (h *SetHandler) Get(c *gin.Context) {
	set, err := h.repo.GetSet(c.Request.Context(), c.Param("setId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if set == nil {
		respondDomainError(c, cards.ErrSetNotFound)
		return
	}

	if set.Invoice != nil && set.InvoiceData().Paid == nil {
		if errCheck := h.engine.CheckSetInvoicePaid(c.Request.Context(), set); errCheck != nil {
			respondDomainError(c, errCheck)
			return
		}
	}
	if set.Lnurlp != nil && set.LnurlpData().Paid == nil {
		if errCheck := h.engine.CheckSetLnurlpPaid(c.Request.Context(), set); errCheck != nil {
			respondDomainError(c, errCheck)
			return
		}
	}
	respondSuccess(c, set)
}

// createSetInvoiceRequest defines the request body for a set invoice.
type createSetInvoiceRequest struct {
	AmountPerCard int64  `json:"amountPerCard"` // In sats.
	CardIndices   []int  `json:"cardIndices"`
	Text          string `json:"text"`
	Note          string `json:"note"`
}

// CreateInvoice creates the aggregate funding invoice for a set.
func (h *SetHandler) CreateInvoice(c *gin.Context) {
	var body createSetInvoiceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	set, err := h.engine.CreateSetInvoice(c.Request.Context(), c.Param("setId"),
		body.AmountPerCard, body.CardIndices, body.Text, body.Note)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, set)
}

// InvoicePaid reconciles the set invoice with the gateway and returns the
// set. Registered for both the browser poll and the gateway webhook.
func (h *SetHandler) InvoicePaid(c *gin.Context) {
	set, err := h.repo.GetSet(c.Request.Context(), c.Param("setId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if set == nil || set.Invoice == nil {
		respondDomainError(c, cards.ErrSetNotFound)
		return
	}

	if errCheck := h.engine.CheckSetInvoicePaid(c.Request.Context(), set); errCheck != nil {
		respondDomainError(c, errCheck)
		return
	}
	respondSuccess(c, set)
}

// CreateLnurlp creates the multi-payer funding pay link for a set.
func (h *SetHandler) CreateLnurlp(c *gin.Context) {
	var body createSetInvoiceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respondError(c, 400, "Invalid input.", "InvalidInput")
		return
	}

	set, err := h.engine.CreateSetLnurlp(c.Request.Context(), c.Param("setId"),
		body.AmountPerCard, body.CardIndices, body.Text, body.Note)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, set)
}

// LnurlpPaid reconciles the set's pay link with the gateway and returns the
// set. Registered for both the browser poll and the gateway webhook.
func (h *SetHandler) LnurlpPaid(c *gin.Context) {
	set, err := h.repo.GetSet(c.Request.Context(), c.Param("setId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if set == nil || set.Lnurlp == nil {
		respondDomainError(c, cards.ErrSetNotFound)
		return
	}

	if errCheck := h.engine.CheckSetLnurlpPaid(c.Request.Context(), set); errCheck != nil {
		respondDomainError(c, errCheck)
		return
	}
	respondSuccess(c, set)
}

// Delete removes a set. A funded set cannot be deleted.
func (h *SetHandler) Delete(c *gin.Context) {
	h.delete(c, false)
}

// DeleteInvoice removes only the set's unpaid invoice and the unfunded
// derived cards, keeping an owned set itself alive.
func (h *SetHandler) DeleteInvoice(c *gin.Context) {
	h.delete(c, true)
}

func (h *SetHandler) delete(c *gin.Context, invoiceOnly bool) {
	set, err := h.repo.GetSet(c.Request.Context(), c.Param("setId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	if set == nil {
		respondDomainError(c, cards.ErrSetNotFound)
		return
	}

	if errDelete := h.engine.DeleteSet(c.Request.Context(), set, invoiceOnly); errDelete != nil {
		respondDomainError(c, errDelete)
		return
	}
	respondSuccess(c, nil)
}
