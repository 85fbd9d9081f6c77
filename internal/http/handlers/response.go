// Package handlers implements the JSON API of the tip card service. Every
// response uses the envelope {status, data|message, code} and domain errors
// are mapped to stable code strings here, at the boundary, so internal
// packages stay free of HTTP concerns.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/bulkwithdraw"
	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/reconcile"
	"github.com/lnfunding/tipcards/internal/session"
)

// envelope is the wire format of every API response.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

func respondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

func respondError(c *gin.Context, status int, message, code string) {
	c.JSON(status, envelope{Status: "error", Message: message, Code: code})
}

// errorMapping binds a domain error to its boundary representation.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{cards.ErrCardNotFound, http.StatusNotFound, "CardByHashNotFound", "Card not found."},
	{cards.ErrSetNotFound, http.StatusNotFound, "SetNotFound", "Set not found."},
	{cards.ErrCardNotFunded, http.StatusBadRequest, "CardNotFunded", "Card is not funded."},
	{cards.ErrCardWithdrawn, http.StatusBadRequest, "CardWithdrawn", "Card has already been withdrawn."},
	{cards.ErrAlreadyFunded, http.StatusBadRequest, "CardAlreadyFunded", "Card is already funded."},
	{cards.ErrFundingConflict, http.StatusBadRequest, "FundingConflict", "Card already has a different funding method."},
	{cards.ErrAmountMismatch, http.StatusBadRequest, "AmountMismatch", "Card already exists with a different amount."},
	{cards.ErrNoFundingPath, http.StatusNotFound, "CardNotFunded", "Card has no funding invoice."},
	{cards.ErrSetBelongsToAnotherUser, http.StatusForbidden, "SetBelongsToAnotherUser", "This set belongs to another user."},
	{cards.ErrCardLocked, http.StatusBadRequest, "CardIsLockedByBulkWithdraw", "Card is locked by a pending bulk withdraw."},
	{cards.ErrWithdrawUsed, http.StatusBadRequest, "WithdrawHasBeenSpent", "Withdraw link has already been used."},

	{reconcile.ErrInvalidAmount, http.StatusBadRequest, "InvalidInput", "Invalid amount."},
	{reconcile.ErrNoCardIndices, http.StatusBadRequest, "InvalidInput", "No card indices given."},
	{reconcile.ErrSetAlreadyFunded, http.StatusBadRequest, "SetAlreadyFunded", "Set is already funded."},
	{reconcile.ErrSetInvoiceExists, http.StatusBadRequest, "SetInvoiceAlreadyExists", "Set invoice already exists."},
	{reconcile.ErrSetLnurlpExists, http.StatusBadRequest, "SetLnurlpAlreadyExists", "Set pay link already exists."},
	{reconcile.ErrCannotDeleteFundedSet, http.StatusBadRequest, "CannotDeleteFundedSet", "This set is already funded and cannot be deleted anymore."},
	{reconcile.ErrNotSharedFunding, http.StatusBadRequest, "InvalidInput", "Card is not a shared funding card."},
	{reconcile.ErrCreateInvoice, http.StatusInternalServerError, "UnableToCreateLnbitsInvoice", "Unable to create invoice at lnbits."},
	{reconcile.ErrCheckInvoiceStatus, http.StatusInternalServerError, "UnknownErrorWhileCheckingInvoiceStatus", "Unable to check invoice status at lnbits."},
	{reconcile.ErrCreateLnurlp, http.StatusInternalServerError, "UnableToCreateLnurlP", "Unable to create LNURL-P at lnbits."},
	{reconcile.ErrCheckLnurlpStatus, http.StatusInternalServerError, "UnableToGetLnbitsLnurlpStatus", "Unable to check LNURL-P status at lnbits."},
	{reconcile.ErrCreateWithdraw, http.StatusInternalServerError, "UnableToCreateLnbitsWithdrawLink", "Unable to create withdraw link at lnbits."},
	{reconcile.ErrCheckWithdrawStatus, http.StatusInternalServerError, "UnableToGetLnbitsWithdrawStatus", "Unable to check withdraw status at lnbits."},
	{reconcile.ErrDeleteWithdraw, http.StatusInternalServerError, "UnableToRemoveWithdrawLink", "Unable to remove withdraw link at lnbits."},

	{bulkwithdraw.ErrTooFewCards, http.StatusBadRequest, "InvalidInput", "A bulk withdraw needs at least two cards."},
	{bulkwithdraw.ErrNotFound, http.StatusNotFound, "BulkWithdrawNotFound", "Bulk withdraw not found."},
	{bulkwithdraw.ErrWithdrawn, http.StatusBadRequest, "WithdrawHasBeenSpent", "Bulk withdraw has already been redeemed."},
	{bulkwithdraw.ErrDeleted, http.StatusBadRequest, "WithdrawDeleted", "Bulk withdraw has been deleted."},

	{lnurlauth.ErrNotFound, http.StatusNotFound, "LnurlAuthLoginNotFound", "Login not found."},
	{lnurlauth.ErrNotYetSigned, http.StatusForbidden, "LnurlAuthNotYetSigned", "Login has not been confirmed by a wallet yet."},
	{lnurlauth.ErrUnknownChallenge, http.StatusBadRequest, "LnurlAuthUnknownChallenge", "Unknown login challenge."},
	{lnurlauth.ErrInvalidSignature, http.StatusBadRequest, "LnurlAuthInvalidSignature", "Invalid signature."},

	{session.ErrAccessTokenMissing, http.StatusUnauthorized, "AccessTokenMissing", "Authorization missing."},
	{session.ErrAccessTokenInvalid, http.StatusUnauthorized, "AccessTokenInvalid", "Authorization invalid."},
	{session.ErrAccessTokenExpired, http.StatusUnauthorized, "AccessTokenExpired", "Authorization expired."},
	{session.ErrRefreshTokenMissing, http.StatusUnauthorized, "RefreshTokenMissing", "Refresh token missing."},
	{session.ErrRefreshTokenInvalid, http.StatusUnauthorized, "RefreshTokenInvalid", "Refresh token invalid."},
	{session.ErrRefreshTokenExpired, http.StatusUnauthorized, "RefreshTokenExpired", "Refresh token expired."},
	{session.ErrRefreshTokenDenied, http.StatusUnauthorized, "RefreshTokenDenied", "Refresh token denied."},
	{session.ErrUserNotFound, http.StatusNotFound, "UserNotFound", "User not found."},
}

// respondDomainError maps a typed domain error to its envelope. Unknown
// errors are treated as persistence failures: logged and surfaced as a
// generic 500 without leaking details.
func respondDomainError(c *gin.Context, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.err) {
			respondError(c, mapping.status, mapping.message, mapping.code)
			return
		}
	}
	log.WithError(err).WithField("path", c.FullPath()).Error("unexpected error")
	respondError(c, http.StatusInternalServerError,
		"An unexpected error occurred. Please try again later or contact an admin.",
		"UnknownDatabaseError")
}
