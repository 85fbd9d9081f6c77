package models

import "gorm.io/datatypes"

// Card represents a single tip card keyed by its deterministic hash.
//
// At most one of the three funding paths (Invoice, Lnurlp, SetFunding) may be
// set at any time; internal/cards enforces the invariant. A card with a
// non-nil Used timestamp is terminal.
type Card struct {
	CardHash string `gorm:"primaryKey;type:text"` // sha256 hex of "setId/index" or standalone.

	Text string `gorm:"type:text"` // Headline shown on the landing page.
	Note string `gorm:"type:text"` // Free-text note for the card owner.

	Invoice    *datatypes.JSONType[CardInvoice]    // Direct lightning invoice funding.
	Lnurlp     *datatypes.JSONType[CardLnurlp]     // Pull-payment link funding.
	SetFunding *datatypes.JSONType[CardSetFunding] // Allocation from a paid set invoice.

	WithdrawID           *string `gorm:"type:text"` // Gateway withdraw link id, set once funded.
	LandingPageViewed    *int64  // Unix timestamp of the first landing page view.
	LockedByBulkWithdraw bool    `gorm:"not null;default:false"`
	Used                 *int64  // Unix timestamp of withdrawal, terminal.
}

// CardInvoice is the invoice funding path payload.
type CardInvoice struct {
	Amount         int64  `json:"amount"`
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	Created        int64  `json:"created"`
	Paid           *int64 `json:"paid"`
	Expired        bool   `json:"expired,omitempty"`
}

// CardLnurlp is the pull-payment funding path payload. In shared mode the
// link stays open for multiple payers and every observed payment hash is
// recorded until the card is finished.
type CardLnurlp struct {
	ID            string   `json:"id"`
	Shared        bool     `json:"shared,omitempty"`
	Amount        *int64   `json:"amount"`
	PaymentHashes []string `json:"payment_hash"`
	Created       int64    `json:"created"`
	Paid          *int64   `json:"paid"`
	Expired       bool     `json:"expired,omitempty"`
}

// CardSetFunding is the set-allocation funding path payload.
type CardSetFunding struct {
	Amount  int64  `json:"amount"`
	Created int64  `json:"created"`
	Paid    *int64 `json:"paid"`
}

// InvoiceData returns the invoice payload or nil.
func (c *Card) InvoiceData() *CardInvoice {
	if c.Invoice == nil {
		return nil
	}
	data := c.Invoice.Data()
	return &data
}

// LnurlpData returns the pull-payment payload or nil.
func (c *Card) LnurlpData() *CardLnurlp {
	if c.Lnurlp == nil {
		return nil
	}
	data := c.Lnurlp.Data()
	return &data
}

// SetFundingData returns the set-funding payload or nil.
func (c *Card) SetFundingData() *CardSetFunding {
	if c.SetFunding == nil {
		return nil
	}
	data := c.SetFunding.Data()
	return &data
}

// SetInvoicePath stores inv as the card's invoice funding path.
func (c *Card) SetInvoicePath(inv CardInvoice) {
	wrapped := datatypes.NewJSONType(inv)
	c.Invoice = &wrapped
}

// SetLnurlpPath stores lnurlp as the card's pull-payment funding path.
func (c *Card) SetLnurlpPath(lnurlp CardLnurlp) {
	wrapped := datatypes.NewJSONType(lnurlp)
	c.Lnurlp = &wrapped
}

// SetSetFundingPath stores funding as the card's set-allocation funding path.
func (c *Card) SetSetFundingPath(funding CardSetFunding) {
	wrapped := datatypes.NewJSONType(funding)
	c.SetFunding = &wrapped
}
