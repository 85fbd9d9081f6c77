package models

import "gorm.io/datatypes"

// Set is a named batch of cards funded together. Card hashes are derived
// deterministically from the set id and the card index.
type Set struct {
	ID string `gorm:"primaryKey;type:text"`

	UserID *string `gorm:"type:text;index"` // Owning user, nil for anonymous sets.

	Settings *datatypes.JSONType[SetSettings]
	Invoice  *datatypes.JSONType[SetInvoice] // Aggregate funding invoice, immutable once created.
	Lnurlp   *datatypes.JSONType[SetLnurlp]  // Multi-payer pay link, exclusive with Invoice.

	Created int64 `gorm:"not null"` // Unix timestamp.
	Date    int64 `gorm:"not null"` // Unix timestamp of the last change.

	Text string `gorm:"type:text"`
	Note string `gorm:"type:text"`
}

// DefaultNumberOfCards is used when a set has no saved settings.
const DefaultNumberOfCards = 8

// SetSettings holds user-editable set options.
type SetSettings struct {
	NumberOfCards int    `json:"numberOfCards"`
	CardHeadline  string `json:"cardHeadline"`
	CardCopytext  string `json:"cardCopytext"`
	SetName       string `json:"setName,omitempty"`
}

// SetInvoice is the aggregate invoice covering a subset of card indices.
type SetInvoice struct {
	FundedCards    []int  `json:"fundedCards"`
	Amount         int64  `json:"amount"`
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
	Created        int64  `json:"created"`
	Paid           *int64 `json:"paid"`
	Expired        bool   `json:"expired,omitempty"`
}

// SetLnurlp is a multi-payer pull-payment link funding a subset of card
// indices. Payments accumulate until the target amount is reached.
type SetLnurlp struct {
	ID            string   `json:"id"`
	FundedCards   []int    `json:"fundedCards"`
	AmountPerCard int64    `json:"amountPerCard"`
	PaymentHashes []string `json:"payment_hash"`
	Amount        *int64   `json:"amount"` // Observed total so far.
	Created       int64    `json:"created"`
	Paid          *int64   `json:"paid"`
	Expired       bool     `json:"expired,omitempty"`
}

// TargetAmount is the total the observed payments have to reach.
func (l *SetLnurlp) TargetAmount() int64 {
	return l.AmountPerCard * int64(len(l.FundedCards))
}

// NumberOfCards returns the configured card count or the default.
func (s *Set) NumberOfCards() int {
	if s.Settings == nil {
		return DefaultNumberOfCards
	}
	settings := s.Settings.Data()
	if settings.NumberOfCards <= 0 {
		return DefaultNumberOfCards
	}
	return settings.NumberOfCards
}

// SettingsData returns the settings payload or nil.
func (s *Set) SettingsData() *SetSettings {
	if s.Settings == nil {
		return nil
	}
	data := s.Settings.Data()
	return &data
}

// InvoiceData returns the invoice payload or nil.
func (s *Set) InvoiceData() *SetInvoice {
	if s.Invoice == nil {
		return nil
	}
	data := s.Invoice.Data()
	return &data
}

// LnurlpData returns the pay-link payload or nil.
func (s *Set) LnurlpData() *SetLnurlp {
	if s.Lnurlp == nil {
		return nil
	}
	data := s.Lnurlp.Data()
	return &data
}

// SetSettingsPayload stores settings on the set.
func (s *Set) SetSettingsPayload(settings SetSettings) {
	wrapped := datatypes.NewJSONType(settings)
	s.Settings = &wrapped
}

// SetInvoicePayload stores the aggregate invoice on the set.
func (s *Set) SetInvoicePayload(inv SetInvoice) {
	wrapped := datatypes.NewJSONType(inv)
	s.Invoice = &wrapped
}

// SetLnurlpPayload stores the multi-payer pay link on the set.
func (s *Set) SetLnurlpPayload(link SetLnurlp) {
	wrapped := datatypes.NewJSONType(link)
	s.Lnurlp = &wrapped
}
