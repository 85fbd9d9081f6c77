// Package cards holds the funding state machine for tip cards: the funding
// path invariants, the collection used by bulk operations and the gorm-backed
// repository both are persisted through.
package cards

import "github.com/lnfunding/tipcards/internal/models"

// PathKind identifies a card's active funding path.
type PathKind int

const (
	// PathNone means no funding path is attached.
	PathNone PathKind = iota
	// PathInvoice is a direct lightning invoice.
	PathInvoice
	// PathLnurlp is a pull-payment link.
	PathLnurlp
	// PathSetFunding is an allocation from a paid set invoice.
	PathSetFunding
)

// ActivePath returns the card's current funding path kind. The exclusivity
// invariant guarantees at most one path is set; when state has been corrupted
// externally the first non-nil path in declaration order wins.
func ActivePath(card *models.Card) PathKind {
	switch {
	case card.Invoice != nil:
		return PathInvoice
	case card.Lnurlp != nil:
		return PathLnurlp
	case card.SetFunding != nil:
		return PathSetFunding
	default:
		return PathNone
	}
}

// attachCheck is the single entry point enforcing funding path exclusivity.
//
// Attaching the same kind with the same amount to an unpaid card is a no-op
// so clients can safely repeat funding requests. A paid card rejects every
// further attach, a differing amount on the same kind is a mismatch and a
// differing kind is a conflict.
func attachCheck(card *models.Card, kind PathKind, amount int64) (attach bool, err error) {
	if card.Used != nil {
		return false, ErrCardWithdrawn
	}
	active := ActivePath(card)
	if active == PathNone {
		return true, nil
	}
	if active != kind {
		return false, ErrFundingConflict
	}
	existingAmount, paid := pathAmount(card, active)
	if paid != nil {
		return false, ErrAlreadyFunded
	}
	if existingAmount != nil && *existingAmount != amount {
		return false, ErrAmountMismatch
	}
	return false, nil
}

// AttachInvoice attaches a direct invoice funding path.
func AttachInvoice(card *models.Card, inv models.CardInvoice) error {
	attach, err := attachCheck(card, PathInvoice, inv.Amount)
	if err != nil {
		return err
	}
	if attach {
		card.SetInvoicePath(inv)
	}
	return nil
}

// AttachLnurlp attaches a pull-payment funding path. The amount of a
// pull-payment link is unknown until payments arrive, so repeated attaches
// of an unpaid link are no-ops.
func AttachLnurlp(card *models.Card, lnurlp models.CardLnurlp) error {
	amount := int64(0)
	if lnurlp.Amount != nil {
		amount = *lnurlp.Amount
	}
	attach, err := attachCheck(card, PathLnurlp, amount)
	if err != nil {
		return err
	}
	if attach {
		card.SetLnurlpPath(lnurlp)
	}
	return nil
}

// AttachSetFunding attaches a set-allocation funding path.
func AttachSetFunding(card *models.Card, funding models.CardSetFunding) error {
	attach, err := attachCheck(card, PathSetFunding, funding.Amount)
	if err != nil {
		return err
	}
	if attach {
		card.SetSetFundingPath(funding)
	}
	return nil
}

// MarkPaid records an observed payment on the card's active funding path.
// The observed amount overrides the recorded one for pull-payment links,
// whose amount is only known once payments arrive.
func MarkPaid(card *models.Card, amountObserved int64, paidAt int64) error {
	switch ActivePath(card) {
	case PathInvoice:
		inv := *card.InvoiceData()
		inv.Paid = &paidAt
		card.SetInvoicePath(inv)
	case PathLnurlp:
		lnurlp := *card.LnurlpData()
		lnurlp.Amount = &amountObserved
		lnurlp.Paid = &paidAt
		card.SetLnurlpPath(lnurlp)
	case PathSetFunding:
		funding := *card.SetFundingData()
		funding.Paid = &paidAt
		card.SetSetFundingPath(funding)
	default:
		return ErrNoFundingPath
	}
	return nil
}

// FundedAmount returns the paid amount of the card's active funding path.
func FundedAmount(card *models.Card) (int64, error) {
	if card.Used != nil {
		return 0, ErrCardWithdrawn
	}
	if inv := card.InvoiceData(); inv != nil && inv.Paid != nil {
		return inv.Amount, nil
	}
	if lnurlp := card.LnurlpData(); lnurlp != nil && lnurlp.Paid != nil && lnurlp.Amount != nil {
		return *lnurlp.Amount, nil
	}
	if funding := card.SetFundingData(); funding != nil && funding.Paid != nil {
		return funding.Amount, nil
	}
	return 0, ErrCardNotFunded
}

// pathAmount returns the recorded amount and paid timestamp of the given path.
func pathAmount(card *models.Card, kind PathKind) (amount *int64, paid *int64) {
	switch kind {
	case PathInvoice:
		if inv := card.InvoiceData(); inv != nil {
			return &inv.Amount, inv.Paid
		}
	case PathLnurlp:
		if lnurlp := card.LnurlpData(); lnurlp != nil {
			return lnurlp.Amount, lnurlp.Paid
		}
	case PathSetFunding:
		if funding := card.SetFundingData(); funding != nil {
			return &funding.Amount, funding.Paid
		}
	}
	return nil, nil
}
