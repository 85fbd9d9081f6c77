package reconcile

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/models"
)

// checkSetFundable validates a set funding request and returns the existing
// set. A set with any funding payload conflicts: paid means
// ErrSetAlreadyFunded, an unpaid payload reports which kind already exists.
func (e *Engine) checkSetFundable(ctx context.Context, setID string, amountPerCard int64, cardIndices []int) (*models.Set, error) {
	if amountPerCard < MinSetInvoicePerCardSats {
		return nil, fmt.Errorf("%w: %d sats per card", ErrInvalidAmount, amountPerCard)
	}
	if len(cardIndices) < 1 {
		return nil, ErrNoCardIndices
	}

	set, err := e.repo.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if set != nil && set.Invoice != nil {
		if set.InvoiceData().Paid != nil {
			return nil, ErrSetAlreadyFunded
		}
		return nil, ErrSetInvoiceExists
	}
	if set != nil && set.Lnurlp != nil {
		if set.LnurlpData().Paid != nil {
			return nil, ErrSetAlreadyFunded
		}
		return nil, ErrSetLnurlpExists
	}
	return set, nil
}

// attachDerivedCards attaches an unpaid set-funding path to every derived
// card, creating missing card records along the way.
func (e *Engine) attachDerivedCards(ctx context.Context, setID string, cardIndices []int, amountPerCard int64, text, note string, now int64) error {
	for _, index := range cardIndices {
		cardHash := cards.HashForSetCard(setID, index)
		card, errCard := e.repo.GetCard(ctx, cardHash)
		if errCard != nil {
			return errCard
		}
		if card == nil {
			card = &models.Card{CardHash: cardHash, Text: text, Note: note}
		}
		if errAttach := cards.AttachSetFunding(card, models.CardSetFunding{
			Amount:  amountPerCard,
			Created: now,
		}); errAttach != nil {
			return fmt.Errorf("card %s: %w", cardHash, errAttach)
		}
		if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
			return errSave
		}
	}
	return nil
}

// settleDerivedCards marks the set-funding path of every derived card as
// paid. Already settled cards are skipped, so the loop can resume after a
// partial failure.
func (e *Engine) settleDerivedCards(ctx context.Context, setID string, cardIndices []int, now int64) error {
	for _, index := range cardIndices {
		cardHash := cards.HashForSetCard(setID, index)
		card, errCard := e.repo.GetCard(ctx, cardHash)
		if errCard != nil {
			return errCard
		}
		if card == nil {
			log.WithFields(log.Fields{"set_id": setID, "card_hash": cardHash}).
				Warn("set funding paid but derived card is missing")
			continue
		}
		funding := card.SetFundingData()
		if funding == nil || funding.Paid != nil {
			continue
		}
		if errMark := cards.MarkPaid(card, funding.Amount, now); errMark != nil {
			return errMark
		}
		if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
			return errSave
		}
	}
	return nil
}

// CreateSetInvoice creates one aggregate invoice covering the chosen card
// indices of a set and attaches a set-funding path to every derived card.
// A set with an existing funding payload conflicts — the invoice amount is
// immutable.
func (e *Engine) CreateSetInvoice(ctx context.Context, setID string, amountPerCard int64, cardIndices []int, text, note string) (*models.Set, error) {
	set, err := e.checkSetFundable(ctx, setID, amountPerCard, cardIndices)
	if err != nil {
		return nil, err
	}

	amount := amountPerCard * int64(len(cardIndices))
	invoice, errCreate := e.gateway.CreateInvoice(ctx, amount,
		fmt.Sprintf("Fund %d Lightning Tip Cards", len(cardIndices)),
		e.apiOrigin+"/api/set/invoice/paid/"+setID)
	if errCreate != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateInvoice, errCreate)
	}

	now := time.Now().Unix()
	if set == nil {
		set = &models.Set{ID: setID, Created: now}
	}
	set.Date = now
	set.Text = text
	set.Note = note
	set.SetInvoicePayload(models.SetInvoice{
		FundedCards:    cardIndices,
		Amount:         amount,
		PaymentHash:    invoice.PaymentHash,
		PaymentRequest: invoice.PaymentRequest,
		Created:        now,
	})

	if errAttach := e.attachDerivedCards(ctx, setID, cardIndices, amountPerCard, text, note, now); errAttach != nil {
		return nil, errAttach
	}

	if errSave := e.repo.SaveSet(ctx, set); errSave != nil {
		log.WithError(errSave).WithFields(log.Fields{
			"set_id":       setID,
			"payment_hash": invoice.PaymentHash,
		}).Error("set invoice created at gateway but persistence failed, invoice is orphaned")
		return nil, errSave
	}
	return set, nil
}

// CheckSetInvoicePaid checks the set invoice against the gateway and, once
// paid, marks the set-funding path of every derived card as paid.
func (e *Engine) CheckSetInvoicePaid(ctx context.Context, set *models.Set) error {
	invoice := set.InvoiceData()
	if invoice == nil {
		return cards.ErrNoFundingPath
	}
	if invoice.Paid != nil {
		return nil
	}

	status, errStatus := e.gateway.GetInvoiceStatus(ctx, invoice.PaymentHash)
	if errStatus != nil {
		return fmt.Errorf("%w: %w", ErrCheckInvoiceStatus, errStatus)
	}
	if !status.Paid {
		return nil
	}

	// The derived cards settle first and the set's paid flag is written
	// last: a failed card save leaves the invoice unpaid, so the next
	// check resumes with the remaining cards instead of short-circuiting.
	now := time.Now().Unix()
	if errSettle := e.settleDerivedCards(ctx, set.ID, invoice.FundedCards, now); errSettle != nil {
		return errSettle
	}

	invoice.Paid = &now
	set.SetInvoicePayload(*invoice)
	return e.repo.SaveSet(ctx, set)
}

// CreateSetLnurlp creates one multi-payer pull-payment link covering the
// chosen card indices of a set. Independent payments accumulate towards the
// aggregate target; conflicts mirror CreateSetInvoice.
func (e *Engine) CreateSetLnurlp(ctx context.Context, setID string, amountPerCard int64, cardIndices []int, text, note string) (*models.Set, error) {
	set, err := e.checkSetFundable(ctx, setID, amountPerCard, cardIndices)
	if err != nil {
		return nil, err
	}

	link, errCreate := e.gateway.CreateLnurlp(ctx,
		fmt.Sprintf("Fund %d Lightning Tip Cards", len(cardIndices)),
		MinSetInvoicePerCardSats, lnurlpMaxSats,
		e.apiOrigin+"/api/set/lnurlp/paid/"+setID)
	if errCreate != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateLnurlp, errCreate)
	}

	now := time.Now().Unix()
	if set == nil {
		set = &models.Set{ID: setID, Created: now}
	}
	set.Date = now
	set.Text = text
	set.Note = note
	set.SetLnurlpPayload(models.SetLnurlp{
		ID:            link.ID,
		FundedCards:   cardIndices,
		AmountPerCard: amountPerCard,
		Created:       now,
	})

	if errAttach := e.attachDerivedCards(ctx, setID, cardIndices, amountPerCard, text, note, now); errAttach != nil {
		return nil, errAttach
	}

	if errSave := e.repo.SaveSet(ctx, set); errSave != nil {
		log.WithError(errSave).WithFields(log.Fields{
			"set_id":    setID,
			"lnurlp_id": link.ID,
		}).Error("set pay link created at gateway but persistence failed, link is orphaned")
		return nil, errSave
	}
	return set, nil
}

// CheckSetLnurlpPaid polls the gateway for payments against the set's pay
// link. Observed payments are recorded; once their total meets the target
// the derived cards settle, the set is marked paid and the link stops
// accepting further payers.
func (e *Engine) CheckSetLnurlpPaid(ctx context.Context, set *models.Set) error {
	lnurlp := set.LnurlpData()
	if lnurlp == nil {
		return cards.ErrNoFundingPath
	}
	if lnurlp.Paid != nil {
		return nil
	}

	payments, errPayments := e.gateway.GetLnurlpPayments(ctx, lnurlp.ID)
	if errPayments != nil {
		return fmt.Errorf("%w: %w", ErrCheckLnurlpStatus, errPayments)
	}

	total := recordPayments(&lnurlp.PaymentHashes, payments)
	lnurlp.Amount = &total
	if total < lnurlp.TargetAmount() {
		set.SetLnurlpPayload(*lnurlp)
		return e.repo.SaveSet(ctx, set)
	}

	// Same ordering as CheckSetInvoicePaid: cards first, set paid last.
	now := time.Now().Unix()
	if errSettle := e.settleDerivedCards(ctx, set.ID, lnurlp.FundedCards, now); errSettle != nil {
		return errSettle
	}

	lnurlp.Paid = &now
	set.SetLnurlpPayload(*lnurlp)
	if errSave := e.repo.SaveSet(ctx, set); errSave != nil {
		return errSave
	}
	if errDelete := e.gateway.DeleteLnurlp(ctx, lnurlp.ID); errDelete != nil {
		// The set settles either way; a dangling link only rejects
		// payments once the gateway eventually drops it.
		log.WithError(errDelete).WithField("set_id", set.ID).
			Warn("could not remove settled lnurlp link at gateway")
	}
	return nil
}

// fundedIndices returns the card indices covered by whichever funding
// payload the set carries.
func fundedIndices(set *models.Set) []int {
	if invoice := set.InvoiceData(); invoice != nil {
		return invoice.FundedCards
	}
	if lnurlp := set.LnurlpData(); lnurlp != nil {
		return lnurlp.FundedCards
	}
	return nil
}

// DeleteSet removes a set, or only its funding payload when invoiceOnly is
// set. A paid set blocks deletion in both modes. Invoice-only deletion also
// removes the derived, still unfunded cards and keeps the set itself alive
// when it has an owner.
func (e *Engine) DeleteSet(ctx context.Context, set *models.Set, invoiceOnly bool) error {
	if set.Invoice == nil && set.Lnurlp == nil {
		if invoiceOnly && set.UserID != nil {
			return nil
		}
		return e.repo.DeleteSet(ctx, set)
	}

	if set.Invoice != nil {
		if errCheck := e.CheckSetInvoicePaid(ctx, set); errCheck != nil {
			return errCheck
		}
		if set.InvoiceData().Paid != nil {
			return ErrCannotDeleteFundedSet
		}
	}
	if set.Lnurlp != nil {
		if errCheck := e.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
			return errCheck
		}
		if set.LnurlpData().Paid != nil {
			return ErrCannotDeleteFundedSet
		}
	}

	for _, index := range fundedIndices(set) {
		card, errCard := e.repo.GetCard(ctx, cards.HashForSetCard(set.ID, index))
		if errCard != nil {
			return errCard
		}
		if card == nil || card.SetFunding == nil {
			continue
		}
		if errDelete := e.repo.DeleteCard(ctx, card); errDelete != nil {
			return errDelete
		}
	}

	if lnurlp := set.LnurlpData(); lnurlp != nil {
		if errDelete := e.gateway.DeleteLnurlp(ctx, lnurlp.ID); errDelete != nil {
			log.WithError(errDelete).WithField("set_id", set.ID).
				Warn("could not remove lnurlp link at gateway")
		}
	}

	if invoiceOnly && set.UserID != nil {
		set.Invoice = nil
		set.Lnurlp = nil
		set.Date = time.Now().Unix()
		return e.repo.SaveSet(ctx, set)
	}
	return e.repo.DeleteSet(ctx, set)
}
