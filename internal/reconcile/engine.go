// Package reconcile bridges the funding ledger to the external Lightning
// payment gateway: it creates invoices and pull-payment links, polls their
// settlement state and records observed payments on cards and sets.
package reconcile

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/lnbits"
	"github.com/lnfunding/tipcards/internal/models"
)

// MinInvoiceSats is the smallest accepted direct invoice amount.
const MinInvoiceSats = 100

// MinSetInvoicePerCardSats is the smallest accepted per-card amount for a
// set invoice.
const MinSetInvoicePerCardSats = 21

// lnurlpMaxSats bounds a single pull payment towards a card.
const lnurlpMaxSats = 1_000_000

// Gateway is the subset of gateway operations the engine consumes.
type Gateway interface {
	CreateInvoice(ctx context.Context, amountSats int64, memo string, webhook string) (*lnbits.Invoice, error)
	GetInvoiceStatus(ctx context.Context, paymentHash string) (*lnbits.InvoiceStatus, error)
	CreateLnurlp(ctx context.Context, description string, minSats, maxSats int64, webhook string) (*lnbits.LnurlpLink, error)
	GetLnurlpPayments(ctx context.Context, lnurlpID string) ([]lnbits.LnurlpPayment, error)
	DeleteLnurlp(ctx context.Context, lnurlpID string) error
	CreateWithdrawLink(ctx context.Context, title string, amountSats int64, webhook string) (*lnbits.WithdrawLink, error)
	GetWithdrawStatus(ctx context.Context, withdrawID string) (*lnbits.WithdrawStatus, error)
	DeleteWithdrawLink(ctx context.Context, withdrawID string) error
}

// Engine reconciles funding state between the ledger and the gateway.
type Engine struct {
	repo      *cards.Repo
	gateway   Gateway
	apiOrigin string // Base URL for webhook callbacks.
}

// NewEngine constructs an Engine.
func NewEngine(repo *cards.Repo, gateway Gateway, apiOrigin string) *Engine {
	return &Engine{repo: repo, gateway: gateway, apiOrigin: apiOrigin}
}

// CreateInvoiceForCard creates (or idempotently returns) the funding invoice
// for a card and returns its payment request.
//
// Gateway creation and persistence are not transactional: when the gateway
// call succeeds but the write fails, the invoice stays payable externally
// with no local record. The failure is logged and surfaced, not compensated.
func (e *Engine) CreateInvoiceForCard(ctx context.Context, cardHash string, amountSats int64, text, note string) (string, error) {
	if amountSats < MinInvoiceSats {
		return "", fmt.Errorf("%w: %d sats", ErrInvalidAmount, amountSats)
	}

	card, err := e.repo.GetCard(ctx, cardHash)
	if err != nil {
		return "", err
	}
	if card != nil && cards.ActivePath(card) != cards.PathNone {
		// Re-request of an existing invoice: the ledger decides between
		// idempotent replay and a conflict.
		if errAttach := cards.AttachInvoice(card, models.CardInvoice{Amount: amountSats}); errAttach != nil {
			return "", errAttach
		}
		return card.InvoiceData().PaymentRequest, nil
	}

	invoice, errCreate := e.gateway.CreateInvoice(ctx, amountSats, "Fund your Lightning Tip Card",
		e.apiOrigin+"/api/invoice/paid/"+cardHash)
	if errCreate != nil {
		return "", fmt.Errorf("%w: %w", ErrCreateInvoice, errCreate)
	}

	if card == nil {
		card = &models.Card{CardHash: cardHash, Text: text, Note: note}
	}
	if errAttach := cards.AttachInvoice(card, models.CardInvoice{
		Amount:         amountSats,
		PaymentHash:    invoice.PaymentHash,
		PaymentRequest: invoice.PaymentRequest,
		Created:        time.Now().Unix(),
	}); errAttach != nil {
		return "", errAttach
	}
	if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
		log.WithError(errSave).WithFields(log.Fields{
			"card_hash":    cardHash,
			"payment_hash": invoice.PaymentHash,
		}).Error("invoice created at gateway but persistence failed, invoice is orphaned")
		return "", errSave
	}
	return invoice.PaymentRequest, nil
}

// CheckInvoicePaid checks the card's funding invoice against the gateway and
// records the payment. Already paid cards return immediately without a
// gateway call. On payment a withdraw link is attached to the card.
func (e *Engine) CheckInvoicePaid(ctx context.Context, card *models.Card) error {
	invoice := card.InvoiceData()
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

	if errMark := cards.MarkPaid(card, invoice.Amount, time.Now().Unix()); errMark != nil {
		return errMark
	}
	if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
		return errSave
	}
	return e.attachWithdrawLink(ctx, card)
}

// CreateLnurlp creates a pull-payment funding link for a card, creating the
// card record when it does not exist yet. Shared links accept payments from
// multiple payers until the card is finished.
func (e *Engine) CreateLnurlp(ctx context.Context, cardHash string, shared bool) (*models.Card, error) {
	card, err := e.repo.GetCard(ctx, cardHash)
	if err != nil {
		return nil, err
	}
	if card != nil && cards.ActivePath(card) != cards.PathNone {
		if errAttach := cards.AttachLnurlp(card, models.CardLnurlp{Shared: shared}); errAttach != nil {
			return nil, errAttach
		}
		return card, nil
	}

	link, errCreate := e.gateway.CreateLnurlp(ctx, "Fund your Lightning Tip Card",
		MinSetInvoicePerCardSats, lnurlpMaxSats,
		e.apiOrigin+"/api/lnurlp/paid/"+cardHash)
	if errCreate != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateLnurlp, errCreate)
	}

	if card == nil {
		card = &models.Card{CardHash: cardHash}
	}
	if errAttach := cards.AttachLnurlp(card, models.CardLnurlp{
		ID:      link.ID,
		Shared:  shared,
		Created: time.Now().Unix(),
	}); errAttach != nil {
		return nil, errAttach
	}
	if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
		log.WithError(errSave).WithField("card_hash", cardHash).
			Error("lnurlp link created at gateway but persistence failed, link is orphaned")
		return nil, errSave
	}
	return card, nil
}

// CheckLnurlpPaid polls the gateway for payments against the card's
// pull-payment link. Single-payer links are marked paid on the first
// payment; shared links only record observed payments and are settled by
// FinishSharedLnurlp.
func (e *Engine) CheckLnurlpPaid(ctx context.Context, card *models.Card) error {
	lnurlp := card.LnurlpData()
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
	if len(payments) == 0 {
		return nil
	}

	total := recordPayments(&lnurlp.PaymentHashes, payments)
	if lnurlp.Shared {
		lnurlp.Amount = &total
		card.SetLnurlpPath(*lnurlp)
		return e.repo.SaveCard(ctx, card)
	}

	card.SetLnurlpPath(*lnurlp)
	if errMark := cards.MarkPaid(card, total, time.Now().Unix()); errMark != nil {
		return errMark
	}
	if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
		return errSave
	}
	return e.attachWithdrawLink(ctx, card)
}

// FinishSharedLnurlp settles a shared pull-payment link: the total of all
// recorded payments becomes the card's funded amount and the link stops
// accepting further payers.
func (e *Engine) FinishSharedLnurlp(ctx context.Context, card *models.Card) error {
	lnurlp := card.LnurlpData()
	if lnurlp == nil || !lnurlp.Shared {
		return ErrNotSharedFunding
	}
	if lnurlp.Paid != nil {
		return nil
	}

	payments, errPayments := e.gateway.GetLnurlpPayments(ctx, lnurlp.ID)
	if errPayments != nil {
		return fmt.Errorf("%w: %w", ErrCheckLnurlpStatus, errPayments)
	}
	total := recordPayments(&lnurlp.PaymentHashes, payments)
	if total <= 0 {
		return cards.ErrCardNotFunded
	}

	card.SetLnurlpPath(*lnurlp)
	if errMark := cards.MarkPaid(card, total, time.Now().Unix()); errMark != nil {
		return errMark
	}
	if errSave := e.repo.SaveCard(ctx, card); errSave != nil {
		return errSave
	}
	if errDelete := e.gateway.DeleteLnurlp(ctx, lnurlp.ID); errDelete != nil {
		// The card is settled either way; a dangling link only rejects
		// payments once the gateway eventually drops it.
		log.WithError(errDelete).WithField("card_hash", card.CardHash).
			Warn("could not remove settled lnurlp link at gateway")
	}
	return e.attachWithdrawLink(ctx, card)
}

// attachWithdrawLink creates the card's withdraw link over its funded amount.
func (e *Engine) attachWithdrawLink(ctx context.Context, card *models.Card) error {
	if card.WithdrawID != nil {
		return nil
	}
	amount, errAmount := cards.FundedAmount(card)
	if errAmount != nil {
		return errAmount
	}
	link, errCreate := e.gateway.CreateWithdrawLink(ctx, card.Text, amount,
		e.apiOrigin+"/api/withdraw/used/"+card.CardHash)
	if errCreate != nil {
		return fmt.Errorf("%w: %w", ErrCreateWithdraw, errCreate)
	}
	card.WithdrawID = &link.ID
	return e.repo.SaveCard(ctx, card)
}

// recordPayments merges observed gateway payments into the recorded hash
// list and returns the total observed amount. Payment hashes are
// deduplicated so repeated polls never double count.
func recordPayments(hashes *[]string, payments []lnbits.LnurlpPayment) int64 {
	seen := make(map[string]struct{}, len(*hashes))
	for _, hash := range *hashes {
		seen[hash] = struct{}{}
	}
	var total int64
	for _, payment := range payments {
		if _, ok := seen[payment.PaymentHash]; !ok {
			seen[payment.PaymentHash] = struct{}{}
			*hashes = append(*hashes, payment.PaymentHash)
		}
		total += payment.Amount
	}
	return total
}
