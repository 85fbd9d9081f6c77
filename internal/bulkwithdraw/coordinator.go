// Package bulkwithdraw coordinates one withdraw link over the aggregate
// funded amount of several cards. Member cards are locked for the lifetime
// of the request; the lock is released on both success and failure paths.
package bulkwithdraw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/models"
	"github.com/lnfunding/tipcards/internal/reconcile"
)

var (
	// ErrTooFewCards indicates a bulk withdraw over fewer than two cards.
	ErrTooFewCards = errors.New("bulk withdraw requires at least two cards")
	// ErrNotFound indicates an unknown bulk withdraw id.
	ErrNotFound = errors.New("bulk withdraw not found")
	// ErrWithdrawn indicates the bulk withdraw has already been redeemed.
	ErrWithdrawn = errors.New("bulk withdraw has already been redeemed")
	// ErrDeleted indicates the bulk withdraw has been revoked.
	ErrDeleted = errors.New("bulk withdraw has been deleted")
)

// Coordinator drives the bulk withdraw state machine:
// Requested -> Locked -> LinkCreated -> Committed | RolledBack.
type Coordinator struct {
	repo    *cards.Repo
	engine  *reconcile.Engine
	gateway reconcile.Gateway
	origin  string // Base URL for webhook callbacks.
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(repo *cards.Repo, engine *reconcile.Engine, gateway reconcile.Gateway, origin string) *Coordinator {
	return &Coordinator{repo: repo, engine: engine, gateway: gateway, origin: origin}
}

// Create locks the given cards, aggregates their funded amount and requests
// one withdraw link for the total. Any failure after locking releases the
// lock before the error propagates — no dangling locks.
//
// The per-card lock flag is advisory: two concurrent bulk withdraws over
// overlapping cards race on the lock check. The loser observes an already
// locked card and aborts.
func (c *Coordinator) Create(ctx context.Context, cardHashes []string) (*models.BulkWithdraw, error) {
	if len(cardHashes) < 2 {
		return nil, ErrTooFewCards
	}

	collection, err := cards.CollectionFromHashes(ctx, c.repo, cardHashes)
	if err != nil {
		return nil, err
	}
	if locked := collection.LockedCardHashes(); len(locked) > 0 {
		return nil, fmt.Errorf("cards %v: %w", locked, cards.ErrCardLocked)
	}
	if errLock := collection.Lock(ctx); errLock != nil {
		c.rollback(ctx, collection)
		return nil, errLock
	}

	amount, errAmount := collection.FundedAmount()
	if errAmount != nil {
		c.rollback(ctx, collection)
		return nil, errAmount
	}

	// The cards' individual withdraw links must be revoked before the
	// aggregate link exists, otherwise the funds could be pulled twice.
	for _, card := range collection.Cards() {
		if errRemove := c.engine.RemoveWithdrawLinkIfUnused(ctx, card); errRemove != nil {
			c.rollback(ctx, collection)
			return nil, errRemove
		}
	}

	id := uuid.NewString()
	link, errCreate := c.gateway.CreateWithdrawLink(ctx,
		fmt.Sprintf("Bulk withdrawing %d Tip Cards", collection.Length()),
		amount,
		c.origin+"/api/bulkWithdraw/withdrawn/"+id)
	if errCreate != nil {
		c.rollback(ctx, collection)
		return nil, fmt.Errorf("%w: %w", reconcile.ErrCreateWithdraw, errCreate)
	}

	bulk := &models.BulkWithdraw{
		ID:         id,
		Created:    time.Now().Unix(),
		Amount:     amount,
		CardHashes: collection.CardHashes(),
		WithdrawID: link.ID,
		LnurlW:     link.Lnurl,
	}
	if errSave := c.repo.SaveBulkWithdraw(ctx, bulk); errSave != nil {
		if errDelete := c.gateway.DeleteWithdrawLink(ctx, link.ID); errDelete != nil {
			log.WithError(errDelete).WithField("withdraw_id", link.ID).
				Error("bulk withdraw persistence failed and gateway link could not be removed, link is orphaned")
		}
		c.rollback(ctx, collection)
		return nil, errSave
	}
	return bulk, nil
}

// Delete revokes a pending bulk withdraw and releases the member cards. A
// redeemed bulk withdraw cannot be deleted.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	bulk, err := c.repo.GetBulkWithdraw(ctx, id)
	if err != nil {
		return err
	}
	if bulk == nil {
		return ErrNotFound
	}
	if bulk.Deleted != nil {
		return ErrDeleted
	}
	if bulk.Withdrawn != nil {
		return ErrWithdrawn
	}

	status, errStatus := c.gateway.GetWithdrawStatus(ctx, bulk.WithdrawID)
	if errStatus != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrCheckWithdrawStatus, errStatus)
	}
	if status.Used > 0 {
		return cards.ErrWithdrawUsed
	}
	if errDelete := c.gateway.DeleteWithdrawLink(ctx, bulk.WithdrawID); errDelete != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrDeleteWithdraw, errDelete)
	}

	collection, errLoad := cards.CollectionFromHashes(ctx, c.repo, bulk.CardHashes)
	if errLoad != nil {
		return errLoad
	}
	if errUnlock := collection.Unlock(ctx); errUnlock != nil {
		return errUnlock
	}

	now := time.Now().Unix()
	bulk.Deleted = &now
	return c.repo.SaveBulkWithdraw(ctx, bulk)
}

// MarkWithdrawn commits a redeemed bulk withdraw: every member card is
// marked used and the bulk withdraw records its redemption time. Called
// from the gateway webhook once the aggregate link has been spent.
func (c *Coordinator) MarkWithdrawn(ctx context.Context, id string) error {
	bulk, err := c.repo.GetBulkWithdraw(ctx, id)
	if err != nil {
		return err
	}
	if bulk == nil {
		return ErrNotFound
	}
	if bulk.Withdrawn != nil {
		return nil
	}

	collection, errLoad := cards.CollectionFromHashes(ctx, c.repo, bulk.CardHashes)
	if errLoad != nil {
		return errLoad
	}
	now := time.Now().Unix()
	for _, card := range collection.Cards() {
		card.Used = &now
		card.LockedByBulkWithdraw = false
		if errSave := c.repo.SaveCard(ctx, card); errSave != nil {
			return errSave
		}
	}

	bulk.Withdrawn = &now
	return c.repo.SaveBulkWithdraw(ctx, bulk)
}

// rollback releases the card locks on a failed bulk withdraw. A failure to
// unlock is logged and leaves the cards locked until the flag is cleared
// manually.
func (c *Coordinator) rollback(ctx context.Context, collection *cards.Collection) {
	if errUnlock := collection.Unlock(ctx); errUnlock != nil {
		log.WithError(errUnlock).WithField("card_hashes", collection.CardHashes()).
			Error("could not release bulk withdraw lock")
	}
}
