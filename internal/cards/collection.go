package cards

import (
	"context"
	"fmt"

	"github.com/lnfunding/tipcards/internal/models"
)

// Collection is a loaded group of cards operated on together, typically the
// members of a set or of a bulk withdraw.
type Collection struct {
	repo  *Repo
	cards []*models.Card
}

// CollectionFromSet loads all existing cards of a set. Cards that were never
// funded have no record yet and are skipped.
func CollectionFromSet(ctx context.Context, repo *Repo, set *models.Set) (*Collection, error) {
	loaded := make([]*models.Card, 0, set.NumberOfCards())
	for index := 0; index < set.NumberOfCards(); index++ {
		card, err := repo.GetCard(ctx, HashForSetCard(set.ID, index))
		if err != nil {
			return nil, err
		}
		if card == nil {
			continue
		}
		loaded = append(loaded, card)
	}
	return &Collection{repo: repo, cards: loaded}, nil
}

// CollectionFromHashes loads the given cards. A missing card is an error.
func CollectionFromHashes(ctx context.Context, repo *Repo, cardHashes []string) (*Collection, error) {
	loaded := make([]*models.Card, 0, len(cardHashes))
	for _, cardHash := range cardHashes {
		card, err := repo.GetCard(ctx, cardHash)
		if err != nil {
			return nil, err
		}
		if card == nil {
			return nil, fmt.Errorf("card %s: %w", cardHash, ErrCardNotFound)
		}
		loaded = append(loaded, card)
	}
	return &Collection{repo: repo, cards: loaded}, nil
}

// Length returns the number of loaded cards.
func (col *Collection) Length() int {
	return len(col.cards)
}

// Cards returns the loaded cards.
func (col *Collection) Cards() []*models.Card {
	return col.cards
}

// CardHashes returns the hashes of the loaded cards.
func (col *Collection) CardHashes() []string {
	hashes := make([]string, len(col.cards))
	for i, card := range col.cards {
		hashes[i] = card.CardHash
	}
	return hashes
}

// FundedAmount sums the funded amount over all loaded cards. Any card that
// is not cleanly fundable aborts the whole computation.
func (col *Collection) FundedAmount() (int64, error) {
	var total int64
	for _, card := range col.cards {
		amount, err := FundedAmount(card)
		if err != nil {
			return 0, fmt.Errorf("card %s: %w", card.CardHash, err)
		}
		total += amount
	}
	return total, nil
}

// Lock sets the bulk withdraw lock on every card. Locking is idempotent per
// card but not atomic across cards; callers reconcile a partial failure by
// retrying or calling Unlock.
func (col *Collection) Lock(ctx context.Context) error {
	return col.setLock(ctx, true)
}

// Unlock clears the bulk withdraw lock on every card. Safe to call on cards
// that are not locked.
func (col *Collection) Unlock(ctx context.Context) error {
	return col.setLock(ctx, false)
}

// LockedCardHashes returns the hashes of cards currently locked by a bulk
// withdraw.
func (col *Collection) LockedCardHashes() []string {
	var locked []string
	for _, card := range col.cards {
		if card.LockedByBulkWithdraw {
			locked = append(locked, card.CardHash)
		}
	}
	return locked
}

func (col *Collection) setLock(ctx context.Context, locked bool) error {
	for _, card := range col.cards {
		if card.LockedByBulkWithdraw == locked {
			continue
		}
		card.LockedByBulkWithdraw = locked
		if err := col.repo.SaveCard(ctx, card); err != nil {
			return err
		}
	}
	return nil
}
