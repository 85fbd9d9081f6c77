package reconcile

import (
	"context"
	"fmt"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/models"
)

// RemoveWithdrawLinkIfUnused revokes the card's withdraw link at the gateway.
// A link the gateway reports as spent must never be silently discarded, so
// the call fails with cards.ErrWithdrawUsed instead.
func (e *Engine) RemoveWithdrawLinkIfUnused(ctx context.Context, card *models.Card) error {
	if card.WithdrawID == nil {
		return nil
	}

	status, errStatus := e.gateway.GetWithdrawStatus(ctx, *card.WithdrawID)
	if errStatus != nil {
		return fmt.Errorf("%w: %w", ErrCheckWithdrawStatus, errStatus)
	}
	if status.Used > 0 {
		return cards.ErrWithdrawUsed
	}

	if errDelete := e.gateway.DeleteWithdrawLink(ctx, *card.WithdrawID); errDelete != nil {
		return fmt.Errorf("%w: %w", ErrDeleteWithdraw, errDelete)
	}
	card.WithdrawID = nil
	return e.repo.SaveCard(ctx, card)
}
