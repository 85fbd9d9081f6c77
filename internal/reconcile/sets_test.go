package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/lnfunding/tipcards/internal/cards"
)

func TestCreateSetInvoiceValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateSetInvoice(ctx, "set-1", MinSetInvoicePerCardSats-1, []int{0, 1}, "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.CreateSetInvoice(ctx, "set-1", 500, nil, "", ""); !errors.Is(err, ErrNoCardIndices) {
		t.Fatalf("expected ErrNoCardIndices, got %v", err)
	}
}

func TestSetFundingTwoCardScenario(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0, 1}, "text", "note")
	if err != nil {
		t.Fatalf("create set invoice: %v", err)
	}
	invoice := set.InvoiceData()
	if invoice.Amount != 1000 {
		t.Fatalf("expected aggregate amount 1000, got %d", invoice.Amount)
	}

	// Both derived cards carry an unpaid set-funding path.
	for _, index := range []int{0, 1} {
		card, errGet := repo.GetCard(ctx, cards.HashForSetCard("set-1", index))
		if errGet != nil {
			t.Fatalf("get card %d: %v", index, errGet)
		}
		funding := card.SetFundingData()
		if funding == nil || funding.Amount != 500 || funding.Paid != nil {
			t.Fatalf("card %d: unexpected set funding %+v", index, funding)
		}
	}

	gateway.markInvoicePaid(invoice.PaymentHash)
	if errCheck := engine.CheckSetInvoicePaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if set.InvoiceData().Paid == nil {
		t.Fatal("set invoice not marked paid")
	}

	for _, index := range []int{0, 1} {
		card, errGet := repo.GetCard(ctx, cards.HashForSetCard("set-1", index))
		if errGet != nil {
			t.Fatalf("get card %d: %v", index, errGet)
		}
		amount, errAmount := cards.FundedAmount(card)
		if errAmount != nil {
			t.Fatalf("card %d funded amount: %v", index, errAmount)
		}
		if amount != 500 {
			t.Fatalf("card %d: expected 500, got %d", index, amount)
		}
	}
}

func TestCreateSetInvoiceConflicts(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, errAgain := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", ""); !errors.Is(errAgain, ErrSetInvoiceExists) {
		t.Fatalf("expected ErrSetInvoiceExists, got %v", errAgain)
	}

	gateway.markInvoicePaid(set.InvoiceData().PaymentHash)
	if errCheck := engine.CheckSetInvoicePaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if errSave := repo.SaveSet(ctx, set); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	if _, errFunded := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", ""); !errors.Is(errFunded, ErrSetAlreadyFunded) {
		t.Fatalf("expected ErrSetAlreadyFunded, got %v", errFunded)
	}
}

func TestCreateSetInvoiceConflictsWithCardInvoice(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// Card at index 0 already has a direct invoice.
	cardHash := cards.HashForSetCard("set-1", 0)
	if _, err := engine.CreateInvoiceForCard(ctx, cardHash, 500, "", ""); err != nil {
		t.Fatalf("create card invoice: %v", err)
	}

	_, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", "")
	if !errors.Is(err, cards.ErrFundingConflict) {
		t.Fatalf("expected ErrFundingConflict, got %v", err)
	}
}

func TestDeleteSetWithUnpaidInvoice(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0, 1}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if errDelete := engine.DeleteSet(ctx, set, false); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}

	if stored, _ := repo.GetSet(ctx, "set-1"); stored != nil {
		t.Fatal("set must be gone")
	}
	for _, index := range []int{0, 1} {
		if card, _ := repo.GetCard(ctx, cards.HashForSetCard("set-1", index)); card != nil {
			t.Fatalf("derived card %d must be gone", index)
		}
	}
}

func TestDeleteFundedSetFails(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gateway.markInvoicePaid(set.InvoiceData().PaymentHash)
	if errCheck := engine.CheckSetInvoicePaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}

	if errDelete := engine.DeleteSet(ctx, set, false); !errors.Is(errDelete, ErrCannotDeleteFundedSet) {
		t.Fatalf("expected ErrCannotDeleteFundedSet, got %v", errDelete)
	}
	if errDelete := engine.DeleteSet(ctx, set, true); !errors.Is(errDelete, ErrCannotDeleteFundedSet) {
		t.Fatalf("expected ErrCannotDeleteFundedSet for invoice-only delete, got %v", errDelete)
	}
}

func TestDeleteInvoiceOnlyKeepsOwnedSet(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	userID := "user-1"
	set.UserID = &userID
	if errSave := repo.SaveSet(ctx, set); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}

	if errDelete := engine.DeleteSet(ctx, set, true); errDelete != nil {
		t.Fatalf("delete invoice: %v", errDelete)
	}

	stored, errGet := repo.GetSet(ctx, "set-1")
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if stored == nil {
		t.Fatal("owned set must survive invoice deletion")
	}
	if stored.Invoice != nil {
		t.Fatal("invoice must be removed")
	}
	if card, _ := repo.GetCard(ctx, cards.HashForSetCard("set-1", 0)); card != nil {
		t.Fatal("unfunded derived card must be removed")
	}
}

func TestCheckSetInvoicePaidResumesPartialSettlement(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0, 1}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gateway.markInvoicePaid(set.InvoiceData().PaymentHash)

	// A previous check settled card 0 and then died before finishing.
	card, errGet := repo.GetCard(ctx, cards.HashForSetCard("set-1", 0))
	if errGet != nil {
		t.Fatalf("get card: %v", errGet)
	}
	if errMark := cards.MarkPaid(card, 500, 1); errMark != nil {
		t.Fatalf("mark: %v", errMark)
	}
	if errSave := repo.SaveCard(ctx, card); errSave != nil {
		t.Fatalf("save: %v", errSave)
	}
	if set.InvoiceData().Paid != nil {
		t.Fatal("invoice must still be unpaid while cards remain unsettled")
	}

	if errCheck := engine.CheckSetInvoicePaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if set.InvoiceData().Paid == nil {
		t.Fatal("set invoice not marked paid")
	}
	for _, index := range []int{0, 1} {
		stored, errCard := repo.GetCard(ctx, cards.HashForSetCard("set-1", index))
		if errCard != nil {
			t.Fatalf("get card %d: %v", index, errCard)
		}
		if amount, errAmount := cards.FundedAmount(stored); errAmount != nil || amount != 500 {
			t.Fatalf("card %d: amount %d, err %v", index, amount, errAmount)
		}
	}
}

func TestSetLnurlpAccumulatesToTarget(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetLnurlp(ctx, "set-1", 500, []int{0, 1}, "text", "note")
	if err != nil {
		t.Fatalf("create set lnurlp: %v", err)
	}
	lnurlp := set.LnurlpData()
	if lnurlp == nil || lnurlp.TargetAmount() != 1000 {
		t.Fatalf("unexpected pay link %+v", lnurlp)
	}
	for _, index := range []int{0, 1} {
		card, errGet := repo.GetCard(ctx, cards.HashForSetCard("set-1", index))
		if errGet != nil {
			t.Fatalf("get card %d: %v", index, errGet)
		}
		funding := card.SetFundingData()
		if funding == nil || funding.Amount != 500 || funding.Paid != nil {
			t.Fatalf("card %d: unexpected set funding %+v", index, funding)
		}
	}

	gateway.addLnurlpPayment(lnurlp.ID, "pay-1", 300)
	if errCheck := engine.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
		t.Fatalf("check below target: %v", errCheck)
	}
	lnurlp = set.LnurlpData()
	if lnurlp.Paid != nil {
		t.Fatal("set must not settle below the target")
	}
	if lnurlp.Amount == nil || *lnurlp.Amount != 300 || len(lnurlp.PaymentHashes) != 1 {
		t.Fatalf("unexpected recorded payments %+v", lnurlp)
	}

	gateway.addLnurlpPayment(lnurlp.ID, "pay-2", 700)
	if errCheck := engine.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
		t.Fatalf("check at target: %v", errCheck)
	}
	lnurlp = set.LnurlpData()
	if lnurlp.Paid == nil || *lnurlp.Amount != 1000 {
		t.Fatalf("set not settled: %+v", lnurlp)
	}
	for _, index := range []int{0, 1} {
		card, errGet := repo.GetCard(ctx, cards.HashForSetCard("set-1", index))
		if errGet != nil {
			t.Fatalf("get card %d: %v", index, errGet)
		}
		if amount, errAmount := cards.FundedAmount(card); errAmount != nil || amount != 500 {
			t.Fatalf("card %d: amount %d, err %v", index, amount, errAmount)
		}
	}
	if !gateway.deletedLnurlps[lnurlp.ID] {
		t.Fatal("settled pay link must be removed at the gateway")
	}

	// Settled sets short-circuit without another gateway call.
	if errCheck := engine.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
		t.Fatalf("repeated check: %v", errCheck)
	}
}

func TestSetFundingPayloadsAreExclusive(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateSetLnurlp(ctx, "set-1", 500, []int{0}, "", ""); err != nil {
		t.Fatalf("create set lnurlp: %v", err)
	}
	if _, err := engine.CreateSetInvoice(ctx, "set-1", 500, []int{0}, "", ""); !errors.Is(err, ErrSetLnurlpExists) {
		t.Fatalf("expected ErrSetLnurlpExists, got %v", err)
	}
	if _, err := engine.CreateSetLnurlp(ctx, "set-1", 500, []int{0}, "", ""); !errors.Is(err, ErrSetLnurlpExists) {
		t.Fatalf("expected ErrSetLnurlpExists on repeat, got %v", err)
	}

	if _, err := engine.CreateSetInvoice(ctx, "set-2", 500, []int{0}, "", ""); err != nil {
		t.Fatalf("create set invoice: %v", err)
	}
	if _, err := engine.CreateSetLnurlp(ctx, "set-2", 500, []int{0}, "", ""); !errors.Is(err, ErrSetInvoiceExists) {
		t.Fatalf("expected ErrSetInvoiceExists, got %v", err)
	}

	set, err := engine.CreateSetLnurlp(ctx, "set-3", 500, []int{0}, "", "")
	if err != nil {
		t.Fatalf("create set lnurlp: %v", err)
	}
	gateway.addLnurlpPayment(set.LnurlpData().ID, "pay-1", 500)
	if errCheck := engine.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if _, errAgain := engine.CreateSetLnurlp(ctx, "set-3", 500, []int{0}, "", ""); !errors.Is(errAgain, ErrSetAlreadyFunded) {
		t.Fatalf("expected ErrSetAlreadyFunded, got %v", errAgain)
	}
}

func TestDeleteSetWithUnpaidLnurlp(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetLnurlp(ctx, "set-1", 500, []int{0, 1}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	lnurlpID := set.LnurlpData().ID

	if errDelete := engine.DeleteSet(ctx, set, false); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if stored, _ := repo.GetSet(ctx, "set-1"); stored != nil {
		t.Fatal("set must be gone")
	}
	for _, index := range []int{0, 1} {
		if card, _ := repo.GetCard(ctx, cards.HashForSetCard("set-1", index)); card != nil {
			t.Fatalf("derived card %d must be gone", index)
		}
	}
	if !gateway.deletedLnurlps[lnurlpID] {
		t.Fatal("pay link must be removed at the gateway")
	}
}

func TestDeleteFundedLnurlpSetFails(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	set, err := engine.CreateSetLnurlp(ctx, "set-1", 500, []int{0}, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	gateway.addLnurlpPayment(set.LnurlpData().ID, "pay-1", 500)
	if errCheck := engine.CheckSetLnurlpPaid(ctx, set); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}

	if errDelete := engine.DeleteSet(ctx, set, false); !errors.Is(errDelete, ErrCannotDeleteFundedSet) {
		t.Fatalf("expected ErrCannotDeleteFundedSet, got %v", errDelete)
	}
}
