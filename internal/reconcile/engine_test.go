package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/lnbits"
	"github.com/lnfunding/tipcards/internal/models"
)

// fakeGateway is an in-memory stand-in for the lnbits client. Tests flip
// paid flags and record payments directly.
type fakeGateway struct {
	mu sync.Mutex

	invoiceCounter  int
	paidInvoices    map[string]bool
	lnurlpCounter   int
	lnurlpPayments  map[string][]lnbits.LnurlpPayment
	deletedLnurlps  map[string]bool
	withdrawCounter int
	withdrawUsed    map[string]int
	deletedLinks    map[string]bool

	failCreateInvoice  bool
	failCreateWithdraw bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		paidInvoices:   map[string]bool{},
		lnurlpPayments: map[string][]lnbits.LnurlpPayment{},
		deletedLnurlps: map[string]bool{},
		withdrawUsed:   map[string]int{},
		deletedLinks:   map[string]bool{},
	}
}

func (g *fakeGateway) CreateInvoice(_ context.Context, amountSats int64, _ string, _ string) (*lnbits.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreateInvoice {
		return nil, errors.New("gateway down")
	}
	g.invoiceCounter++
	return &lnbits.Invoice{
		PaymentHash:    fmt.Sprintf("payment-hash-%d", g.invoiceCounter),
		PaymentRequest: fmt.Sprintf("lnbc%d-%d", amountSats, g.invoiceCounter),
	}, nil
}

func (g *fakeGateway) GetInvoiceStatus(_ context.Context, paymentHash string) (*lnbits.InvoiceStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &lnbits.InvoiceStatus{Paid: g.paidInvoices[paymentHash]}, nil
}

func (g *fakeGateway) CreateLnurlp(_ context.Context, _ string, _, _ int64, _ string) (*lnbits.LnurlpLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lnurlpCounter++
	id := fmt.Sprintf("lnurlp-%d", g.lnurlpCounter)
	return &lnbits.LnurlpLink{ID: id, Lnurl: "LNURL" + id}, nil
}

func (g *fakeGateway) GetLnurlpPayments(_ context.Context, lnurlpID string) ([]lnbits.LnurlpPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lnurlpPayments[lnurlpID], nil
}

func (g *fakeGateway) DeleteLnurlp(_ context.Context, lnurlpID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedLnurlps[lnurlpID] = true
	return nil
}

func (g *fakeGateway) CreateWithdrawLink(_ context.Context, _ string, amountSats int64, _ string) (*lnbits.WithdrawLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreateWithdraw {
		return nil, errors.New("gateway down")
	}
	g.withdrawCounter++
	id := fmt.Sprintf("withdraw-%d", g.withdrawCounter)
	return &lnbits.WithdrawLink{ID: id, Lnurl: fmt.Sprintf("LNURLW%s-%d", id, amountSats)}, nil
}

func (g *fakeGateway) GetWithdrawStatus(_ context.Context, withdrawID string) (*lnbits.WithdrawStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &lnbits.WithdrawStatus{Used: g.withdrawUsed[withdrawID]}, nil
}

func (g *fakeGateway) DeleteWithdrawLink(_ context.Context, withdrawID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedLinks[withdrawID] = true
	return nil
}

func (g *fakeGateway) markInvoicePaid(paymentHash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paidInvoices[paymentHash] = true
}

func (g *fakeGateway) addLnurlpPayment(lnurlpID, paymentHash string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lnurlpPayments[lnurlpID] = append(g.lnurlpPayments[lnurlpID],
		lnbits.LnurlpPayment{PaymentHash: paymentHash, Amount: amount})
}

func newTestEngine(t *testing.T) (*Engine, *cards.Repo, *fakeGateway) {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Card{}, &models.Set{}, &models.BulkWithdraw{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	repo := cards.NewRepo(conn)
	gateway := newFakeGateway()
	return NewEngine(repo, gateway, "https://tipcards.example.com"), repo, gateway
}

func TestCreateInvoiceForCardRejectsSmallAmounts(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.CreateInvoiceForCard(context.Background(), "card", MinInvoiceSats-1, "", "")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCreateInvoiceForCardPersistsInvoice(t *testing.T) {
	engine, repo, _ := newTestEngine(t)
	ctx := context.Background()

	paymentRequest, err := engine.CreateInvoiceForCard(ctx, "card", 500, "hello", "note")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if paymentRequest == "" {
		t.Fatal("expected a payment request")
	}

	card, errGet := repo.GetCard(ctx, "card")
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if card == nil {
		t.Fatal("card record not created")
	}
	invoice := card.InvoiceData()
	if invoice == nil || invoice.Amount != 500 || invoice.Paid != nil {
		t.Fatalf("unexpected invoice payload: %+v", invoice)
	}
	if card.Text != "hello" || card.Note != "note" {
		t.Fatalf("card text/note not stored: %q %q", card.Text, card.Note)
	}
}

func TestCreateInvoiceForCardIsIdempotent(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, errSecond := engine.CreateInvoiceForCard(ctx, "card", 500, "", "")
	if errSecond != nil {
		t.Fatalf("replay: %v", errSecond)
	}
	if first != second {
		t.Fatalf("replay returned a different payment request: %q vs %q", first, second)
	}
	if gateway.invoiceCounter != 1 {
		t.Fatalf("expected a single gateway invoice, got %d", gateway.invoiceCounter)
	}
}

func TestCreateInvoiceForCardDifferentAmountFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := engine.CreateInvoiceForCard(ctx, "card", 600, "", "")
	if !errors.Is(err, cards.ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}
}

func TestCreateInvoiceForCardGatewayFailure(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	gateway.failCreateInvoice = true
	ctx := context.Background()

	_, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", "")
	if !errors.Is(err, ErrCreateInvoice) {
		t.Fatalf("expected ErrCreateInvoice, got %v", err)
	}
	card, _ := repo.GetCard(ctx, "card")
	if card != nil {
		t.Fatal("no card record must exist after a gateway failure")
	}
}

func TestCheckInvoicePaidAttachesWithdrawLink(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	card, _ := repo.GetCard(ctx, "card")

	// Not paid yet: no state change.
	if err := engine.CheckInvoicePaid(ctx, card); err != nil {
		t.Fatalf("check unpaid: %v", err)
	}
	if card.InvoiceData().Paid != nil {
		t.Fatal("card must not be paid yet")
	}

	gateway.markInvoicePaid(card.InvoiceData().PaymentHash)
	if err := engine.CheckInvoicePaid(ctx, card); err != nil {
		t.Fatalf("check paid: %v", err)
	}
	if card.InvoiceData().Paid == nil {
		t.Fatal("payment not recorded")
	}
	if card.WithdrawID == nil {
		t.Fatal("withdraw link not attached")
	}

	stored, _ := repo.GetCard(ctx, "card")
	if stored.WithdrawID == nil {
		t.Fatal("withdraw link not persisted")
	}
}

func TestCheckInvoicePaidIsIdempotent(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	card, _ := repo.GetCard(ctx, "card")
	gateway.markInvoicePaid(card.InvoiceData().PaymentHash)

	for i := 0; i < 3; i++ {
		if err := engine.CheckInvoicePaid(ctx, card); err != nil {
			t.Fatalf("check %d: %v", i+1, err)
		}
	}
	if gateway.withdrawCounter != 1 {
		t.Fatalf("expected a single withdraw link, got %d", gateway.withdrawCounter)
	}
}

func TestCheckLnurlpPaidSinglePayer(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	card, err := engine.CreateLnurlp(ctx, "card", false)
	if err != nil {
		t.Fatalf("create lnurlp: %v", err)
	}
	lnurlpID := card.LnurlpData().ID
	gateway.addLnurlpPayment(lnurlpID, "ph-1", 700)

	if errCheck := engine.CheckLnurlpPaid(ctx, card); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	amount, errAmount := cards.FundedAmount(card)
	if errAmount != nil {
		t.Fatalf("funded amount: %v", errAmount)
	}
	if amount != 700 {
		t.Fatalf("expected 700, got %d", amount)
	}
	if card.WithdrawID == nil {
		t.Fatal("withdraw link not attached")
	}

	stored, _ := repo.GetCard(ctx, "card")
	if stored.LnurlpData().Paid == nil {
		t.Fatal("payment not persisted")
	}
}

func TestSharedLnurlpRecordsWithoutSettling(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	card, err := engine.CreateLnurlp(ctx, "card", true)
	if err != nil {
		t.Fatalf("create lnurlp: %v", err)
	}
	lnurlpID := card.LnurlpData().ID
	gateway.addLnurlpPayment(lnurlpID, "ph-1", 300)
	gateway.addLnurlpPayment(lnurlpID, "ph-2", 400)

	if errCheck := engine.CheckLnurlpPaid(ctx, card); errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	lnurlp := card.LnurlpData()
	if lnurlp.Paid != nil {
		t.Fatal("shared link must not settle on poll")
	}
	if lnurlp.Amount == nil || *lnurlp.Amount != 700 {
		t.Fatalf("expected recorded amount 700, got %v", lnurlp.Amount)
	}
	if len(lnurlp.PaymentHashes) != 2 {
		t.Fatalf("expected 2 recorded payments, got %d", len(lnurlp.PaymentHashes))
	}
}

func TestFinishSharedLnurlpSettles(t *testing.T) {
	engine, _, gateway := newTestEngine(t)
	ctx := context.Background()

	card, err := engine.CreateLnurlp(ctx, "card", true)
	if err != nil {
		t.Fatalf("create lnurlp: %v", err)
	}
	lnurlpID := card.LnurlpData().ID
	gateway.addLnurlpPayment(lnurlpID, "ph-1", 300)
	gateway.addLnurlpPayment(lnurlpID, "ph-2", 400)

	if errFinish := engine.FinishSharedLnurlp(ctx, card); errFinish != nil {
		t.Fatalf("finish: %v", errFinish)
	}
	amount, errAmount := cards.FundedAmount(card)
	if errAmount != nil {
		t.Fatalf("funded amount: %v", errAmount)
	}
	if amount != 700 {
		t.Fatalf("expected 700, got %d", amount)
	}
	if !gateway.deletedLnurlps[lnurlpID] {
		t.Fatal("settled link must be removed at the gateway")
	}
	if card.WithdrawID == nil {
		t.Fatal("withdraw link not attached")
	}
}

func TestFinishSharedLnurlpWithoutPaymentsFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	card, err := engine.CreateLnurlp(ctx, "card", true)
	if err != nil {
		t.Fatalf("create lnurlp: %v", err)
	}
	if errFinish := engine.FinishSharedLnurlp(ctx, card); !errors.Is(errFinish, cards.ErrCardNotFunded) {
		t.Fatalf("expected ErrCardNotFunded, got %v", errFinish)
	}
}

func TestFinishNonSharedLnurlpFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	card, err := engine.CreateLnurlp(ctx, "card", false)
	if err != nil {
		t.Fatalf("create lnurlp: %v", err)
	}
	if errFinish := engine.FinishSharedLnurlp(ctx, card); !errors.Is(errFinish, ErrNotSharedFunding) {
		t.Fatalf("expected ErrNotSharedFunding, got %v", errFinish)
	}
}

func TestRemoveWithdrawLinkIfUnused(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	card, _ := repo.GetCard(ctx, "card")
	gateway.markInvoicePaid(card.InvoiceData().PaymentHash)
	if err := engine.CheckInvoicePaid(ctx, card); err != nil {
		t.Fatalf("check: %v", err)
	}

	withdrawID := *card.WithdrawID
	if err := engine.RemoveWithdrawLinkIfUnused(ctx, card); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if card.WithdrawID != nil {
		t.Fatal("withdraw id must be cleared")
	}
	if !gateway.deletedLinks[withdrawID] {
		t.Fatal("link must be deleted at the gateway")
	}
}

func TestRemoveWithdrawLinkSpentFails(t *testing.T) {
	engine, repo, gateway := newTestEngine(t)
	ctx := context.Background()

	if _, err := engine.CreateInvoiceForCard(ctx, "card", 500, "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	card, _ := repo.GetCard(ctx, "card")
	gateway.markInvoicePaid(card.InvoiceData().PaymentHash)
	if err := engine.CheckInvoicePaid(ctx, card); err != nil {
		t.Fatalf("check: %v", err)
	}

	gateway.mu.Lock()
	gateway.withdrawUsed[*card.WithdrawID] = 1
	gateway.mu.Unlock()

	if err := engine.RemoveWithdrawLinkIfUnused(ctx, card); !errors.Is(err, cards.ErrWithdrawUsed) {
		t.Fatalf("expected ErrWithdrawUsed, got %v", err)
	}
	if card.WithdrawID == nil {
		t.Fatal("spent link must not be cleared")
	}
}
