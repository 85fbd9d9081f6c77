package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lnfunding/tipcards/internal/bulkwithdraw"
	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/lnbits"
	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/models"
	"github.com/lnfunding/tipcards/internal/reconcile"
	"github.com/lnfunding/tipcards/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeGateway struct {
	mu sync.Mutex

	invoiceCounter  int
	paidInvoices    map[string]bool
	withdrawCounter int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{paidInvoices: map[string]bool{}}
}

func (g *fakeGateway) CreateInvoice(_ context.Context, amountSats int64, _ string, _ string) (*lnbits.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
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
	return &lnbits.LnurlpLink{ID: "lnurlp-1"}, nil
}

func (g *fakeGateway) GetLnurlpPayments(_ context.Context, _ string) ([]lnbits.LnurlpPayment, error) {
	return nil, nil
}

func (g *fakeGateway) DeleteLnurlp(_ context.Context, _ string) error {
	return nil
}

func (g *fakeGateway) CreateWithdrawLink(_ context.Context, _ string, _ int64, _ string) (*lnbits.WithdrawLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.withdrawCounter++
	id := fmt.Sprintf("withdraw-%d", g.withdrawCounter)
	return &lnbits.WithdrawLink{ID: id, Lnurl: "LNURLW" + id}, nil
}

func (g *fakeGateway) GetWithdrawStatus(_ context.Context, _ string) (*lnbits.WithdrawStatus, error) {
	return &lnbits.WithdrawStatus{}, nil
}

func (g *fakeGateway) DeleteWithdrawLink(_ context.Context, _ string) error {
	return nil
}

func (g *fakeGateway) markInvoicePaid(paymentHash string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paidInvoices[paymentHash] = true
}

// testServer bundles the wired components behind a gin router.
type testServer struct {
	router      *gin.Engine
	repo        *cards.Repo
	gateway     *fakeGateway
	authService *lnurlauth.Service
	manager     *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Card{}, &models.Set{}, &models.BulkWithdraw{}, &models.User{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	repo := cards.NewRepo(conn)
	gateway := newFakeGateway()
	engine := reconcile.NewEngine(repo, gateway, "https://tipcards.example.com")
	coordinator := bulkwithdraw.NewCoordinator(repo, engine, gateway, "https://tipcards.example.com")
	authService := lnurlauth.NewService(lnurlauth.NewMemoryStore(), lnurlauth.NewHub(),
		lnurlauth.Config{AuthOrigin: "https://tipcards.example.com"})
	manager := session.NewManager(conn, session.Config{JWTSecret: "test-secret"})

	router := gin.New()
	api := router.Group("/api")

	invoiceHandler := NewInvoiceHandler(repo, engine)
	api.POST("/invoice/create/:cardHash", invoiceHandler.Create)
	api.GET("/invoice/paid/:cardHash", invoiceHandler.Paid)

	setHandler := NewSetHandler(repo, engine)
	api.GET("/set/:setId", setHandler.Get)
	api.POST("/set/invoice/:setId", setHandler.CreateInvoice)
	api.POST("/set/lnurlp/:setId", setHandler.CreateLnurlp)
	api.GET("/set/lnurlp/paid/:setId", setHandler.LnurlpPaid)

	authedSets := api.Group("/set")
	authedSets.Use(AccessTokenMiddleware(manager))
	authedSets.GET("/", setHandler.List)
	authedSets.POST("/:setId", setHandler.Save)

	bulkWithdrawHandler := NewBulkWithdrawHandler(coordinator)
	api.POST("/bulkWithdraw", bulkWithdrawHandler.Create)

	authHandler := NewAuthHandler(authService, manager)
	api.GET("/auth/create", authHandler.Create)
	api.GET("/auth/login", authHandler.Login)
	api.GET("/auth/status/:hash", authHandler.Status)
	api.GET("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", authHandler.Logout)

	authedAuth := api.Group("/auth")
	authedAuth.Use(AccessTokenMiddleware(manager))
	authedAuth.GET("/profile", authHandler.Profile)

	return &testServer{
		router:      router,
		repo:        repo,
		gateway:     gateway,
		authService: authService,
		manager:     manager,
	}
}

func (s *testServer) request(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	recorder := httptest.NewRecorder()
	s.router.ServeHTTP(recorder, req)
	return recorder
}

// apiResponse mirrors the response envelope for assertions.
type apiResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var response apiResponse
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &response); errDecode != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), errDecode)
	}
	return response
}
