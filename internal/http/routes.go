// Package http wires the gin router: route registration, CORS and the
// websocket endpoint browsers wait on during login.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/lnfunding/tipcards/internal/bulkwithdraw"
	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/http/handlers"
	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/reconcile"
	"github.com/lnfunding/tipcards/internal/session"
)

// Deps bundles everything the routes need.
type Deps struct {
	Repo           *cards.Repo
	Engine         *reconcile.Engine
	Coordinator    *bulkwithdraw.Coordinator
	AuthService    *lnurlauth.Service
	SessionManager *session.Manager
	AllowedOrigins []string
}

// RegisterRoutes registers the full JSON API on the given gin engine.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	r.Use(CORSMiddleware(deps.AllowedOrigins))

	api := r.Group("/api")

	cardHandler := handlers.NewCardHandler(deps.Repo, deps.Engine)
	api.GET("/card/:cardHash", cardHandler.Get)
	api.POST("/card/landingPageViewed/:cardHash", cardHandler.LandingPageViewed)

	invoiceHandler := handlers.NewInvoiceHandler(deps.Repo, deps.Engine)
	api.POST("/invoice/create/:cardHash", invoiceHandler.Create)
	api.GET("/invoice/paid/:cardHash", invoiceHandler.Paid)
	api.POST("/invoice/paid/:cardHash", invoiceHandler.Paid)

	lnurlpHandler := handlers.NewLnurlpHandler(deps.Repo, deps.Engine)
	api.POST("/lnurlp/create/:cardHash", lnurlpHandler.Create)
	api.GET("/lnurlp/paid/:cardHash", lnurlpHandler.Paid)
	api.POST("/lnurlp/paid/:cardHash", lnurlpHandler.Paid)
	api.POST("/lnurlp/finish/:cardHash", lnurlpHandler.Finish)

	withdrawHandler := handlers.NewWithdrawHandler(deps.Repo)
	api.GET("/withdraw/used/:cardHash", withdrawHandler.Used)

	setHandler := handlers.NewSetHandler(deps.Repo, deps.Engine)
	api.GET("/set/:setId", setHandler.Get)
	api.POST("/set/invoice/:setId", setHandler.CreateInvoice)
	api.GET("/set/invoice/paid/:setId", setHandler.InvoicePaid)
	api.POST("/set/invoice/paid/:setId", setHandler.InvoicePaid)
	api.DELETE("/set/invoice/:setId", setHandler.DeleteInvoice)
	api.POST("/set/lnurlp/:setId", setHandler.CreateLnurlp)
	api.GET("/set/lnurlp/paid/:setId", setHandler.LnurlpPaid)
	api.POST("/set/lnurlp/paid/:setId", setHandler.LnurlpPaid)

	authedSets := api.Group("/set")
	authedSets.Use(handlers.AccessTokenMiddleware(deps.SessionManager))
	authedSets.GET("/", setHandler.List)
	authedSets.POST("/:setId", setHandler.Save)
	authedSets.DELETE("/:setId", setHandler.Delete)

	bulkWithdrawHandler := handlers.NewBulkWithdrawHandler(deps.Coordinator)
	api.POST("/bulkWithdraw", bulkWithdrawHandler.Create)
	api.DELETE("/bulkWithdraw/:bulkWithdrawId", bulkWithdrawHandler.Delete)
	api.GET("/bulkWithdraw/withdrawn/:bulkWithdrawId", bulkWithdrawHandler.Withdrawn)
	api.POST("/bulkWithdraw/withdrawn/:bulkWithdrawId", bulkWithdrawHandler.Withdrawn)

	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.SessionManager)
	auth := api.Group("/auth")
	auth.GET("/create", authHandler.Create)
	auth.GET("/login", authHandler.Login)
	auth.GET("/status/:hash", authHandler.Status)
	auth.GET("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/logoutAllOtherDevices", authHandler.LogoutAllOtherDevices)

	authedAuth := auth.Group("")
	authedAuth.Use(handlers.AccessTokenMiddleware(deps.SessionManager))
	authedAuth.GET("/profile", authHandler.Profile)
	authedAuth.POST("/profile", authHandler.SaveProfile)

	r.GET("/ws/auth", AuthSocketHandler(deps.AuthService, deps.AllowedOrigins))
}
