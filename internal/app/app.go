// Package app is the composition root: it loads the configuration, opens
// the database and the challenge store and wires every component into the
// HTTP server.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lnfunding/tipcards/internal/bulkwithdraw"
	"github.com/lnfunding/tipcards/internal/cards"
	"github.com/lnfunding/tipcards/internal/config"
	"github.com/lnfunding/tipcards/internal/db"
	internalhttp "github.com/lnfunding/tipcards/internal/http"
	"github.com/lnfunding/tipcards/internal/lnbits"
	"github.com/lnfunding/tipcards/internal/lnurlauth"
	"github.com/lnfunding/tipcards/internal/logging"
	"github.com/lnfunding/tipcards/internal/reconcile"
	"github.com/lnfunding/tipcards/internal/session"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server. It blocks until the context is cancelled
// and then shuts the server down gracefully.
func RunServer(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	challengeStore, errStore := buildChallengeStore(ctx, cfg)
	if errStore != nil {
		return errStore
	}

	repo := cards.NewRepo(conn)
	gateway := lnbits.NewClient(cfg.Lnbits)
	engine := reconcile.NewEngine(repo, gateway, cfg.APIOrigin)
	coordinator := bulkwithdraw.NewCoordinator(repo, engine, gateway, cfg.APIOrigin)
	authService := lnurlauth.NewService(challengeStore, lnurlauth.NewHub(), cfg.LnurlAuth)
	sessionManager := session.NewManager(conn, cfg.Session)

	router := gin.New()
	router.Use(gin.Recovery())
	internalhttp.RegisterRoutes(router, internalhttp.Deps{
		Repo:           repo,
		Engine:         engine,
		Coordinator:    coordinator,
		AuthService:    authService,
		SessionManager: sessionManager,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("starting tip card service")
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	select {
	case <-ctx.Done():
	case errServe := <-errCh:
		return errServe
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildChallengeStore connects to redis when configured and falls back to
// the in-process store otherwise. Single-instance deployments work without
// redis; multi-instance ones need it so every instance sees each login.
func buildChallengeStore(ctx context.Context, cfg *config.Config) (lnurlauth.Store, error) {
	if cfg.Redis.Addr == "" {
		log.Info("no redis configured, using in-process login challenge store")
		return lnurlauth.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		return nil, errPing
	}
	return lnurlauth.NewRedisStore(client), nil
}
