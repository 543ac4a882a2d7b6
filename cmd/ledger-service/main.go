package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/medledger/platform/pkg/common/config"
	"github.com/medledger/platform/pkg/common/database"
	"github.com/medledger/platform/pkg/common/kafka"
	"github.com/medledger/platform/pkg/common/logger"
	"github.com/medledger/platform/pkg/consent"
	gatewayauth "github.com/medledger/platform/pkg/gateway/auth"
	"github.com/medledger/platform/pkg/gateway/middleware"
	"github.com/medledger/platform/pkg/gateway/routes"
	"github.com/medledger/platform/pkg/identity"
	"github.com/medledger/platform/pkg/ledger"
	"github.com/medledger/platform/pkg/phi"
	"github.com/medledger/platform/pkg/records"
	"github.com/medledger/platform/pkg/storage/blobstore"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	userRepo := identity.NewRepository(db)
	permRepo := consent.NewRepository(db)
	recordRepo := records.NewRepository(db)
	blockRepo := ledger.NewRepository(db)
	blobs := blobstore.New(db)

	for name, migrate := range map[string]func() error{
		"users":       userRepo.AutoMigrate,
		"permissions": permRepo.AutoMigrate,
		"records":     recordRepo.AutoMigrate,
		"blocks":      blockRepo.AutoMigrate,
		"blobs":       blobs.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).WithField("tables", name).Fatal("migration failed")
		}
	}

	producer := kafka.NewProducer(cfg.LedgerEventTopic)
	defer producer.Close()

	tips := ledger.NewTipCache(database.GetRedis(), 24*time.Hour)

	ledgerSvc := ledger.NewService(blockRepo, userRepo, producer, tips)
	identitySvc := identity.NewService(userRepo, ledgerSvc, cfg.SystemName, cfg.WalletLoginMaxAge)
	consentSvc := consent.NewService(permRepo, identitySvc, ledgerSvc)

	phiRules, err := phi.LoadRules(cfg.PHIRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default PHI rules")
	}
	screener, err := phi.NewScreener(phiRules)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid PHI rules")
	}

	catalog, err := records.LoadCatalog(cfg.RecordCatalogPath)
	if err != nil {
		logger.Log.WithError(err).Warn("falling back to default record catalog")
	}

	recordsSvc := records.NewService(recordRepo, blobs, consentSvc, ledgerSvc, catalog, screener)

	tokenSigner, err := gatewayauth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid JWT configuration")
	}

	var sso *routes.SSOHandler
	if cfg.OIDCIssuer != "" {
		oidcAuth, err := gatewayauth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, "")
		if err != nil {
			logger.Log.WithError(err).Warn("hospital SSO not configured")
		} else {
			sso = routes.NewSSOHandler(oidcAuth, identitySvc, tokenSigner, cfg.OIDCIssuer)
		}
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	routes.NewMetricsHandler().Register(router)

	api := router.PathPrefix("/api/v1").Subrouter()
	routes.NewAuthHandler(identitySvc, tokenSigner, sso).Register(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.Authenticate(tokenSigner))
	routes.NewRecordsHandler(recordsSvc, identitySvc, consentSvc, blobs).Register(protected)
	routes.NewConsentHandler(consentSvc, identitySvc).Register(protected)
	routes.NewLedgerHandler(ledgerSvc, identitySvc, consentSvc).Register(protected)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Ledger Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Ledger Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	database.CloseRedis()
	database.ClosePostgres()

	logger.Log.Info("Ledger Service stopped")
}
