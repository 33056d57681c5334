package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"coinshop-coupons/internal/config"
	"coinshop-coupons/internal/domain/ports/adapter"
	"coinshop-coupons/internal/domain/ports/repository"
	"coinshop-coupons/internal/infra/api"
	pg "coinshop-coupons/internal/infra/db/postgres"
	"coinshop-coupons/internal/infra/logging"
	"coinshop-coupons/internal/infra/memory"
	"coinshop-coupons/internal/infra/metrics"
	"coinshop-coupons/internal/infra/payment"
	red "coinshop-coupons/internal/infra/redis"
	"coinshop-coupons/internal/infra/sched"
	"coinshop-coupons/internal/infra/security"
	"coinshop-coupons/internal/infra/web"
	"coinshop-coupons/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory stores, no Postgres or Redis")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode: all data is in-memory and lost on exit")
	}

	metrics.MustRegister()

	// ---- Stores ----
	var (
		couponRepo   repository.CouponRepository
		purchaseRepo repository.PurchaseRepository
		tm           repository.TransactionManager
		limiter      api.Limiter
		locker       usecase.Locker
	)

	if cfg.Runtime.Dev {
		couponRepo = memory.NewCouponRepo()
		purchaseRepo = memory.NewPurchaseRepo()
	} else {
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		var enc *security.EncryptionService
		if cfg.Security.EncryptionKey != "" {
			enc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
			if err != nil {
				log.Fatalf("encryption: %v", err)
			}
		}

		couponRepo = pg.NewCouponRepo(pool)
		purchaseRepo = pg.NewPurchaseRepo(pool, enc)
		tm = pg.NewTxManager(pool)

		if cfg.Redis.URL != "" {
			redisClient, err := red.NewClient(ctx, &cfg.Redis)
			if err != nil {
				log.Fatalf("redis: %v", err)
			}
			couponRepo = pg.NewCouponRepoCacheDecorator(couponRepo, redisClient, cfg.Redis.TTL)
			limiter = red.NewRateLimiter(redisClient)
			locker = red.NewLocker(redisClient)
		}
	}

	// ---- Payment verification ----
	var verifier adapter.PaymentVerifier
	switch strings.ToLower(cfg.Payment.Mode) {
	case "http":
		verifier, err = payment.NewHTTPVerifier(cfg.Payment.BaseURL, cfg.Payment.APIKey)
		if err != nil {
			log.Fatalf("payment: %v", err)
		}
		// the remote flag write cannot join a local transaction
		tm = nil
	default:
		verifier = payment.NewStoreVerifier(purchaseRepo)
	}
	logger.Info().Str("verifier", verifier.Name()).Msg("payment verification configured")

	// ---- Background reconciliation ----
	if strings.ToLower(cfg.Payment.Mode) != "http" {
		reconciler := sched.NewIssuanceReconciler(couponRepo, purchaseRepo, cfg.Reconciler.Interval, logger)
		go reconciler.Start(ctx)
	}

	// ---- Use cases ----
	redeemUC := usecase.NewRedeemUseCase(couponRepo, logger)
	couponUC := usecase.NewCouponUseCase(couponRepo, verifier, tm, locker, logger)
	purchaseUC := usecase.NewPurchaseUseCase(purchaseRepo, logger)

	// ---- Public redemption API ----
	publicSrv := api.NewServer(redeemUC, limiter, cfg.RateLimit.RedeemPerMinute, logger)
	public := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.PublicPort),
		Handler: publicSrv.Router(red.RedeemKey),
	}
	go func() {
		logger.Info().Str("addr", public.Addr).Msg("public api listening")
		if err := public.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("public api server error")
		}
	}()

	// ---- Admin dashboard API ----
	auth := web.NewAuthManager(cfg.Admin.Password, cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	adminSrv := web.NewServer(couponUC, purchaseUC, auth, logger)
	admin := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.AdminPort),
		Handler: adminSrv.Router(),
	}
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("admin api listening")
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("admin api server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := public.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("public api shutdown")
	}
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin api shutdown")
	}
}
