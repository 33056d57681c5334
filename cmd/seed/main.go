package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"

	"coinshop-coupons/internal/config"
	"coinshop-coupons/internal/domain/model"
	pg "coinshop-coupons/internal/infra/db/postgres"
	"coinshop-coupons/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	logger := zerolog.Nop()
	couponUC := usecase.NewCouponUseCase(pg.NewCouponRepo(pool), nil, nil, nil, &logger)

	// If coupons already exist, do nothing
	existing, err := couponUC.List(ctx)
	if err != nil {
		log.Fatalf("list coupons: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d coupons already present. No changes.\n", len(existing))
		for _, c := range existing {
			fmt.Printf("  - %s (type=%s, coins=%d, count=%d)\n", c.Code, c.Type, c.Coins, c.RedeemCount)
		}
		return
	}

	// Sample coupons for testing the redemption flow
	in30d := time.Now().Add(30 * 24 * time.Hour).UnixMilli()
	limit := 50
	seed := []usecase.CouponInput{
		{Code: "WELCOME100", Coins: 100, Type: model.CouponTypeSingle, Validity: in30d, ShowAds: true},
		{Code: "LAUNCH50", Coins: 50, Type: model.CouponTypeCertainAmount, RedeemLimit: &limit, Validity: in30d, ShowAds: true},
		{Code: "TESTOPEN", Coins: 10, Type: model.CouponTypeMultiple, Validity: in30d},
	}

	for _, in := range seed {
		c, err := couponUC.Create(ctx, in)
		if err != nil {
			log.Fatalf("create coupon %q: %v", in.Code, err)
		}
		fmt.Printf("seeded: %s (type=%s, coins=%d)\n", c.Code, c.Type, c.Coins)
	}

	fmt.Println("✅ Seeding complete.")
}
