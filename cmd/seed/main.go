// Command seed creates the administrator account and, optionally, a few
// parking lots so a fresh database can be used right away.
//
//	seed -lots "Downtown:20:2.5,Airport:50:4"
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"parksync/internal/app"
	"parksync/internal/auth"
	"parksync/internal/config"
	"parksync/internal/service"
)

func main() {
	lotsFlag := flag.String("lots", "", "comma separated name:spots:price_per_hour entries")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		app.NewLogger(&config.Config{LogLevel: "info"}).Fatalf("invalid configuration: %v", err)
	}
	logger := app.NewLogger(cfg)
	if cfg.Storage == config.DriverMemory {
		logger.Fatal("seeding the in-memory driver has no effect; set STORAGE_DRIVER=postgres")
	}

	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer closeStore()

	ctx := context.Background()
	tokens := auth.NewTokenMaker(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	authSvc := service.NewAuthService(store, tokens, logger)
	created, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		logger.Fatalf("failed to ensure admin account: %v", err)
	}
	if !created {
		logger.WithField("email", cfg.Admin.Email).Info("admin account already exists")
	}

	if *lotsFlag == "" {
		return
	}
	lots, err := parseLots(*lotsFlag)
	if err != nil {
		logger.Fatal(err)
	}
	admin := auth.Actor{Username: cfg.Admin.Username, Role: auth.RoleAdmin}
	lotSvc := service.NewLotService(store, logger, nil)
	for _, in := range lots {
		lot, err := lotSvc.CreateLot(ctx, admin, in)
		if err != nil {
			logger.Fatalf("failed to create lot %q: %v", in.Name, err)
		}
		logger.Infof("created lot %q with %d spots", lot.Name, lot.TotalSpots)
	}
}

func parseLots(s string) ([]service.CreateLotInput, error) {
	var out []service.CreateLotInput
	for _, entry := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid lot %q, want name:spots:price", entry)
		}
		spots, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid spot count in %q: %w", entry, err)
		}
		price, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid price in %q: %w", entry, err)
		}
		out = append(out, service.CreateLotInput{Name: parts[0], TotalSpots: spots, PricePerHour: price})
	}
	return out, nil
}
