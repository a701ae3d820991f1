// Command zenserve runs a back-test and serves the result over the
// telemetry API until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"zenmachine/internal/adversary"
	"zenmachine/internal/api"
	"zenmachine/internal/engine"
	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
	"zenmachine/internal/persistence"
	"zenmachine/internal/store"
	"zenmachine/internal/zen"
)

func main() {
	var (
		startStr = flag.String("start", "2026-06-01", "simulation start date (YYYY-MM-DD, UTC)")
		days     = flag.Int("days", 7, "simulated days to run")
		seed     = flag.Int64("seed", 42, "random seed")
		budget   = flag.Float64("budget", model.DefaultDeceptionBudget, "adversary deception budget in bits/day")
		dbPath   = flag.String("db", "data/zenmachine.db", "SQLite database path")
		port     = flag.Int("port", 8080, "telemetry API port")
		cfgPath  = flag.String("config", "", "JSON file with catalog and initial inventory")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		slog.Error("invalid start date", "error", err)
		os.Exit(1)
	}

	catalog := []model.SKU{
		{ID: "water", Name: "Spring Water", MSRP: 1.50, Cost: 0.50, ShelfLifeDays: 365, Category: "beverage"},
		{ID: "soda", Name: "Cola", MSRP: 2.00, Cost: 0.75, ShelfLifeDays: 180, Category: "beverage"},
		{ID: "snack", Name: "Trail Mix", MSRP: 1.75, Cost: 0.80, ShelfLifeDays: 90, Category: "snack"},
	}
	inventory := map[string]int{"water": 20, "soda": 15, "snack": 25}
	if *cfgPath != "" {
		raw, err := os.ReadFile(*cfgPath)
		if err != nil {
			slog.Error("read config", "error", err)
			os.Exit(1)
		}
		var file struct {
			Catalog          []model.SKU    `json:"catalog"`
			InitialInventory map[string]int `json:"initial_inventory"`
		}
		if err := json.Unmarshal(raw, &file); err != nil {
			slog.Error("parse config", "error", err)
			os.Exit(1)
		}
		catalog = file.Catalog
		inventory = file.InitialInventory
	}

	cfg := model.SimulationConfig{
		Start:            start.UTC(),
		End:              start.UTC().AddDate(0, 0, *days),
		Seed:             seed,
		Catalog:          catalog,
		InitialInventory: inventory,
		DeceptionBudget:  *budget,
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		slog.Error("create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	src := entropy.NewSource(*seed)
	advCfg := adversary.DefaultConfig()
	advCfg.DeceptionBudget = *budget
	adv := adversary.New(advCfg, src)

	eng, err := engine.New(cfg, zen.NewHeuristic(), store.NewAgent(store.DefaultConfig(), catalog, src), adv, src, db)
	if err != nil {
		slog.Error("engine setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx)
	if err != nil && result == nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Warn("simulation interrupted, serving partial result", "error", err)
		// The first signal cancelled the run; arm a fresh one so the server
		// still blocks until the next interrupt.
		stop()
		ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
	}

	server := &api.Server{
		Result:    result,
		Adversary: adv,
		DB:        db,
		Port:      *port,
	}
	server.Start()

	fmt.Printf("Run %s complete: %d states, €%.2f revenue.\n",
		result.SimulationID, len(result.States), result.TotalRevenue)
	fmt.Printf("API: http://localhost:%d/api/v1/status (Ctrl+C to stop)\n", *port)

	<-ctx.Done()
	slog.Info("shutting down")
}
