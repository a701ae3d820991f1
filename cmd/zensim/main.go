// Command zensim runs a vending-machine micro-economy back-test and prints
// the run summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"zenmachine/internal/adversary"
	"zenmachine/internal/engine"
	"zenmachine/internal/entropy"
	"zenmachine/internal/llm"
	"zenmachine/internal/model"
	"zenmachine/internal/persistence"
	"zenmachine/internal/store"
	"zenmachine/internal/zen"
)

// catalogFile is the optional JSON config: catalog plus starting stock.
type catalogFile struct {
	Catalog          []model.SKU    `json:"catalog"`
	InitialInventory map[string]int `json:"initial_inventory"`
}

func defaultCatalog() catalogFile {
	return catalogFile{
		Catalog: []model.SKU{
			{ID: "water", Name: "Spring Water", MSRP: 1.50, Cost: 0.50, ShelfLifeDays: 365, Category: "beverage"},
			{ID: "soda", Name: "Cola", MSRP: 2.00, Cost: 0.75, ShelfLifeDays: 180, Category: "beverage"},
			{ID: "snack", Name: "Trail Mix", MSRP: 1.75, Cost: 0.80, ShelfLifeDays: 90, Category: "snack"},
		},
		InitialInventory: map[string]int{"water": 20, "soda": 15, "snack": 25},
	}
}

func main() {
	var (
		startStr   = flag.String("start", "2026-06-01", "simulation start date (YYYY-MM-DD, UTC)")
		days       = flag.Int("days", 7, "simulated days to run")
		tickMin    = flag.Int("tick", model.DefaultTickMinutes, "tick length in minutes")
		seed       = flag.Int64("seed", 42, "random seed; negative for a wall-clock seed")
		budget     = flag.Float64("budget", model.DefaultDeceptionBudget, "adversary deception budget in bits/day")
		configPath = flag.String("config", "", "JSON file with catalog and initial inventory")
		outputPath = flag.String("output", "", "write the full result JSON to this file")
		dbPath     = flag.String("db", "", "SQLite database path (empty disables persistence)")
		redisAddr  = flag.String("redis", "", "Redis address for stream publishing (empty disables)")
		useLLM     = flag.Bool("llm", false, "use the LLM decision provider (needs ANTHROPIC_API_KEY)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := buildConfig(*startStr, *days, *tickMin, *seed, *budget, *configPath)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, db, err := run(ctx, cfg, *useLLM, *dbPath, *redisAddr)
	if db != nil {
		defer db.Close()
	}
	if err != nil && result == nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
	if err != nil {
		slog.Warn("simulation interrupted, reporting partial result", "error", err)
	}

	printSummary(result)

	if *outputPath != "" {
		if err := writeResult(*outputPath, result); err != nil {
			slog.Error("write result file", "path", *outputPath, "error", err)
			os.Exit(1)
		}
		slog.Info("result written", "path", *outputPath)
	}
}

func buildConfig(startStr string, days, tickMin int, seed int64, budget float64, configPath string) (model.SimulationConfig, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return model.SimulationConfig{}, fmt.Errorf("parse start date: %w", err)
	}

	cat := defaultCatalog()
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			return model.SimulationConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(raw, &cat); err != nil {
			return model.SimulationConfig{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if seed < 0 {
		seed = time.Now().UnixNano()
	}

	return model.SimulationConfig{
		Start:            start.UTC(),
		End:              start.UTC().AddDate(0, 0, days),
		TickMinutes:      tickMin,
		Seed:             &seed,
		Catalog:          cat.Catalog,
		InitialInventory: cat.InitialInventory,
		DeceptionBudget:  budget,
	}, nil
}

// run wires the providers, sinks, and scheduler, then executes the back-test.
func run(ctx context.Context, cfg model.SimulationConfig, useLLM bool, dbPath, redisAddr string) (*model.SimulationResult, *persistence.DB, error) {
	src := entropy.NewSource(*cfg.Seed)

	advCfg := adversary.DefaultConfig()
	advCfg.DeceptionBudget = cfg.DeceptionBudget
	adv := adversary.New(advCfg, src)

	quoter := store.NewAgent(store.DefaultConfig(), cfg.Catalog, src)

	var decider engine.DecisionProvider = zen.NewHeuristic()
	if useLLM {
		client := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY"))
		provider, err := zen.NewLLMProvider(client)
		if err != nil {
			return nil, nil, err
		}
		decider = provider
		slog.Info("LLM decision provider enabled")
	}

	var sinks []engine.Sink
	var db *persistence.DB
	if dbPath != "" {
		var err error
		db, err = persistence.Open(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		sinks = append(sinks, db)
		slog.Info("database opened", "path", dbPath)
	}
	if redisAddr != "" {
		stream, err := persistence.NewStreamSink(redisAddr)
		if err != nil {
			slog.Warn("redis unavailable, continuing without stream sink", "addr", redisAddr, "error", err)
		} else {
			defer stream.Close()
			sinks = append(sinks, stream)
			slog.Info("redis stream sink enabled", "addr", redisAddr)
		}
	}

	eng, err := engine.New(cfg, decider, quoter, adv, src, sinks...)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}

	result, runErr := eng.Run(ctx)
	if db != nil && result != nil {
		if err := db.SaveRunMeta(context.Background(), result.SimulationID, "seed", strconv.FormatInt(src.Seed(), 10)); err != nil {
			slog.Warn("save run meta failed", "error", err)
		}
	}
	return result, db, runErr
}

func printSummary(res *model.SimulationResult) {
	fmt.Printf("\nSimulation %s\n", res.SimulationID)
	fmt.Printf("  %s to %s (%s states)\n",
		res.Config.Start.Format("2006-01-02"),
		res.Config.End.Format("2006-01-02"),
		humanize.Comma(int64(len(res.States))))
	fmt.Printf("  Revenue:       €%.2f\n", res.TotalRevenue)
	fmt.Printf("  Costs:         €%.2f\n", res.TotalCosts)
	fmt.Printf("  Gross margin:  %.1f%%\n", res.GrossMargin*100)
	fmt.Printf("  Spoilage rate: %.2f%%\n", res.SpoilageRate*100)
	fmt.Printf("  Uptime:        %.1f%%\n", res.UptimePercentage)
	fmt.Printf("  Avg latency:   %.1f ms\n", res.AverageLatencyMS)
	fmt.Printf("  Ledger:        %s adversarial actions\n", humanize.Comma(int64(len(res.Ledger))))
}

func writeResult(path string, res *model.SimulationResult) error {
	raw, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(path, raw, 0644)
}
