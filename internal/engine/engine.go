// Package engine runs the tick scheduler: one sequential loop that advances
// simulated time, orchestrates providers, and accumulates per-tick states.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"zenmachine/internal/adversary"
	"zenmachine/internal/demand"
	"zenmachine/internal/entropy"
	"zenmachine/internal/env"
	"zenmachine/internal/model"
)

// Engine owns the single live inventory state and the run metrics. Not safe
// for concurrent use; one engine per run.
type Engine struct {
	cfg       model.SimulationConfig
	decider   DecisionProvider
	quoter    QuoteProvider
	adversary *adversary.Module
	rng       *entropy.Source
	envGen    *env.Generator
	sinks     []Sink
	log       *slog.Logger

	simulationID string
	states       []model.SimulationState
	ledger       []model.LedgerEntry
	metrics      runMetrics
}

type runMetrics struct {
	totalRevenue   float64
	totalCosts     float64
	totalSpoilage  float64
	totalLatencyMS float64
	decisionCount  int
	uptimeTicks    int
	totalTicks     int
}

// New validates the configuration and wires the run. The entropy source is
// shared with the adversary so that one seed fixes the whole trajectory.
func New(cfg model.SimulationConfig, decider DecisionProvider, quoter QuoteProvider,
	adv *adversary.Module, src *entropy.Source, sinks ...Sink) (*Engine, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decider == nil || quoter == nil {
		return nil, fmt.Errorf("engine: decision and quote providers are required")
	}
	if adv == nil {
		return nil, fmt.Errorf("engine: adversary module is required")
	}
	if src == nil {
		return nil, fmt.Errorf("engine: entropy source is required")
	}
	return &Engine{
		cfg:          cfg,
		decider:      decider,
		quoter:       quoter,
		adversary:    adv,
		rng:          src,
		envGen:       env.NewGenerator(src.Seed(), src),
		sinks:        sinks,
		log:          slog.Default().With("component", "engine"),
		simulationID: uuid.NewString(),
	}, nil
}

// SimulationID returns the run identifier assigned at construction.
func (e *Engine) SimulationID() string { return e.simulationID }

// Run executes the full simulation. Provider failures degrade to fallbacks;
// only the engine's own bookkeeping errors skip a tick. Cancellation stops
// the loop and returns the partial result alongside the context error.
func (e *Engine) Run(ctx context.Context) (*model.SimulationResult, error) {
	tickDelta := time.Duration(e.cfg.TickMinutes) * time.Minute

	initial, err := e.initialState()
	if err != nil {
		return nil, fmt.Errorf("engine: initial state: %w", err)
	}
	e.appendState(ctx, initial)
	e.log.Info("simulation started",
		"simulation_id", e.simulationID,
		"start", e.cfg.Start,
		"end", e.cfg.End,
		"tick_minutes", e.cfg.TickMinutes,
		"seed", e.rng.Seed())

	current := e.cfg.Start
	for current.Before(e.cfg.End) {
		if err := ctx.Err(); err != nil {
			e.log.Warn("simulation cancelled", "at", current)
			return e.compileResult(), err
		}
		current = current.Add(tickDelta)

		state, err := e.runTick(ctx, current)
		e.drainLedger(ctx)
		if err != nil {
			e.log.Error("tick skipped", "at", current, "error", err)
			continue
		}

		e.appendState(ctx, state)
		e.metrics.totalTicks++
		if state.GrossMargin >= 0 {
			e.metrics.uptimeTicks++
		}
	}

	result := e.compileResult()
	e.log.Info("simulation finished",
		"simulation_id", e.simulationID,
		"ticks", e.metrics.totalTicks,
		"revenue", result.TotalRevenue,
		"gross_margin", result.GrossMargin)
	return result, nil
}

func (e *Engine) initialState() (model.SimulationState, error) {
	environment, err := e.envGen.At(e.cfg.Start)
	if err != nil {
		return model.SimulationState{}, err
	}
	stock := make(map[string]int, len(e.cfg.Catalog))
	rates := make(map[string]float64, len(e.cfg.Catalog))
	for _, sku := range e.cfg.Catalog {
		stock[sku.ID] = e.cfg.InitialInventory[sku.ID]
		rates[sku.ID] = 0
	}
	return model.SimulationState{
		Timestamp: e.cfg.Start,
		Inventory: model.InventoryState{
			StockLevels:   stock,
			SpoilageRates: rates,
		},
		Environment: environment,
	}, nil
}

func (e *Engine) runTick(ctx context.Context, ts time.Time) (model.SimulationState, error) {
	prev := e.states[len(e.states)-1]

	environment, err := e.envGen.At(ts)
	if err != nil {
		return model.SimulationState{}, fmt.Errorf("environment: %w", err)
	}
	environment = e.adversary.ModifyEnvironment(environment)
	if obs, ok := e.quoter.(WeatherObserver); ok {
		obs.ObserveWeather(environment)
	}

	decision, latencyMS := e.decide(ctx, prev.Inventory, environment)
	decision.Timestamp = ts

	if dur, ok := e.adversary.LatencySpike(ts); ok {
		latencyMS += float64(dur.Milliseconds())
	}

	quotes := e.collectQuotes(ctx, decision, ts)

	sales := demand.Simulate(e.rng, decision.Prices, environment, prev.Inventory.StockLevels, e.cfg.Catalog)

	inventory := e.updateInventory(prev.Inventory, sales, decision.Order, quotes)
	revenue, costs, spoilage := e.financials(sales, decision.Prices, inventory, decision.Order, quotes)
	grossMargin := (revenue - costs - spoilage) / maxf(revenue, 1e-6)

	e.metrics.totalRevenue += revenue
	e.metrics.totalCosts += costs
	e.metrics.totalSpoilage += spoilage
	e.metrics.decisionCount++
	e.metrics.totalLatencyMS += latencyMS

	return model.SimulationState{
		Timestamp:    ts,
		Inventory:    inventory,
		Environment:  environment,
		Decision:     &decision,
		Quotes:       quotes,
		Sales:        sales,
		Revenue:      revenue,
		Costs:        costs,
		GrossMargin:  grossMargin,
		SpoilageCost: spoilage,
	}, nil
}

// decide calls the decision provider with a bounded timeout and substitutes
// the heuristic fallback on error or structural invalidity. Latency is wall
// clock: it measures the provider, never the simulation.
func (e *Engine) decide(ctx context.Context, inv model.InventoryState, environment model.EnvironmentalData) (model.Decision, float64) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	decision, err := e.decider.Decide(callCtx, inv, environment, e.cfg.Catalog)
	latencyMS := float64(time.Since(start).Microseconds()) / 1000

	if err == nil {
		err = decision.Validate()
	}
	if err != nil {
		e.log.Warn("decision provider failed, using fallback", "error", err)
		return FallbackDecision(inv, e.cfg.Catalog), latencyMS
	}

	if tampered, ok := e.adversary.TamperDecision(decision, environment.Timestamp); ok {
		decision = tampered
	}
	return sanitizeDecision(decision, e.cfg.Catalog), latencyMS
}

// collectQuotes requests one quote per positive order line, in catalog order
// so the provider and adversary see a deterministic sequence.
func (e *Engine) collectQuotes(ctx context.Context, decision model.Decision, ts time.Time) map[string]model.Quote {
	quotes := make(map[string]model.Quote)
	for _, sku := range e.cfg.Catalog {
		qty := decision.Order[sku.ID]
		if qty <= 0 {
			continue
		}
		// Urgency rides on its own flag; the requested day is always the
		// standard two-day window.
		po := model.PurchaseOrder{
			SKU:                  sku.ID,
			Qty:                  qty,
			MaxPrice:             sku.Cost * 1.2,
			RequestedDeliveryDay: 2,
			Urgency:              decision.Expedite,
			Timestamp:            ts,
		}

		callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
		quote, err := e.quoter.Quote(callCtx, po)
		cancel()
		if err != nil {
			e.log.Warn("quote provider failed, using fallback", "sku", sku.ID, "error", err)
			quote = fallbackQuote(sku, po)
		}

		if tampered, ok := e.adversary.TamperQuote(quote, ts); ok {
			quote = tampered
		}
		if quote.UnitPrice > po.MaxPrice {
			quote.UnitPrice = po.MaxPrice
		}
		quotes[sku.ID] = quote
	}
	return quotes
}

// updateInventory applies sales, same-tick deliveries, and spoilage. Orders
// with delivery beyond one day are treated as lost to follow-up, matching
// the simplified restock model.
func (e *Engine) updateInventory(prev model.InventoryState, sales, orders map[string]int,
	quotes map[string]model.Quote) model.InventoryState {

	inv := prev.Clone()
	for _, sku := range e.cfg.Catalog {
		stock := inv.StockLevels[sku.ID] - sales[sku.ID]
		if stock < 0 {
			stock = 0
		}
		if quote, ok := quotes[sku.ID]; ok && quote.DeliveryDays <= 1 {
			stock += orders[sku.ID]
		}

		dailyRate := 0.01 * float64(stock) / float64(sku.ShelfLifeDays)
		inv.SpoilageRates[sku.ID] = dailyRate
		stock -= int(dailyRate * float64(stock))
		if stock < 0 {
			stock = 0
		}
		inv.StockLevels[sku.ID] = stock
	}

	restocked := false
	for _, qty := range orders {
		if qty > 0 {
			restocked = true
			break
		}
	}
	if restocked {
		inv.DaysSinceRestock = 0
	} else {
		inv.DaysSinceRestock += float64(e.cfg.TickMinutes) / (24 * 60)
	}
	return inv
}

func (e *Engine) financials(sales map[string]int, prices map[string]float64,
	inv model.InventoryState, orders map[string]int, quotes map[string]model.Quote) (revenue, costs, spoilage float64) {

	for _, sku := range e.cfg.Catalog {
		if price, ok := prices[sku.ID]; ok {
			revenue += float64(sales[sku.ID]) * price
		}
		if quote, ok := quotes[sku.ID]; ok {
			costs += quote.UnitPrice * float64(orders[sku.ID])
		}
		spoilage += inv.SpoilageRates[sku.ID] * float64(inv.StockLevels[sku.ID]) * sku.Cost
	}
	return revenue, costs, spoilage
}

// appendState records the state locally and forwards it to every sink.
func (e *Engine) appendState(ctx context.Context, state model.SimulationState) {
	e.states = append(e.states, state)
	for _, sink := range e.sinks {
		if err := sink.AppendState(ctx, e.simulationID, state); err != nil {
			e.log.Warn("state sink failed", "at", state.Timestamp, "error", err)
		}
	}
}

// drainLedger moves freshly accumulated adversary entries into the run
// ledger and forwards them to the sinks.
func (e *Engine) drainLedger(ctx context.Context) {
	entries := e.adversary.DrainLedger()
	if len(entries) == 0 {
		return
	}
	e.ledger = append(e.ledger, entries...)
	for _, sink := range e.sinks {
		for _, entry := range entries {
			if err := sink.AppendLedger(ctx, e.simulationID, entry); err != nil {
				e.log.Warn("ledger sink failed", "error", err)
			}
		}
	}
}

func (e *Engine) compileResult() *model.SimulationResult {
	m := e.metrics
	grossMargin := (m.totalRevenue - m.totalCosts - m.totalSpoilage) / maxf(m.totalRevenue, 1e-6)
	avgLatency := m.totalLatencyMS / float64(maxi(m.decisionCount, 1))
	spoilageRate := m.totalSpoilage / maxf(m.totalCosts, 1e-6)

	marginMet := 0.0
	if grossMargin >= e.cfg.MarginTarget {
		marginMet = 1
	}
	spoilageOK := 0.0
	if spoilageRate <= e.cfg.SpoilageLimit {
		spoilageOK = 1
	}

	return &model.SimulationResult{
		SimulationID:     e.simulationID,
		Config:           e.cfg,
		States:           e.states,
		TotalRevenue:     m.totalRevenue,
		TotalCosts:       m.totalCosts,
		GrossMargin:      grossMargin,
		SpoilageRate:     spoilageRate,
		UptimePercentage: float64(m.uptimeTicks) / float64(maxi(m.totalTicks, 1)) * 100,
		AverageLatencyMS: avgLatency,
		Ledger:           e.ledger,
		Summary: map[string]float64{
			"total_revenue":         m.totalRevenue,
			"total_costs":           m.totalCosts,
			"gross_margin":          grossMargin,
			"spoilage_cost":         m.totalSpoilage,
			"decision_count":        float64(m.decisionCount),
			"average_latency_ms":    avgLatency,
			"margin_target_met":     marginMet,
			"spoilage_within_limit": spoilageOK,
		},
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func maxi(a, b int) int {
	if a > b {
		return a
	}
	return b
}
