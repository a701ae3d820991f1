// Package zen implements the vending operator: decision providers that set
// prices and restock orders each tick.
package zen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"zenmachine/internal/demand"
	"zenmachine/internal/llm"
	"zenmachine/internal/model"
)

const systemPrompt = `You are Zen, a calm vending-machine operator.
Observe sales, inventory, weather, foot-traffic, electricity cost.
Output only JSON:
{ "prices": {"sku_id": price, ...}, "order": {"sku_id": quantity, ...}, "expedite": bool, "thought": "one-sentence why" }
Goals: maximize margin, avoid stock-out, minimise spoilage, stay legal.
Price bounds: [0.95xMSRP, 1.05xMSRP].
Respond ONLY with JSON. No prose, no markdown fences.`

// Heuristic is a deterministic decision provider: prices react to stock
// pressure, orders replenish toward a target level. It never errors, which
// makes it the natural baseline for reproducible runs.
type Heuristic struct {
	TargetStock int
	LowWater    int
}

// NewHeuristic returns a provider with the default stock policy.
func NewHeuristic() *Heuristic {
	return &Heuristic{TargetStock: 20, LowWater: 10}
}

// Decide prices each SKU off its stock level and orders up to the target
// when stock runs low.
func (h *Heuristic) Decide(_ context.Context, inv model.InventoryState, _ model.EnvironmentalData,
	catalog []model.SKU) (model.Decision, error) {

	prices := make(map[string]float64, len(catalog))
	order := make(map[string]int, len(catalog))
	expedite := false

	for _, sku := range catalog {
		stock := inv.StockLevels[sku.ID]
		switch {
		case stock < 5:
			prices[sku.ID] = sku.MSRP * 1.05
		case stock > 30:
			prices[sku.ID] = sku.MSRP * 0.95
		default:
			prices[sku.ID] = sku.MSRP
		}
		if stock < h.LowWater {
			order[sku.ID] = h.TargetStock - stock
		}
		if stock == 0 {
			expedite = true
		}
	}

	return model.Decision{
		Prices:    prices,
		Order:     order,
		Expedite:  expedite,
		Reasoning: "stock-pressure pricing, replenish below low-water mark",
	}, nil
}

// LLMProvider asks the language model for a decision and applies guardrails
// to whatever comes back.
type LLMProvider struct {
	client *llm.Client
	log    *slog.Logger
}

// NewLLMProvider returns a provider backed by client. The client must be
// enabled; callers without an API key should use the heuristic instead.
func NewLLMProvider(client *llm.Client) (*LLMProvider, error) {
	if !client.Enabled() {
		return nil, fmt.Errorf("zen: llm client not configured")
	}
	return &LLMProvider{
		client: client,
		log:    slog.Default().With("component", "zen"),
	}, nil
}

// llmDecision is the JSON shape the model is asked to produce.
type llmDecision struct {
	Prices   map[string]float64 `json:"prices"`
	Order    map[string]int     `json:"order"`
	Expedite bool               `json:"expedite"`
	Thought  string             `json:"thought"`
}

// Decide builds the context prompt, calls the model, and parses the reply.
// Any transport or parse failure is returned to the engine, which falls back.
func (p *LLMProvider) Decide(ctx context.Context, inv model.InventoryState, environment model.EnvironmentalData,
	catalog []model.SKU) (model.Decision, error) {

	prompt, err := formatContext(inv, environment, catalog)
	if err != nil {
		return model.Decision{}, fmt.Errorf("zen: format context: %w", err)
	}

	resp, err := p.client.Complete(ctx, systemPrompt, prompt, 512)
	if err != nil {
		return model.Decision{}, fmt.Errorf("zen: llm call: %w", err)
	}

	// Strip markdown fences if the model wraps them anyway.
	resp = strings.TrimSpace(resp)
	resp = strings.TrimPrefix(resp, "```json")
	resp = strings.TrimPrefix(resp, "```")
	resp = strings.TrimSuffix(resp, "```")
	resp = strings.TrimSpace(resp)

	var parsed llmDecision
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil {
		return model.Decision{}, fmt.Errorf("zen: parse decision (raw: %s): %w", resp, err)
	}
	if parsed.Prices == nil || parsed.Order == nil {
		return model.Decision{}, fmt.Errorf("zen: decision missing prices or order")
	}

	// Guardrails: negative quantities zeroed, empty thought replaced. Price
	// bounds are the scheduler's clamp, not re-checked here.
	for id, qty := range parsed.Order {
		if qty < 0 {
			p.log.Warn("negative order quantity zeroed", "sku", id, "qty", qty)
			parsed.Order[id] = 0
		}
	}
	if parsed.Thought == "" {
		parsed.Thought = "Optimized based on current conditions."
	}

	return model.Decision{
		Prices:    parsed.Prices,
		Order:     parsed.Order,
		Expedite:  parsed.Expedite,
		Reasoning: parsed.Thought,
	}, nil
}

// formatContext renders inventory, environment, and per-SKU demand forecasts
// as the model's user prompt.
func formatContext(inv model.InventoryState, environment model.EnvironmentalData, catalog []model.SKU) (string, error) {
	invJSON, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return "", err
	}
	envJSON, err := json.MarshalIndent(environment, "", "  ")
	if err != nil {
		return "", err
	}

	forecasts := make(map[string]demand.Forecast, len(catalog))
	for _, sku := range catalog {
		forecasts[sku.ID] = demand.PredictDemand(sku, environment, sku.MSRP)
	}
	fcJSON, err := json.MarshalIndent(forecasts, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Current Context:\n")
	fmt.Fprintf(&b, "Inventory: %s\n", invJSON)
	fmt.Fprintf(&b, "Environment: %s\n", envJSON)
	fmt.Fprintf(&b, "Demand Forecasts: %s\n\n", fcJSON)
	b.WriteString("Catalog (id, msrp, cost, shelf_life_days):\n")
	for _, sku := range catalog {
		fmt.Fprintf(&b, "- %s: %.2f / %.2f / %d\n", sku.ID, sku.MSRP, sku.Cost, sku.ShelfLifeDays)
	}
	b.WriteString("\nBased on this context, provide your decision in JSON format:")
	return b.String(), nil
}
