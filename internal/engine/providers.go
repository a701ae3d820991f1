package engine

import (
	"context"

	"zenmachine/internal/model"
)

// DecisionProvider produces per-tick pricing/ordering decisions. It may
// perform network I/O; the engine invokes it with a bounded timeout and
// treats any error, timeout, or structurally invalid response as a failed
// call.
type DecisionProvider interface {
	Decide(ctx context.Context, inv model.InventoryState, env model.EnvironmentalData, catalog []model.SKU) (model.Decision, error)
}

// QuoteProvider produces a price/delivery offer for one restock order line.
type QuoteProvider interface {
	Quote(ctx context.Context, po model.PurchaseOrder) (model.Quote, error)
}

// WeatherObserver is implemented by quote providers whose lead times react
// to current conditions. The engine feeds it each tick's environment before
// requesting quotes.
type WeatherObserver interface {
	ObserveWeather(env model.EnvironmentalData)
}

// Sink receives states and ledger entries for durable storage. Append-only,
// fire-and-forget: sink errors are logged and never abort the run.
type Sink interface {
	AppendState(ctx context.Context, simulationID string, state model.SimulationState) error
	AppendLedger(ctx context.Context, simulationID string, entry model.LedgerEntry) error
}

// Stock level the fallback decision replenishes toward.
const fallbackTargetStock = 20

// Maximum units per order line accepted from any provider.
const maxOrderQty = 99

// FallbackDecision is the side-effect-free heuristic substituted when the
// decision provider fails: MSRP prices, order up to the target stock level.
func FallbackDecision(inv model.InventoryState, catalog []model.SKU) model.Decision {
	prices := make(map[string]float64, len(catalog))
	order := make(map[string]int, len(catalog))
	for _, sku := range catalog {
		prices[sku.ID] = sku.MSRP
		qty := fallbackTargetStock - inv.StockLevels[sku.ID]
		if qty < 0 {
			qty = 0
		}
		order[sku.ID] = qty
	}
	return model.Decision{
		Prices:    prices,
		Order:     order,
		Expedite:  false,
		Reasoning: "heuristic fallback: MSRP pricing, restock to target",
	}
}

// fallbackQuote is substituted when the quote provider fails: base cost plus
// a 15% margin, three-day delivery, low confidence.
func fallbackQuote(sku model.SKU, po model.PurchaseOrder) model.Quote {
	price := sku.Cost * 1.15
	if price > po.MaxPrice {
		price = po.MaxPrice
	}
	return model.Quote{
		UnitPrice:    price,
		DeliveryDays: 3,
		TrackingCode: "FALLBACK",
		Confidence:   0.7,
		Reason:       "fallback pricing applied",
		Timestamp:    po.Timestamp,
	}
}

// sanitizeDecision enforces the provider boundary once, so downstream steps
// never re-validate: prices clamped to ±5% of MSRP, unknown SKUs dropped,
// order quantities capped.
func sanitizeDecision(d model.Decision, catalog []model.SKU) model.Decision {
	known := make(map[string]model.SKU, len(catalog))
	for _, sku := range catalog {
		known[sku.ID] = sku
	}

	out := d.Clone()
	for id, price := range out.Prices {
		sku, ok := known[id]
		if !ok {
			delete(out.Prices, id)
			continue
		}
		lo, hi := sku.MSRP*0.95, sku.MSRP*1.05
		if price < lo {
			out.Prices[id] = lo
		} else if price > hi {
			out.Prices[id] = hi
		}
	}
	for id, qty := range out.Order {
		if _, ok := known[id]; !ok {
			delete(out.Order, id)
			continue
		}
		if qty > maxOrderQty {
			out.Order[id] = maxOrderQty
		}
	}
	return out
}
