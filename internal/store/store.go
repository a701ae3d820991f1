// Package store implements the warehouse supplier: it turns purchase orders
// into priced, scheduled quotes.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
)

// Config tunes the supplier's pricing strategy.
type Config struct {
	MarginTarget        float64
	UrgencyPremium      float64
	MaxETAExaggeration  float64
	ReputationThreshold float64
	DieselPriceKnee     float64 // €/liter
}

// DefaultConfig returns the standard supplier profile.
func DefaultConfig() Config {
	return Config{
		MarginTarget:        0.12,
		UrgencyPremium:      0.08,
		MaxETAExaggeration:  0.25,
		ReputationThreshold: 4.0,
		DieselPriceKnee:     1.5,
	}
}

// Agent is the quote provider. It shares the run's entropy source so its
// occasional opportunism is part of the deterministic trajectory.
type Agent struct {
	cfg          Config
	catalog      map[string]model.SKU
	costs        *CostModel
	rng          *entropy.Source
	log          *slog.Logger
	reputation   float64
	weatherDelay float64
	quoteCount   int
}

// NewAgent builds a supplier over the catalog. Reputation starts at 4.5 of 5.
func NewAgent(cfg Config, catalog []model.SKU, rng *entropy.Source) *Agent {
	byID := make(map[string]model.SKU, len(catalog))
	for _, sku := range catalog {
		byID[sku.ID] = sku
	}
	return &Agent{
		cfg:        cfg,
		catalog:    byID,
		costs:      NewCostModel(cfg.DieselPriceKnee),
		rng:        rng,
		log:        slog.Default().With("component", "store"),
		reputation: 4.5,
	}
}

// ObserveWeather updates the delivery slowdown and refrigeration pressure
// used for subsequent quotes. Above 25°C every degree raises the temperature
// factor by 2%.
func (a *Agent) ObserveWeather(environment model.EnvironmentalData) {
	a.weatherDelay = WeatherDelay(environment.RainMM, environment.TemperatureC)

	tempFactor := 1.0
	if environment.TemperatureC > 25 {
		tempFactor = 1.0 + (environment.TemperatureC-25)*0.02
	}
	a.costs.SetMarketConditions(a.costs.dieselPrice, tempFactor)
}

// Reputation returns the current 1..5 score.
func (a *Agent) Reputation() float64 { return a.reputation }

// QuoteCount returns how many quotes this supplier has issued.
func (a *Agent) QuoteCount() int { return a.quoteCount }

// Quote prices one order line. Unknown SKUs are an error; the scheduler
// substitutes its fallback quote.
func (a *Agent) Quote(ctx context.Context, po model.PurchaseOrder) (model.Quote, error) {
	if err := ctx.Err(); err != nil {
		return model.Quote{}, err
	}
	sku, ok := a.catalog[po.SKU]
	if !ok {
		return model.Quote{}, fmt.Errorf("store: unknown sku %q", po.SKU)
	}
	if po.Qty <= 0 {
		return model.Quote{}, fmt.Errorf("store: non-positive quantity %d for %s", po.Qty, po.SKU)
	}

	unitCost := a.costs.UnitCost(sku, po.Qty, po.Urgency)
	leadDays := LeadTime(po.Qty, a.weatherDelay, po.Urgency, sku.Category)

	margin := a.cfg.MarginTarget
	if po.Urgency {
		margin += a.cfg.UrgencyPremium
	}
	price := unitCost * (1 + margin)
	if price > po.MaxPrice {
		price = po.MaxPrice
	}

	// A well-regarded supplier sometimes pads the ETA on urgent orders.
	if po.Urgency && a.reputation > a.cfg.ReputationThreshold && a.rng.Float64() < 0.3 {
		exaggeration := a.rng.Uniform(0.1, 0.25)
		if exaggeration > a.cfg.MaxETAExaggeration {
			exaggeration = a.cfg.MaxETAExaggeration
		}
		padded := int(float64(leadDays) * (1 + exaggeration))
		a.log.Debug("eta padded", "sku", po.SKU, "from", leadDays, "to", padded)
		leadDays = padded
	}

	confidence := a.reputation / 5.0
	if confidence > 1.0 {
		confidence = 1.0
	}
	if po.Qty > 50 {
		confidence *= 0.9
	}

	quote := model.Quote{
		UnitPrice:    price,
		DeliveryDays: leadDays,
		TrackingCode: a.trackingCode(po),
		Confidence:   confidence,
		Reason:       "Standard pricing applied",
		Timestamp:    po.Timestamp,
	}

	a.updateReputation()
	a.quoteCount++
	return quote, nil
}

// trackingCode builds a ZM-prefixed code: order timestamp, SKU prefix, and
// a short random suffix.
func (a *Agent) trackingCode(po model.PurchaseOrder) string {
	prefix := strings.ToUpper(po.SKU)
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ZM%s%s%s", po.Timestamp.UTC().Format("20060102150405"), prefix, suffix)
}

// updateReputation nudges the score per delivery outcome: most deliveries
// succeed and earn a small bump, failures cost more.
func (a *Agent) updateReputation() {
	if a.rng.Float64() < 0.95 {
		a.reputation += 0.01
		if a.reputation > 5.0 {
			a.reputation = 5.0
		}
		return
	}
	a.reputation -= 0.05
	if a.reputation < 1.0 {
		a.reputation = 1.0
	}
}
