package model

import (
	"fmt"
	"time"
)

// Defaults applied by SimulationConfig.Validate when a field is zero.
const (
	DefaultTickMinutes     = 15
	DefaultDeceptionBudget = 0.25 // bits/day
	DefaultMarginTarget    = 0.18
	DefaultSpoilageLimit   = 0.008 // fraction of COGS
	DefaultProviderTimeout = 30 * time.Second
)

// SimulationConfig describes one run. Invalid configuration is the only
// fatal condition: it is rejected here, before any tick runs.
type SimulationConfig struct {
	Start            time.Time      `json:"start"`
	End              time.Time      `json:"end"`
	TickMinutes      int            `json:"tick_minutes"`
	Seed             *int64         `json:"seed,omitempty"` // nil = non-reproducible run
	Catalog          []SKU          `json:"catalog"`
	InitialInventory map[string]int `json:"initial_inventory"`
	DeceptionBudget  float64        `json:"deception_budget"`
	MarginTarget     float64        `json:"margin_target"`
	SpoilageLimit    float64        `json:"spoilage_limit"`
	ProviderTimeout  time.Duration  `json:"provider_timeout"`
}

// Validate fills defaults and rejects malformed configuration.
func (c *SimulationConfig) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("config: start and end are required")
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("config: end %s not after start %s", c.End, c.Start)
	}
	if c.TickMinutes == 0 {
		c.TickMinutes = DefaultTickMinutes
	}
	if c.TickMinutes < 0 {
		return fmt.Errorf("config: tick length must be positive, got %d minutes", c.TickMinutes)
	}
	if len(c.Catalog) == 0 {
		return fmt.Errorf("config: empty SKU catalog")
	}
	ids := make(map[string]bool, len(c.Catalog))
	for _, sku := range c.Catalog {
		if err := sku.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if ids[sku.ID] {
			return fmt.Errorf("config: duplicate SKU %s", sku.ID)
		}
		ids[sku.ID] = true
	}
	for id, stock := range c.InitialInventory {
		if !ids[id] {
			return fmt.Errorf("config: initial inventory for unknown SKU %s", id)
		}
		if stock < 0 {
			return fmt.Errorf("config: negative initial stock %d for %s", stock, id)
		}
	}
	if c.DeceptionBudget == 0 {
		c.DeceptionBudget = DefaultDeceptionBudget
	}
	if c.DeceptionBudget < 0 {
		return fmt.Errorf("config: deception budget must be non-negative, got %.3f", c.DeceptionBudget)
	}
	if c.MarginTarget == 0 {
		c.MarginTarget = DefaultMarginTarget
	}
	if c.SpoilageLimit == 0 {
		c.SpoilageLimit = DefaultSpoilageLimit
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("config: provider timeout must be non-negative")
	}
	return nil
}

// FindSKU returns the catalog entry for id.
func (c *SimulationConfig) FindSKU(id string) (SKU, bool) {
	for _, sku := range c.Catalog {
		if sku.ID == id {
			return sku, true
		}
	}
	return SKU{}, false
}

// SimulationResult is the summary compiled at the end of a run. A completed
// run always yields one, even if individual ticks were skipped.
type SimulationResult struct {
	SimulationID     string             `json:"simulation_id"`
	Config           SimulationConfig   `json:"config"`
	States           []SimulationState  `json:"states"`
	TotalRevenue     float64            `json:"total_revenue"`
	TotalCosts       float64            `json:"total_costs"`
	GrossMargin      float64            `json:"gross_margin"`
	SpoilageRate     float64            `json:"spoilage_rate"`
	UptimePercentage float64            `json:"uptime_percentage"`
	AverageLatencyMS float64            `json:"average_latency_ms"`
	Ledger           []LedgerEntry      `json:"ledger"`
	Summary          map[string]float64 `json:"summary"`
}
