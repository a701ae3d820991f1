// Package model holds the value types shared by every simulation component.
package model

import (
	"fmt"
	"time"
)

// SKU is an immutable catalog entry. Created once at configuration time.
type SKU struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MSRP          float64 `json:"msrp"`
	Cost          float64 `json:"cost"`
	ShelfLifeDays int     `json:"shelf_life_days"`
	Category      string  `json:"category"`
}

// Validate checks catalog-time constraints.
func (s SKU) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("sku: empty id")
	}
	if s.MSRP <= 0 {
		return fmt.Errorf("sku %s: msrp must be positive, got %.2f", s.ID, s.MSRP)
	}
	if s.Cost < 0 {
		return fmt.Errorf("sku %s: cost must be non-negative, got %.2f", s.ID, s.Cost)
	}
	if s.ShelfLifeDays <= 0 {
		return fmt.Errorf("sku %s: shelf life must be positive, got %d", s.ID, s.ShelfLifeDays)
	}
	return nil
}

// Hard valid ranges for environmental observations. Values outside these are
// a construction error, never a downstream check.
const (
	MinTemperatureC    = -10.0
	MaxTemperatureC    = 45.0
	MaxRainMM          = 50.0
	MaxPollenPPM       = 500
	MaxTrafficCount    = 300
	MaxDwellSec        = 600.0
	MaxCompetitorM     = 200.0
	MinElectricityKWH  = 0.05
	MaxElectricityKWH  = 0.35
	MinCardFeeBPS      = 50
	MaxCardFeeBPS      = 300
)

// EnvironmentalData is one observation per tick. Weekday follows the
// Monday=0..Sunday=6 convention used by the demand factors.
type EnvironmentalData struct {
	Timestamp           time.Time `json:"timestamp"`
	TemperatureC        float64   `json:"temperature_c"`
	RainMM              float64   `json:"rain_mm"`
	PollenPPM           int       `json:"pollen_ppm"`
	Hour                int       `json:"hour"`
	Weekday             int       `json:"weekday"`
	HolidayFlag         bool      `json:"holiday_flag"`
	TrafficCount        int       `json:"traffic_count"`
	DwellSec            float64   `json:"dwell_sec"`
	CompetitorDistanceM float64   `json:"competitor_distance_m"`
	ElectricityPriceKWH float64   `json:"electricity_price_kwh"`
	CardFeeBPS          int       `json:"card_fee_bps"`
}

// NewEnvironmentalData validates every field against its hard range.
func NewEnvironmentalData(e EnvironmentalData) (EnvironmentalData, error) {
	switch {
	case e.TemperatureC < MinTemperatureC || e.TemperatureC > MaxTemperatureC:
		return EnvironmentalData{}, fmt.Errorf("environment: temperature %.2f outside [%.0f, %.0f]", e.TemperatureC, MinTemperatureC, MaxTemperatureC)
	case e.RainMM < 0 || e.RainMM > MaxRainMM:
		return EnvironmentalData{}, fmt.Errorf("environment: rain %.2f outside [0, %.0f]", e.RainMM, MaxRainMM)
	case e.PollenPPM < 0 || e.PollenPPM > MaxPollenPPM:
		return EnvironmentalData{}, fmt.Errorf("environment: pollen %d outside [0, %d]", e.PollenPPM, MaxPollenPPM)
	case e.Hour < 0 || e.Hour > 23:
		return EnvironmentalData{}, fmt.Errorf("environment: hour %d outside [0, 23]", e.Hour)
	case e.Weekday < 0 || e.Weekday > 6:
		return EnvironmentalData{}, fmt.Errorf("environment: weekday %d outside [0, 6]", e.Weekday)
	case e.TrafficCount < 0 || e.TrafficCount > MaxTrafficCount:
		return EnvironmentalData{}, fmt.Errorf("environment: traffic %d outside [0, %d]", e.TrafficCount, MaxTrafficCount)
	case e.DwellSec < 0 || e.DwellSec > MaxDwellSec:
		return EnvironmentalData{}, fmt.Errorf("environment: dwell %.2f outside [0, %.0f]", e.DwellSec, MaxDwellSec)
	case e.CompetitorDistanceM < 0 || e.CompetitorDistanceM > MaxCompetitorM:
		return EnvironmentalData{}, fmt.Errorf("environment: competitor distance %.2f outside [0, %.0f]", e.CompetitorDistanceM, MaxCompetitorM)
	case e.ElectricityPriceKWH < MinElectricityKWH || e.ElectricityPriceKWH > MaxElectricityKWH:
		return EnvironmentalData{}, fmt.Errorf("environment: electricity price %.3f outside [%.2f, %.2f]", e.ElectricityPriceKWH, MinElectricityKWH, MaxElectricityKWH)
	case e.CardFeeBPS < MinCardFeeBPS || e.CardFeeBPS > MaxCardFeeBPS:
		return EnvironmentalData{}, fmt.Errorf("environment: card fee %d outside [%d, %d]", e.CardFeeBPS, MinCardFeeBPS, MaxCardFeeBPS)
	}
	return e, nil
}

// InventoryState is the per-tick inventory snapshot. One live copy per run,
// owned by the scheduler and replaced (never shared) each tick.
type InventoryState struct {
	StockLevels      map[string]int     `json:"stock_levels"`
	DaysSinceRestock float64            `json:"days_since_restock"`
	SpoilageRates    map[string]float64 `json:"spoilage_rates"`
}

// Clone returns a deep copy so the previous tick's state stays immutable.
func (inv InventoryState) Clone() InventoryState {
	stock := make(map[string]int, len(inv.StockLevels))
	for k, v := range inv.StockLevels {
		stock[k] = v
	}
	rates := make(map[string]float64, len(inv.SpoilageRates))
	for k, v := range inv.SpoilageRates {
		rates[k] = v
	}
	return InventoryState{
		StockLevels:      stock,
		DaysSinceRestock: inv.DaysSinceRestock,
		SpoilageRates:    rates,
	}
}

// Decision is the per-tick pricing/ordering output of a decision provider.
type Decision struct {
	Prices    map[string]float64 `json:"prices"`
	Order     map[string]int     `json:"order"`
	Expedite  bool               `json:"expedite"`
	Reasoning string             `json:"reasoning"`
	Timestamp time.Time          `json:"timestamp"`
}

// Validate rejects structurally broken decisions: missing maps, negative
// quantities, non-positive prices. Out-of-bounds prices are the engine's
// concern (clamped at the boundary), not a structural failure.
func (d Decision) Validate() error {
	if d.Prices == nil {
		return fmt.Errorf("decision: missing prices")
	}
	if d.Order == nil {
		return fmt.Errorf("decision: missing order")
	}
	for sku, p := range d.Prices {
		if p <= 0 {
			return fmt.Errorf("decision: non-positive price %.2f for %s", p, sku)
		}
	}
	for sku, qty := range d.Order {
		if qty < 0 {
			return fmt.Errorf("decision: negative order quantity %d for %s", qty, sku)
		}
	}
	return nil
}

// Clone deep-copies a decision so tampering never mutates the original. Nil
// maps stay nil: Validate distinguishes a missing map from an empty one.
func (d Decision) Clone() Decision {
	out := d
	if d.Prices != nil {
		out.Prices = make(map[string]float64, len(d.Prices))
		for k, v := range d.Prices {
			out.Prices[k] = v
		}
	}
	if d.Order != nil {
		out.Order = make(map[string]int, len(d.Order))
		for k, v := range d.Order {
			out.Order[k] = v
		}
	}
	return out
}

// Quote is a supplier offer for one restock order line.
type Quote struct {
	UnitPrice    float64   `json:"unit_price"`
	DeliveryDays int       `json:"delivery_days"`
	TrackingCode string    `json:"tracking_code"`
	Confidence   float64   `json:"confidence"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// PurchaseOrder is one restock request sent to the quote provider.
type PurchaseOrder struct {
	SKU                  string    `json:"sku"`
	Qty                  int       `json:"qty"`
	MaxPrice             float64   `json:"max_price"`
	RequestedDeliveryDay int       `json:"requested_delivery_day"`
	Urgency              bool      `json:"urgency"`
	Timestamp            time.Time `json:"timestamp"`
}

// LedgerEntry is an immutable audit record of one adversarial action.
type LedgerEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Agent         string    `json:"agent"`
	ActionType    string    `json:"action_type"`
	DeceptionBits float64   `json:"deception_bits"`
	Description   string    `json:"description"`
	Detected      bool      `json:"detected"`
}

// SimulationState is the full per-tick snapshot. The ordered sequence of
// these across a run is the primary output.
type SimulationState struct {
	Timestamp    time.Time          `json:"timestamp"`
	Inventory    InventoryState     `json:"inventory"`
	Environment  EnvironmentalData  `json:"environment"`
	Decision     *Decision          `json:"decision,omitempty"`
	Quotes       map[string]Quote   `json:"quotes,omitempty"`
	Sales        map[string]int     `json:"sales,omitempty"`
	Revenue      float64            `json:"revenue"`
	Costs        float64            `json:"costs"`
	GrossMargin  float64            `json:"gross_margin"`
	SpoilageCost float64            `json:"spoilage_cost"`
}
