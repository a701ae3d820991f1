package store

import "zenmachine/internal/model"

// Categories that need refrigerated transport.
var tempSensitive = map[string]bool{
	"juice":   true,
	"energy":  true,
	"healthy": true,
}

// CostModel derives a per-unit supply cost from the catalog wholesale cost
// and current market conditions.
type CostModel struct {
	dieselKnee  float64 // €/liter threshold before fuel surcharge kicks in
	dieselPrice float64
	tempFactor  float64
}

// NewCostModel starts from typical market conditions.
func NewCostModel(dieselKnee float64) *CostModel {
	return &CostModel{
		dieselKnee:  dieselKnee,
		dieselPrice: 1.45,
		tempFactor:  1.0,
	}
}

// SetMarketConditions updates diesel price and refrigeration pressure.
func (c *CostModel) SetMarketConditions(dieselPrice, tempFactor float64) {
	c.dieselPrice = dieselPrice
	c.tempFactor = tempFactor
}

// UnitCost multiplies the wholesale cost by fuel, refrigeration, quantity
// discount, and urgency factors.
func (c *CostModel) UnitCost(sku model.SKU, quantity int, urgency bool) float64 {
	cost := sku.Cost * c.dieselAdjustment() * c.temperatureAdjustment(sku) * quantityDiscount(quantity)
	if urgency {
		cost *= 1.2
	}
	return cost
}

// dieselAdjustment is a knee function: flat below the threshold, 10% per
// euro above it.
func (c *CostModel) dieselAdjustment() float64 {
	if c.dieselPrice <= c.dieselKnee {
		return 1.0
	}
	return 1.0 + (c.dieselPrice-c.dieselKnee)*0.1
}

func (c *CostModel) temperatureAdjustment(sku model.SKU) float64 {
	if !tempSensitive[sku.Category] {
		return 1.0
	}
	return 1.0 + (c.tempFactor-1.0)*0.15
}

func quantityDiscount(quantity int) float64 {
	switch {
	case quantity >= 50:
		return 0.85
	case quantity >= 20:
		return 0.90
	case quantity >= 10:
		return 0.95
	default:
		return 1.0
	}
}
