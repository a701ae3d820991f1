package store

import "math"

// Base lead times in days by SKU category.
var baseLeadTimes = map[string]int{
	"beverage": 2,
	"snack":    1,
	"healthy":  3,
	"energy":   2,
	"candy":    1,
}

const defaultLeadDays = 2

// LeadTime estimates delivery in whole days for an order. Weather delay is a
// fractional slowdown (0.2 = 20% longer); urgency accelerates.
func LeadTime(quantity int, weatherDelay float64, urgency bool, category string) int {
	base, ok := baseLeadTimes[category]
	if !ok {
		base = defaultLeadDays
	}

	factor := quantityLeadFactor(quantity) * (1.0 + weatherDelay)
	if urgency {
		factor *= 0.7
	}

	days := int(math.Ceil(float64(base) * factor))
	if days < 1 {
		days = 1
	}
	return days
}

func quantityLeadFactor(quantity int) float64 {
	switch {
	case quantity >= 100:
		return 1.5
	case quantity >= 50:
		return 1.2
	case quantity >= 20:
		return 1.1
	default:
		return 1.0
	}
}

// WeatherDelay converts rain and temperature extremes into a lead-time
// slowdown, capped at 50% for rain plus 20% for extreme temperatures.
func WeatherDelay(rainMM, temperatureC float64) float64 {
	delay := math.Min(0.5, rainMM/20)
	if temperatureC < -5 || temperatureC > 35 {
		delay += 0.2
	}
	return delay
}
