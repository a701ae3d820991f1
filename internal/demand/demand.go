// Package demand models per-tick sales as a Poisson process shaped by price
// and environmental factors. Simulate is the engine's sales draw; Forecast
// is the richer factor breakdown the decision provider uses for context.
package demand

import (
	"math"

	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
)

const baseRate = 5.0

// Simulate draws units sold per SKU, capped at available stock. Pure apart
// from the injected random source; iteration follows catalog order so the
// draw sequence is deterministic.
func Simulate(rng *entropy.Source, prices map[string]float64, env model.EnvironmentalData,
	stock map[string]int, catalog []model.SKU) map[string]int {

	sales := make(map[string]int, len(catalog))
	for _, sku := range catalog {
		price, priced := prices[sku.ID]
		available := stock[sku.ID]
		if !priced || available <= 0 {
			sales[sku.ID] = 0
			continue
		}

		rate := baseRate *
			priceFactor(price, sku.MSRP) *
			temperatureFactor(env.TemperatureC) *
			rainFactor(env.RainMM) *
			trafficFactor(env.TrafficCount)

		drawn := rng.Poisson(rate)
		if drawn > available {
			drawn = available
		}
		sales[sku.ID] = drawn
	}
	return sales
}

// priceFactor penalizes prices above MSRP roughly linearly, floored at 0.1.
func priceFactor(price, msrp float64) float64 {
	f := 1.0 - (price/msrp-1.0)*2.0
	if f < 0.1 {
		f = 0.1
	}
	return f
}

func temperatureFactor(tempC float64) float64 {
	return 1.0 + 0.01*(tempC-20)
}

func rainFactor(rainMM float64) float64 {
	return 1.0 - 0.1*math.Min(1.0, rainMM/10)
}

func trafficFactor(count int) float64 {
	return math.Min(2.0, float64(count)/50)
}

// Forecast is the expected-demand breakdown for one SKU at one price point.
type Forecast struct {
	ExpectedDemand float64            `json:"expected_demand"`
	Lambda         float64            `json:"lambda"`
	Factors        map[string]float64 `json:"factors"`
}

// categoryBaseRates are the per-category demand intercepts.
var categoryBaseRates = map[string]float64{
	"beverage": 8.0,
	"snack":    5.0,
	"healthy":  3.0,
	"energy":   6.0,
	"candy":    4.0,
}

// PredictDemand computes an expected-demand forecast using the full factor
// set, including time-of-day and calendar effects and a power-law price
// elasticity. No randomness: forecasts must not advance the run's source.
func PredictDemand(sku model.SKU, env model.EnvironmentalData, price float64) Forecast {
	base, ok := categoryBaseRates[sku.Category]
	if !ok {
		base = 5.0
	}

	temp := temperatureFactor(env.TemperatureC)
	rain := 1.0 - 0.05*math.Min(1.0, env.RainMM/10)
	traffic := trafficFactor(env.TrafficCount)
	// 1% price increase costs roughly 2% of demand.
	priceF := math.Pow(price/sku.MSRP, -2.0)
	hourF := hourFactor(env.Hour)
	weekdayF := weekdayFactor(env.Weekday)
	holidayF := 1.0
	if env.HolidayFlag {
		holidayF = 1.2
	}

	expected := base * temp * rain * traffic * priceF * hourF * weekdayF * holidayF
	lambda := math.Max(0.1, expected)

	return Forecast{
		ExpectedDemand: expected,
		Lambda:         lambda,
		Factors: map[string]float64{
			"temperature": temp,
			"rain":        rain,
			"traffic":     traffic,
			"price":       priceF,
			"hour":        hourF,
			"weekday":     weekdayF,
			"holiday":     holidayF,
		},
	}
}

// hourFactor peaks mid-morning and mid-afternoon, with a lunch bump.
func hourFactor(hour int) float64 {
	switch {
	case (hour >= 8 && hour <= 10) || (hour >= 14 && hour <= 16):
		return 1.5
	case hour >= 11 && hour <= 13:
		return 1.3
	case hour < 7 || hour > 19:
		return 0.5
	default:
		return 1.0
	}
}

func weekdayFactor(weekday int) float64 {
	if weekday < 5 {
		return 1.2
	}
	return 0.8
}
