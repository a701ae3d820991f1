// Package env generates baseline environmental observations for each tick.
// Observations are a pure function of the tick timestamp, the run's random
// source, and two seeded noise layers for smooth day-to-day drift.
package env

import (
	"math"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
)

// Generator produces one EnvironmentalData per tick.
type Generator struct {
	rng         *entropy.Source
	tempNoise   opensimplex.Noise
	pollenNoise opensimplex.Noise
}

// NewGenerator creates a generator from the run seed and the run's shared
// random source. The noise layers get offset seeds so the layers are
// independent of each other and of the uniform stream.
func NewGenerator(seed int64, rng *entropy.Source) *Generator {
	return &Generator{
		rng:         rng,
		tempNoise:   opensimplex.NewNormalized(seed + 1),
		pollenNoise: opensimplex.NewNormalized(seed + 2),
	}
}

// At generates the observation for ts. All values land inside the model's
// hard ranges; a range failure here means a generator bug, not bad input.
func (g *Generator) At(ts time.Time) (model.EnvironmentalData, error) {
	dayOfYear := float64(ts.YearDay())
	hour := ts.Hour()
	// Monday=0..Sunday=6.
	weekday := (int(ts.Weekday()) + 6) % 7

	// Seasonal temperature curve, smooth noise drift, plus per-tick jitter.
	baseTemp := 20 + 10*math.Sin(2*math.Pi*(dayOfYear-80)/365)
	drift := (g.tempNoise.Eval2(dayOfYear/30, float64(hour)/24) - 0.5) * 4
	temp := clamp(baseTemp+drift+g.rng.Normal(0, 2), model.MinTemperatureC, model.MaxTemperatureC)

	// Rain: exponential burst gated by a seasonal probability.
	rainProb := 0.1 + 0.15*math.Sin(2*math.Pi*dayOfYear/365)
	rain := 0.0
	if g.rng.Float64() < rainProb {
		rain = clamp(g.rng.Exponential(2), 0, model.MaxRainMM)
	}

	// Foot traffic: Poisson around a daily curve, quieter on weekends.
	baseTraffic := 50 + 30*math.Sin(2*math.Pi*float64(hour)/24)
	weekendFactor := 1.0
	if weekday >= 5 {
		weekendFactor = 0.7
	}
	traffic := g.rng.Poisson(baseTraffic * weekendFactor)
	if traffic > model.MaxTrafficCount {
		traffic = model.MaxTrafficCount
	}

	// Pollen peaks in spring with slow noise drift.
	pollen := 100 + 200*math.Sin(2*math.Pi*(dayOfYear-60)/365)
	pollen += (g.pollenNoise.Eval2(dayOfYear/15, 0) - 0.5) * 60
	pollenPPM := int(clamp(pollen, 0, model.MaxPollenPPM))

	electricity := 0.15 + 0.1*math.Sin(2*math.Pi*float64(hour)/24) + g.rng.Normal(0, 0.02)
	electricity = clamp(electricity, model.MinElectricityKWH, model.MaxElectricityKWH)

	return model.NewEnvironmentalData(model.EnvironmentalData{
		Timestamp:           ts,
		TemperatureC:        temp,
		RainMM:              rain,
		PollenPPM:           pollenPPM,
		Hour:                hour,
		Weekday:             weekday,
		HolidayFlag:         IsHoliday(ts),
		TrafficCount:        traffic,
		DwellSec:            clamp(g.rng.Exponential(120), 0, model.MaxDwellSec),
		CompetitorDistanceM: clamp(50+g.rng.Exponential(30), 0, model.MaxCompetitorM),
		ElectricityPriceKWH: electricity,
		CardFeeBPS:          g.rng.IntBetween(model.MinCardFeeBPS, model.MaxCardFeeBPS),
	})
}

// IsHoliday applies the fixed calendar rules: New Year's Day, Independence
// Day, Christmas.
func IsHoliday(ts time.Time) bool {
	switch {
	case ts.Month() == time.January && ts.Day() == 1:
		return true
	case ts.Month() == time.July && ts.Day() == 4:
		return true
	case ts.Month() == time.December && ts.Day() == 25:
		return true
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
