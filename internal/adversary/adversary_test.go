package adversary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
)

func testEnv(ts time.Time) model.EnvironmentalData {
	return model.EnvironmentalData{
		Timestamp:           ts,
		TemperatureC:        22,
		RainMM:              0.5,
		PollenPPM:           120,
		Hour:                ts.Hour(),
		TrafficCount:        80,
		DwellSec:            45,
		CompetitorDistanceM: 150,
		ElectricityPriceKWH: 0.18,
		CardFeeBPS:          120,
	}
}

// With 0.2 of a 0.25-bit budget spent, a 0.1-bit action must be declined:
// the prospective check runs before any charge.
func TestBudgetNeverExceeded(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	_, ok := m.LatencySpike(day)
	require.True(t, ok, "first spike fits the budget")
	_, ok = m.LatencySpike(day.Add(time.Minute))
	require.True(t, ok, "second spike fits the budget")
	assert.InDelta(t, 0.2, m.BitsUsed(day), 1e-9)

	dur, ok := m.LatencySpike(day.Add(2 * time.Minute))
	assert.False(t, ok, "third spike would exceed the budget")
	assert.Zero(t, dur)
	assert.InDelta(t, 0.2, m.BitsUsed(day), 1e-9, "declined action must not charge")
}

func TestDailyBudgetResetsAtUTCMidnight(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day1 := time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC)

	_, ok := m.LatencySpike(day1)
	require.True(t, ok)
	_, ok = m.LatencySpike(day1.Add(time.Minute))
	require.True(t, ok)
	_, ok = m.LatencySpike(day1.Add(2 * time.Minute))
	require.False(t, ok, "budget exhausted for day one")

	// The next call after midnight sees a fresh budget. No timer involved.
	day2 := time.Date(2026, 6, 2, 0, 30, 0, 0, time.UTC)
	_, ok = m.LatencySpike(day2)
	assert.True(t, ok, "budget reset lazily on rollover")
	assert.InDelta(t, 0.1, m.BitsUsed(day2), 1e-9)
}

func TestModifyEnvironmentBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeceptionBudget = 1000 // never the binding constraint here
	m := New(cfg, entropy.NewSource(42))

	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		in := testEnv(ts)
		out := m.ModifyEnvironment(in)

		assert.LessOrEqual(t, absF(out.TemperatureC-in.TemperatureC), cfg.TemperatureLimit+1e-9)
		assert.LessOrEqual(t, absF(out.RainMM-in.RainMM), cfg.RainLimit+1e-9)
		assert.GreaterOrEqual(t, out.RainMM, 0.0)
		delta := float64(out.TrafficCount) - float64(in.TrafficCount)
		assert.LessOrEqual(t, absF(delta), float64(in.TrafficCount)*cfg.TrafficLimit+1)

		// Untouched fields pass through.
		assert.Equal(t, in.PollenPPM, out.PollenPPM)
		assert.Equal(t, in.ElectricityPriceKWH, out.ElectricityPriceKWH)
		ts = ts.Add(15 * time.Minute)
	}
}

func TestModifyEnvironmentDoesNotMutateInput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeceptionBudget = 1000
	m := New(cfg, entropy.NewSource(1))

	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		in := testEnv(ts)
		want := in
		m.ModifyEnvironment(in)
		assert.Equal(t, want, in)
		ts = ts.Add(15 * time.Minute)
	}
}

func TestPerturbationLogsOneLedgerEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeceptionBudget = 1000
	m := New(cfg, entropy.NewSource(42))

	ts := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	applied := 0
	for i := 0; i < 200 && applied == 0; i++ {
		before := m.BitsUsed(ts)
		m.ModifyEnvironment(testEnv(ts))
		if m.BitsUsed(ts) > before {
			applied++
		}
		ts = ts.Add(15 * time.Minute)
	}
	require.Equal(t, 1, applied, "at least one perturbation should land in 200 rolls")

	entries := m.DrainLedger()
	require.Len(t, entries, 1, "one applied perturbation yields one combined entry")
	e := entries[0]
	assert.Equal(t, "adversary", e.Agent)
	assert.Equal(t, "environmental_modification", e.ActionType)
	assert.Greater(t, e.DeceptionBits, 0.0)
	assert.NotEmpty(t, e.Description)
}

func TestDrainLedgerMovesEntries(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	_, ok := m.LatencySpike(day)
	require.True(t, ok)

	first := m.DrainLedger()
	require.Len(t, first, 1)
	assert.Empty(t, m.DrainLedger(), "second drain finds an empty buffer")
}

func TestTamperRateLimit(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	d := model.Decision{
		Prices: map[string]float64{"water": 1.50},
		Order:  map[string]int{"water": 5},
	}

	_, ok := m.TamperDecision(d, day)
	require.True(t, ok, "first tamper allowed")

	_, ok = m.TamperDecision(d, day.Add(30*time.Minute))
	assert.False(t, ok, "tamper inside the one-hour window declined")

	_, ok = m.TamperDecision(d, day.Add(61*time.Minute))
	assert.True(t, ok, "tamper after the window allowed")
}

func TestTamperDecisionDoesNotMutateOriginal(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	d := model.Decision{
		Prices: map[string]float64{"water": 1.50},
		Order:  map[string]int{"water": 5},
	}

	_, ok := m.TamperDecision(d, day)
	require.True(t, ok)
	assert.Equal(t, 1.50, d.Prices["water"])
	assert.Equal(t, 5, d.Order["water"])
}

func TestTamperQuoteWorsensNeverImproves(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TamperWindow = 0
	cfg.DeceptionBudget = 1000
	m := New(cfg, entropy.NewSource(42))

	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	q := model.Quote{UnitPrice: 0.56, DeliveryDays: 2, Confidence: 0.9}
	for i := 0; i < 100; i++ {
		out, ok := m.TamperQuote(q, day.Add(time.Duration(i)*time.Minute))
		require.True(t, ok)
		assert.GreaterOrEqual(t, out.UnitPrice, q.UnitPrice)
		assert.GreaterOrEqual(t, out.DeliveryDays, q.DeliveryDays)
	}
}

func TestStatisticsSnapshot(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	day := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	_, ok := m.LatencySpike(day)
	require.True(t, ok)

	stats := m.Statistics(day)
	assert.InDelta(t, 0.1, stats.DailyBits, 1e-9)
	assert.InDelta(t, 0.4, stats.BudgetUtilization, 1e-9)
	assert.Equal(t, 0, stats.TamperCount)
}

func TestSignVerify(t *testing.T) {
	m := New(DefaultConfig(), entropy.NewSource(42))
	msg := map[string]any{"sku": "water", "qty": 5}

	sig, err := m.Sign(msg)
	require.NoError(t, err)
	assert.True(t, m.Verify(msg, sig))

	msg["qty"] = 50
	assert.False(t, m.Verify(msg, sig))
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
