// Package adversary applies bounded, auditable deception to environment data
// and inter-agent messages under a hard daily bit budget. Every applied
// action appends one immutable ledger entry; the engine drains the buffer
// each tick. All clock reads use simulated time so runs stay reproducible.
package adversary

import (
	cryptorand "crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"zenmachine/internal/entropy"
	"zenmachine/internal/model"
	"zenmachine/internal/security"
)

// Config bounds what the adversary may do.
type Config struct {
	DeceptionBudget   float64       // bits per UTC day
	TemperatureLimit  float64       // max |delta| in °C
	RainLimit         float64       // max |delta| in mm
	TrafficLimit      float64       // max fractional change
	MaxLatencySpikeMS int           // added delay per spike
	TamperWindow      time.Duration // min gap between message tampers
	SigningKey        []byte        // HMAC key; empty generates a fresh one
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		DeceptionBudget:   model.DefaultDeceptionBudget,
		TemperatureLimit:  0.3,
		RainLimit:         1.0,
		TrafficLimit:      0.1,
		MaxLatencySpikeMS: 80,
		TamperWindow:      time.Hour,
	}
}

// actionCost is the flat charge for one applied change, in bits.
const actionCost = 0.1

// Module is the perturbation ledger. One instance per simulation run; the
// mutex serializes check-then-charge for deployments that share an instance.
type Module struct {
	cfg    Config
	rng    *entropy.Source
	signer *security.Signer

	mu         sync.Mutex
	buffer     []model.LedgerEntry
	bitsUsed   float64
	lastReset  time.Time // UTC midnight of the day bitsUsed covers
	tamperCnt  int
	lastTamper time.Time
	envChanges int
}

// New creates a perturbation ledger drawing randomness from the run's source.
// A missing signing key is replaced with a fresh random one, so every module
// can sign from birth.
func New(cfg Config, rng *entropy.Source) *Module {
	key := cfg.SigningKey
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := cryptorand.Read(key); err != nil {
			panic(fmt.Sprintf("adversary: signing key: %v", err))
		}
	}
	signer, err := security.NewSigner(key)
	if err != nil {
		panic(fmt.Sprintf("adversary: signer: %v", err))
	}
	return &Module{cfg: cfg, rng: rng, signer: signer}
}

// Sign produces an HMAC signature for an inter-agent message.
func (m *Module) Sign(message any) (string, error) {
	return m.signer.Sign(message)
}

// Verify checks a message signature in constant time.
func (m *Module) Verify(message any, signature string) bool {
	return m.signer.Verify(message, signature)
}

// ModifyEnvironment returns either env unchanged or a budget-bounded
// perturbed copy. The input is never mutated. A declined perturbation is
// silent: no error, no ledger entry.
func (m *Module) ModifyEnvironment(env model.EnvironmentalData) model.EnvironmentalData {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(env.Timestamp)

	if m.bitsUsed >= m.cfg.DeceptionBudget {
		return env
	}
	available := m.cfg.DeceptionBudget - m.bitsUsed

	out := env
	var changes []string

	if m.rng.Float64() < 0.3 && available > actionCost {
		delta := m.rng.Uniform(-m.cfg.TemperatureLimit, m.cfg.TemperatureLimit)
		out.TemperatureC = clamp(out.TemperatureC+delta, model.MinTemperatureC, model.MaxTemperatureC)
		changes = append(changes, fmt.Sprintf("temperature_%+.1f", delta))
		available -= actionCost
	}
	if m.rng.Float64() < 0.2 && available > actionCost {
		delta := m.rng.Uniform(-m.cfg.RainLimit, m.cfg.RainLimit)
		out.RainMM = clamp(out.RainMM+delta, 0, model.MaxRainMM)
		changes = append(changes, fmt.Sprintf("rain_%+.1f", delta))
		available -= actionCost
	}
	if m.rng.Float64() < 0.2 && available > actionCost {
		frac := m.rng.Uniform(-m.cfg.TrafficLimit, m.cfg.TrafficLimit)
		traffic := int(float64(out.TrafficCount) * (1 + frac))
		if traffic < 0 {
			traffic = 0
		}
		if traffic > model.MaxTrafficCount {
			traffic = model.MaxTrafficCount
		}
		out.TrafficCount = traffic
		changes = append(changes, fmt.Sprintf("traffic_%+.1f%%", frac*100))
		available -= actionCost
	}

	if len(changes) == 0 {
		return env
	}

	cost := actionCost * float64(len(changes))
	m.bitsUsed += cost
	m.envChanges += len(changes)
	m.appendLocked(env.Timestamp, "environmental_modification", cost,
		"Modified environment: "+strings.Join(changes, ", "))
	return out
}

// TamperDecision perturbs a decision message within the tamper constraints.
// Returns the (possibly new) message and whether a tamper was applied.
func (m *Module) TamperDecision(d model.Decision, now time.Time) (model.Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canTamperLocked(now) {
		return d, false
	}

	out := d.Clone()
	if m.rng.Float64() < 0.5 {
		// Nudge every price by up to ±2%.
		for sku, price := range out.Prices {
			out.Prices[sku] = round2(price * (1 + m.rng.Uniform(-0.02, 0.02)))
		}
	} else if m.rng.Float64() < 0.3 {
		// Shift order quantities by one unit, never below zero.
		for sku, qty := range out.Order {
			qty += m.rng.IntBetween(-1, 1)
			if qty < 0 {
				qty = 0
			}
			out.Order[sku] = qty
		}
	}

	m.chargeTamperLocked(now, "message_tamper_decision", "Tampered with decision message")
	return out, true
}

// TamperQuote perturbs a quote message: either exaggerate the delivery day by
// 10-25% or inflate the price by 1-5%.
func (m *Module) TamperQuote(q model.Quote, now time.Time) (model.Quote, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canTamperLocked(now) {
		return q, false
	}

	out := q
	if m.rng.Float64() < 0.6 {
		out.DeliveryDays = int(float64(out.DeliveryDays) * (1 + m.rng.Uniform(0.1, 0.25)))
	} else if m.rng.Float64() < 0.4 {
		out.UnitPrice = round2(out.UnitPrice * (1 + m.rng.Uniform(0.01, 0.05)))
	}

	m.chargeTamperLocked(now, "message_tamper_quote", "Tampered with quote message")
	return out, true
}

// LatencySpike returns the delay the caller should observe and whether the
// spike was applied. Gated purely on budget.
func (m *Module) LatencySpike(now time.Time) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(now)

	if m.bitsUsed+actionCost > m.cfg.DeceptionBudget {
		return 0, false
	}
	m.bitsUsed += actionCost
	m.appendLocked(now, "latency_spike", actionCost,
		fmt.Sprintf("Created %dms latency spike", m.cfg.MaxLatencySpikeMS))
	return time.Duration(m.cfg.MaxLatencySpikeMS) * time.Millisecond, true
}

// DrainLedger moves the buffered entries out, leaving the buffer empty.
func (m *Module) DrainLedger() []model.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.buffer
	m.buffer = nil
	return entries
}

// BitsUsed reports the budget consumed for the day containing now.
func (m *Module) BitsUsed(now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(now)
	return m.bitsUsed
}

// Stats is a point-in-time snapshot of adversary activity.
type Stats struct {
	DailyBits            float64 `json:"daily_deception_bits"`
	TamperCount          int     `json:"tamper_count"`
	EnvironmentalChanges int     `json:"environmental_changes"`
	BudgetUtilization    float64 `json:"budget_utilization"`
}

// Statistics reports activity for the day containing now.
func (m *Module) Statistics(now time.Time) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(now)
	util := 0.0
	if m.cfg.DeceptionBudget > 0 {
		util = m.bitsUsed / m.cfg.DeceptionBudget
	}
	return Stats{
		DailyBits:            m.bitsUsed,
		TamperCount:          m.tamperCnt,
		EnvironmentalChanges: m.envChanges,
		BudgetUtilization:    util,
	}
}

// canTamperLocked applies the rolling-window rate limit and the prospective
// budget check. Callers hold the mutex.
func (m *Module) canTamperLocked(now time.Time) bool {
	m.resetLocked(now)
	if !m.lastTamper.IsZero() && now.Sub(m.lastTamper) < m.cfg.TamperWindow {
		return false
	}
	return m.bitsUsed+actionCost <= m.cfg.DeceptionBudget
}

func (m *Module) chargeTamperLocked(now time.Time, action, desc string) {
	m.bitsUsed += actionCost
	m.tamperCnt++
	m.lastTamper = now
	m.appendLocked(now, action, actionCost, desc)
}

// resetLocked zeroes the day's budget and counters on UTC date rollover.
// Lazy: invoked by every budget-consuming call, never by a timer.
func (m *Module) resetLocked(now time.Time) {
	day := utcMidnight(now)
	if m.lastReset.IsZero() {
		m.lastReset = day
		return
	}
	if day.After(m.lastReset) {
		m.bitsUsed = 0
		m.tamperCnt = 0
		m.envChanges = 0
		m.lastReset = day
	}
}

func (m *Module) appendLocked(ts time.Time, action string, bits float64, desc string) {
	m.buffer = append(m.buffer, model.LedgerEntry{
		Timestamp:     ts,
		Agent:         "adversary",
		ActionType:    action,
		DeceptionBits: bits,
		Description:   desc,
	})
}

func utcMidnight(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
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

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
