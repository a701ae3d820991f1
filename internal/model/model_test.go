package model

import (
	"testing"
	"time"
)

func validSKU() SKU {
	return SKU{ID: "water", Name: "Water", MSRP: 1.50, Cost: 0.50, ShelfLifeDays: 365, Category: "beverage"}
}

func TestSKUValidate(t *testing.T) {
	if err := validSKU().Validate(); err != nil {
		t.Fatalf("valid sku rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*SKU)
	}{
		{"empty id", func(s *SKU) { s.ID = "" }},
		{"zero msrp", func(s *SKU) { s.MSRP = 0 }},
		{"negative cost", func(s *SKU) { s.Cost = -0.1 }},
		{"zero shelf life", func(s *SKU) { s.ShelfLifeDays = 0 }},
	}
	for _, tc := range cases {
		sku := validSKU()
		tc.mutate(&sku)
		if err := sku.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func validEnv() EnvironmentalData {
	return EnvironmentalData{
		Timestamp:           time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC:        22,
		RainMM:              0.5,
		PollenPPM:           120,
		Hour:                12,
		Weekday:             0,
		TrafficCount:        80,
		DwellSec:            45,
		CompetitorDistanceM: 150,
		ElectricityPriceKWH: 0.18,
		CardFeeBPS:          120,
	}
}

func TestNewEnvironmentalDataRanges(t *testing.T) {
	if _, err := NewEnvironmentalData(validEnv()); err != nil {
		t.Fatalf("valid observation rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*EnvironmentalData)
	}{
		{"temperature low", func(e *EnvironmentalData) { e.TemperatureC = -10.5 }},
		{"temperature high", func(e *EnvironmentalData) { e.TemperatureC = 45.1 }},
		{"rain negative", func(e *EnvironmentalData) { e.RainMM = -1 }},
		{"rain high", func(e *EnvironmentalData) { e.RainMM = 50.1 }},
		{"pollen high", func(e *EnvironmentalData) { e.PollenPPM = 501 }},
		{"hour high", func(e *EnvironmentalData) { e.Hour = 24 }},
		{"weekday high", func(e *EnvironmentalData) { e.Weekday = 7 }},
		{"traffic high", func(e *EnvironmentalData) { e.TrafficCount = 301 }},
		{"dwell high", func(e *EnvironmentalData) { e.DwellSec = 600.5 }},
		{"competitor far", func(e *EnvironmentalData) { e.CompetitorDistanceM = 200.5 }},
		{"electricity low", func(e *EnvironmentalData) { e.ElectricityPriceKWH = 0.04 }},
		{"electricity high", func(e *EnvironmentalData) { e.ElectricityPriceKWH = 0.36 }},
		{"card fee low", func(e *EnvironmentalData) { e.CardFeeBPS = 49 }},
		{"card fee high", func(e *EnvironmentalData) { e.CardFeeBPS = 301 }},
	}
	for _, tc := range cases {
		env := validEnv()
		tc.mutate(&env)
		if _, err := NewEnvironmentalData(env); err == nil {
			t.Errorf("%s: expected range error", tc.name)
		}
	}
}

func TestDecisionValidate(t *testing.T) {
	good := Decision{
		Prices: map[string]float64{"water": 1.50},
		Order:  map[string]int{"water": 5},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid decision rejected: %v", err)
	}

	if err := (Decision{Order: map[string]int{}}).Validate(); err == nil {
		t.Error("nil prices accepted")
	}
	if err := (Decision{Prices: map[string]float64{}}).Validate(); err == nil {
		t.Error("nil order accepted")
	}
	bad := Decision{Prices: map[string]float64{"water": 0}, Order: map[string]int{}}
	if err := bad.Validate(); err == nil {
		t.Error("non-positive price accepted")
	}
	bad = Decision{Prices: map[string]float64{}, Order: map[string]int{"water": -1}}
	if err := bad.Validate(); err == nil {
		t.Error("negative order quantity accepted")
	}
}

func TestDecisionCloneIsolation(t *testing.T) {
	orig := Decision{
		Prices: map[string]float64{"water": 1.50},
		Order:  map[string]int{"water": 5},
	}
	cp := orig.Clone()
	cp.Prices["water"] = 9.99
	cp.Order["water"] = 0
	if orig.Prices["water"] != 1.50 || orig.Order["water"] != 5 {
		t.Fatal("clone shares maps with original")
	}
}

func TestDecisionClonePreservesNilMaps(t *testing.T) {
	cp := Decision{Prices: nil, Order: map[string]int{}}.Clone()
	if cp.Prices != nil {
		t.Fatal("clone materialized a nil prices map")
	}
	if cp.Order == nil {
		t.Fatal("clone dropped an empty order map")
	}
	if err := cp.Validate(); err == nil {
		t.Fatal("cloned decision with nil prices passed validation")
	}
}

func TestInventoryCloneIsolation(t *testing.T) {
	orig := InventoryState{
		StockLevels:   map[string]int{"water": 20},
		SpoilageRates: map[string]float64{"water": 0.01},
	}
	cp := orig.Clone()
	cp.StockLevels["water"] = 0
	cp.SpoilageRates["water"] = 1
	if orig.StockLevels["water"] != 20 || orig.SpoilageRates["water"] != 0.01 {
		t.Fatal("clone shares maps with original")
	}
}

func validConfig() SimulationConfig {
	return SimulationConfig{
		Start:            time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC),
		Catalog:          []SKU{validSKU()},
		InitialInventory: map[string]int{"water": 20},
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.TickMinutes != DefaultTickMinutes {
		t.Errorf("tick minutes default = %d", cfg.TickMinutes)
	}
	if cfg.DeceptionBudget != DefaultDeceptionBudget {
		t.Errorf("deception budget default = %v", cfg.DeceptionBudget)
	}
	if cfg.MarginTarget != DefaultMarginTarget {
		t.Errorf("margin target default = %v", cfg.MarginTarget)
	}
	if cfg.SpoilageLimit != DefaultSpoilageLimit {
		t.Errorf("spoilage limit default = %v", cfg.SpoilageLimit)
	}
	if cfg.ProviderTimeout != DefaultProviderTimeout {
		t.Errorf("provider timeout default = %v", cfg.ProviderTimeout)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SimulationConfig)
	}{
		{"missing start", func(c *SimulationConfig) { c.Start = time.Time{} }},
		{"end before start", func(c *SimulationConfig) { c.End = c.Start.Add(-time.Hour) }},
		{"negative tick", func(c *SimulationConfig) { c.TickMinutes = -5 }},
		{"empty catalog", func(c *SimulationConfig) { c.Catalog = nil }},
		{"duplicate sku", func(c *SimulationConfig) { c.Catalog = append(c.Catalog, validSKU()) }},
		{"unknown inventory sku", func(c *SimulationConfig) { c.InitialInventory["ghost"] = 1 }},
		{"negative stock", func(c *SimulationConfig) { c.InitialInventory["water"] = -1 }},
		{"negative budget", func(c *SimulationConfig) { c.DeceptionBudget = -0.1 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestFindSKU(t *testing.T) {
	cfg := validConfig()
	if _, ok := cfg.FindSKU("water"); !ok {
		t.Error("water not found")
	}
	if _, ok := cfg.FindSKU("ghost"); ok {
		t.Error("ghost found")
	}
}
