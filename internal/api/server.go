// Package api serves a completed simulation run over HTTP: read-only
// telemetry for dashboards and post-run analysis.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"zenmachine/internal/adversary"
	"zenmachine/internal/model"
	"zenmachine/internal/persistence"
)

// Server exposes one run. DB is optional; when present the states and
// ledger endpoints read back from SQLite instead of the in-memory result.
type Server struct {
	Result    *model.SimulationResult
	Adversary *adversary.Module
	DB        *persistence.DB
	Port      int
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	limiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/status", RateLimitMiddleware(limiter, s.handleStatus))
	mux.HandleFunc("/api/v1/result", RateLimitMiddleware(limiter, s.handleResult))
	mux.HandleFunc("/api/v1/ledger", RateLimitMiddleware(limiter, s.handleLedger))
	mux.HandleFunc("/api/v1/states", RateLimitMiddleware(limiter, s.handleStates))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("telemetry API starting", "addr", addr, "simulation_id", s.Result.SimulationID)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus returns the run headline numbers plus adversary activity.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res := s.Result
	status := map[string]any{
		"simulation_id":      res.SimulationID,
		"start":              res.Config.Start,
		"end":                res.Config.End,
		"ticks":              len(res.States),
		"total_revenue":      res.TotalRevenue,
		"total_costs":        res.TotalCosts,
		"gross_margin":       res.GrossMargin,
		"spoilage_rate":      res.SpoilageRate,
		"uptime_percentage":  res.UptimePercentage,
		"average_latency_ms": res.AverageLatencyMS,
		"ledger_entries":     len(res.Ledger),
	}
	if s.Adversary != nil {
		status["adversary"] = s.Adversary.Statistics(res.Config.End)
	}
	writeJSON(w, status)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.Result)
}

// handleLedger returns the deception ledger. With ?day=YYYY-MM-DD and a
// database attached, entries are read back for that UTC day only.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if day := r.URL.Query().Get("day"); day != "" && s.DB != nil {
		from, err := time.Parse("2006-01-02", day)
		if err != nil {
			http.Error(w, "invalid day, want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		entries, err := s.DB.LedgerBetween(r.Context(), s.Result.SimulationID, from, from.AddDate(0, 0, 1))
		if err != nil {
			slog.Error("ledger read-back failed", "error", err)
			http.Error(w, "ledger query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
		return
	}

	writeJSON(w, s.Result.Ledger)
}

// handleStates returns the newest snapshots, oldest first. ?limit=N caps the
// count (default 100).
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.DB != nil {
		states, err := s.DB.RecentStates(r.Context(), s.Result.SimulationID, limit)
		if err != nil {
			slog.Error("state read-back failed", "error", err)
			http.Error(w, "state query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, states)
		return
	}

	states := s.Result.States
	if len(states) > limit {
		states = states[len(states)-limit:]
	}
	writeJSON(w, states)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
