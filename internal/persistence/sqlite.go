// Package persistence provides durable sinks for simulation states and
// deception-ledger entries, plus read-back queries for the telemetry API.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"zenmachine/internal/model"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulation_states (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		simulation_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		revenue REAL NOT NULL,
		costs REAL NOT NULL,
		gross_margin REAL NOT NULL,
		spoilage_cost REAL NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deception_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		simulation_id TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		agent TEXT NOT NULL,
		action_type TEXT NOT NULL,
		deception_bits REAL NOT NULL,
		description TEXT NOT NULL,
		detected INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		simulation_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (simulation_id, key)
	);

	CREATE INDEX IF NOT EXISTS idx_states_sim_ts ON simulation_states(simulation_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_ledger_sim_ts ON deception_ledger(simulation_id, timestamp);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// AppendState stores one tick snapshot.
func (db *DB) AppendState(ctx context.Context, simulationID string, state model.SimulationState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO simulation_states
		(simulation_id, timestamp, revenue, costs, gross_margin, spoilage_cost, state_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		simulationID, state.Timestamp.UTC().Format(time.RFC3339Nano),
		state.Revenue, state.Costs, state.GrossMargin, state.SpoilageCost,
		string(stateJSON),
	)
	if err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return nil
}

// AppendLedger stores one adversarial action record.
func (db *DB) AppendLedger(ctx context.Context, simulationID string, entry model.LedgerEntry) error {
	detected := 0
	if entry.Detected {
		detected = 1
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO deception_ledger
		(simulation_id, timestamp, agent, action_type, deception_bits, description, detected)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		simulationID, entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Agent, entry.ActionType, entry.DeceptionBits, entry.Description, detected,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// RecentStates returns up to limit of the newest snapshots for a run, oldest
// first.
func (db *DB) RecentStates(ctx context.Context, simulationID string, limit int) ([]model.SimulationState, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []string
	err := db.conn.SelectContext(ctx, &rows, `SELECT state_json FROM (
			SELECT state_json, timestamp FROM simulation_states
			WHERE simulation_id = ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`,
		simulationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select states: %w", err)
	}

	states := make([]model.SimulationState, 0, len(rows))
	for _, raw := range rows {
		var state model.SimulationState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		states = append(states, state)
	}
	return states, nil
}

// LedgerBetween returns run ledger entries within [from, to), oldest first.
func (db *DB) LedgerBetween(ctx context.Context, simulationID string, from, to time.Time) ([]model.LedgerEntry, error) {
	type row struct {
		Timestamp     string  `db:"timestamp"`
		Agent         string  `db:"agent"`
		ActionType    string  `db:"action_type"`
		DeceptionBits float64 `db:"deception_bits"`
		Description   string  `db:"description"`
		Detected      int     `db:"detected"`
	}
	var rows []row
	err := db.conn.SelectContext(ctx, &rows, `SELECT timestamp, agent, action_type, deception_bits, description, detected
		FROM deception_ledger
		WHERE simulation_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`,
		simulationID,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("select ledger: %w", err)
	}

	entries := make([]model.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse ledger timestamp: %w", err)
		}
		entries = append(entries, model.LedgerEntry{
			Timestamp:     ts,
			Agent:         r.Agent,
			ActionType:    r.ActionType,
			DeceptionBits: r.DeceptionBits,
			Description:   r.Description,
			Detected:      r.Detected == 1,
		})
	}
	return entries, nil
}

// SaveRunMeta stores a key-value pair for a run.
func (db *DB) SaveRunMeta(ctx context.Context, simulationID, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO run_meta (simulation_id, key, value) VALUES (?, ?, ?)",
		simulationID, key, value,
	)
	return err
}

// RunMeta retrieves a metadata value for a run.
func (db *DB) RunMeta(ctx context.Context, simulationID, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value,
		"SELECT value FROM run_meta WHERE simulation_id = ? AND key = ?",
		simulationID, key,
	)
	return value, err
}
