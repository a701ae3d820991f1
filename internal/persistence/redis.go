package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zenmachine/internal/model"
)

const (
	stateStream  = "zen:state_updates"
	ledgerStream = "zen:deception_ledger"

	// Streams are capped so a long back-test cannot grow Redis unbounded.
	streamMaxLen = 10000
)

// StreamSink publishes states and ledger entries to Redis streams for live
// observers.
type StreamSink struct {
	client *redis.Client
}

// NewStreamSink connects to Redis at addr and verifies the connection.
func NewStreamSink(addr string) (*StreamSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &StreamSink{client: client}, nil
}

// Close releases the Redis connection.
func (s *StreamSink) Close() error {
	return s.client.Close()
}

// AppendState publishes one tick snapshot to the state stream.
func (s *StreamSink) AppendState(ctx context.Context, simulationID string, state model.SimulationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stateStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"simulation_id": simulationID,
			"timestamp":     state.Timestamp.UTC().Format(time.RFC3339Nano),
			"state":         string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd state: %w", err)
	}
	return nil
}

// AppendLedger publishes one adversarial action to the ledger stream.
func (s *StreamSink) AppendLedger(ctx context.Context, simulationID string, entry model.LedgerEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: ledgerStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"simulation_id": simulationID,
			"action_type":   entry.ActionType,
			"entry":         string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd ledger entry: %w", err)
	}
	return nil
}
