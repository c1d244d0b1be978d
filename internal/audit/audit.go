// Package audit emits structured events for every financial state change.
// Emission is best-effort: a sink failure is logged and never fails the
// operation that produced the event.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one auditable state change.
type Event struct {
	Type          string         `json:"type"`
	WalletID      uuid.UUID      `json:"wallet_id"`
	Actor         string         `json:"actor,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Sink receives audit events after the producing transaction commits.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Emit is a nil-safe helper used by services holding an optional sink.
func Emit(ctx context.Context, sink Sink, event Event) {
	if sink == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	sink.Emit(ctx, event)
}
