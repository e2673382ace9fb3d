package journal

import (
	"context"
	"time"
)

// Entry is one delivery outcome. Failed deliveries are dropped from the
// queue, so the journal is the only durable record of what happened to them.
type Entry struct {
	EventFamily string    `bson:"event_family"`
	EventType   string    `bson:"event_type,omitempty"`
	ConfigID    string    `bson:"config_id,omitempty"`
	EntityID    string    `bson:"entity_id,omitempty"`
	Outcome     string    `bson:"outcome"`
	ErrorCode   string    `bson:"error_code,omitempty"`
	Error       string    `bson:"error,omitempty"`
	Attempts    int       `bson:"attempts"`
	StatusCode  int       `bson:"status_code,omitempty"`
	DurationMS  int64     `bson:"duration_ms"`
	RecordedAt  time.Time `bson:"recorded_at"`
}

const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

// Recorder persists delivery outcomes. Recording is best-effort; it must
// never fail a delivery.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}
