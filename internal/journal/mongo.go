package journal

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"relay/internal/logger"
)

const writeTimeout = 2 * time.Second

type MongoRecorder struct {
	collection *mongo.Collection
	logger     logger.Logger
}

func NewMongoRecorder(db *mongo.Database, log logger.Logger) *MongoRecorder {
	return &MongoRecorder{
		collection: db.Collection("delivery_journal"),
		logger:     log,
	}
}

func (r *MongoRecorder) Record(ctx context.Context, entry Entry) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(writeCtx, entry); err != nil {
		r.logger.WarnwCtx(ctx, "Failed to record delivery outcome",
			"error", err,
			"event_family", entry.EventFamily,
			"outcome", entry.Outcome,
		)
	}
}

// NopRecorder discards entries. Used when MongoDB is not configured.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entry Entry) {}
