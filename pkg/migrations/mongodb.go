package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureJournalIndexes creates the indexes the delivery journal is queried
// by: recency, per-config history, and failure triage.
func EnsureJournalIndexes(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection("delivery_journal")

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recorded_at", Value: -1}},
			Options: options.Index().SetName("idx_delivery_journal_recorded_at"),
		},
		{
			Keys:    bson.D{{Key: "config_id", Value: 1}, {Key: "recorded_at", Value: -1}},
			Options: options.Index().SetName("idx_delivery_journal_config_recorded_at"),
		},
		{
			Keys:    bson.D{{Key: "outcome", Value: 1}, {Key: "event_family", Value: 1}, {Key: "recorded_at", Value: -1}},
			Options: options.Index().SetName("idx_delivery_journal_outcome_family"),
		},
		{
			Keys:    bson.D{{Key: "entity_id", Value: 1}},
			Options: options.Index().SetName("idx_delivery_journal_entity_id"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create journal indexes: %w", err)
		}
	}

	return nil
}
