package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"relay/internal/journal"
	"relay/internal/logger"
	"relay/pkg/migrations"
)

func TestMongoJournalRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, true, false)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureJournalIndexes(ctx, infra.MongoDB))

	recorder := journal.NewMongoRecorder(infra.MongoDB, logger.NopLogger())

	recorder.Record(ctx, journal.Entry{
		EventFamily: "order",
		EventType:   "order.created",
		ConfigID:    "cfg-1",
		EntityID:    "order-42",
		Outcome:     journal.OutcomeDelivered,
		Attempts:    1,
		StatusCode:  201,
		DurationMS:  87,
	})

	var stored journal.Entry
	err := infra.MongoDB.Collection("delivery_journal").
		FindOne(ctx, bson.M{"entity_id": "order-42"}).
		Decode(&stored)
	require.NoError(t, err)

	assert.Equal(t, "order", stored.EventFamily)
	assert.Equal(t, journal.OutcomeDelivered, stored.Outcome)
	assert.Equal(t, 201, stored.StatusCode)
	assert.WithinDuration(t, time.Now().UTC(), stored.RecordedAt, time.Minute,
		"recorded_at is stamped when the entry omits it")
}

func TestMongoJournalIndexesIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, false, true, false)
	ctx := context.Background()

	require.NoError(t, migrations.EnsureJournalIndexes(ctx, infra.MongoDB))
	require.NoError(t, migrations.EnsureJournalIndexes(ctx, infra.MongoDB))
}
