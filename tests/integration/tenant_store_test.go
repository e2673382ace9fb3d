package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/tenant"
	pkgerrors "relay/pkg/errors"
)

func newStoreConfig(clientID string) *tenant.Config {
	return &tenant.Config{
		ClientID:               clientID,
		ClientSecret:           "secret-" + clientID,
		WebhookURL:             "https://hooks.example.com/" + clientID,
		IsActive:               false,
		EventTypes:             []string{"order.created", "cart.updated"},
		AbandonedCartThreshold: 30,
	}
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	cfg := newStoreConfig("roundtrip")
	require.NoError(t, store.Create(ctx, cfg))
	require.NotEmpty(t, cfg.ID)
	assert.Equal(t, int64(1), cfg.Version)

	loaded, err := store.LoadByID(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, cfg.ClientID, loaded.ClientID)
	assert.Equal(t, cfg.ClientSecret, loaded.ClientSecret)
	assert.Equal(t, []string{"order.created", "cart.updated"}, loaded.EventTypes)
	assert.Nil(t, loaded.AccessToken)
	assert.Nil(t, loaded.TokenExpiry)
}

func TestPostgresStoreDuplicateClientID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newStoreConfig("dup")))

	err := store.Create(ctx, newStoreConfig("dup"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestPostgresStoreLoadActive(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	_, err := store.LoadActive(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConfig(err), "zero active rows is a config error")

	first := newStoreConfig("active-first")
	second := newStoreConfig("active-second")
	require.NoError(t, store.Create(ctx, first))
	require.NoError(t, store.Create(ctx, second))

	require.NoError(t, store.Activate(ctx, first.ID))
	active, err := store.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	// activating the second deactivates the first in the same transaction
	require.NoError(t, store.Activate(ctx, second.ID))
	active, err = store.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	old, err := store.LoadByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)
}

func TestPostgresStoreLoadActivePrefersLatest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	stale := newStoreConfig("stale")
	fresh := newStoreConfig("fresh")
	require.NoError(t, store.Create(ctx, stale))
	require.NoError(t, store.Create(ctx, fresh))

	// force both active with distinct update times, bypassing Activate
	_, err := infra.PostgresDB.ExecContext(ctx,
		`UPDATE webhook_configs SET is_active = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Hour), stale.ID)
	require.NoError(t, err)
	_, err = infra.PostgresDB.ExecContext(ctx,
		`UPDATE webhook_configs SET is_active = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), fresh.ID)
	require.NoError(t, err)

	active, err := store.LoadActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, active.ID, "most recently updated active row wins")
}

func TestPostgresStoreUpdateInvalidatesToken(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	cfg := newStoreConfig("token-invalidate")
	require.NoError(t, store.Create(ctx, cfg))

	_, err := store.UpdateToken(ctx, cfg.ID, cfg.Version, "tok-1", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	cfg.WebhookURL = "https://hooks.example.com/v2"
	require.NoError(t, store.Update(ctx, cfg))

	loaded, err := store.LoadByID(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.AccessToken, "credential update drops the cached token")
	assert.Nil(t, loaded.TokenExpiry)
	assert.Equal(t, int64(3), loaded.Version)
}

func TestPostgresStoreUpdateTokenVersionConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	infra := SetupTestInfraWithOptions(t, true, false, false)
	store := tenant.NewPostgresStore(infra.PostgresDB)
	ctx := context.Background()

	cfg := newStoreConfig("token-cas")
	require.NoError(t, store.Create(ctx, cfg))

	expiry := time.Now().UTC().Add(time.Hour)

	newVersion, err := store.UpdateToken(ctx, cfg.ID, cfg.Version, "winner-token", expiry)
	require.NoError(t, err)
	assert.Equal(t, cfg.Version+1, newVersion)

	// second writer still holds the old version and must lose
	_, err = store.UpdateToken(ctx, cfg.ID, cfg.Version, "loser-token", expiry)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	loaded, err := store.LoadByID(ctx, cfg.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.AccessToken)
	assert.Equal(t, "winner-token", *loaded.AccessToken)
}
