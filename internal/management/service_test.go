package management

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/logger"
	"relay/internal/tenant"
	pkgerrors "relay/pkg/errors"
)

type memStore struct {
	tenant.Store

	configs       map[string]*tenant.Config
	activateCalls []string
	nextID        int
}

func newMemStore() *memStore {
	return &memStore{configs: map[string]*tenant.Config{}}
}

func (m *memStore) Create(ctx context.Context, cfg *tenant.Config) error {
	if cfg.ID == "" {
		m.nextID++
		cfg.ID = "generated-id-" + strconv.Itoa(m.nextID)
	}
	cfg.Version = 1
	cfg.CreatedAt = time.Now().UTC()
	cfg.UpdatedAt = cfg.CreatedAt
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *memStore) LoadByID(ctx context.Context, id string) (*tenant.Config, error) {
	cfg, ok := m.configs[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	cp := *cfg
	return &cp, nil
}

func (m *memStore) List(ctx context.Context) ([]tenant.Config, error) {
	var out []tenant.Config
	for _, cfg := range m.configs {
		out = append(out, *cfg)
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, cfg *tenant.Config) error {
	existing, ok := m.configs[cfg.ID]
	if !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", cfg.ID)
	}
	cfg.Version = existing.Version + 1
	cfg.AccessToken = nil
	cfg.TokenExpiry = nil
	cfg.UpdatedAt = time.Now().UTC()
	cp := *cfg
	m.configs[cfg.ID] = &cp
	return nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.configs[id]; !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	delete(m.configs, id)
	return nil
}

func (m *memStore) Activate(ctx context.Context, id string) error {
	if _, ok := m.configs[id]; !ok {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	m.activateCalls = append(m.activateCalls, id)
	for cfgID, cfg := range m.configs {
		cfg.IsActive = cfgID == id
	}
	return nil
}

func newTestService(store tenant.Store) Service {
	return NewService(store, nil, logger.NopLogger())
}

func validCreateRequest() CreateConfigRequest {
	return CreateConfigRequest{
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		WebhookURL:   "https://hooks.example.com/in",
		IsActive:     true,
		EventTypes:   []string{"order.created", "cart.updated"},
	}
}

func TestCreateConfig(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	resp, err := svc.CreateConfig(context.Background(), validCreateRequest(), "admin", "10.0.0.1")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.True(t, resp.ClientSecretSet)
	assert.Equal(t, defaultAbandonedCartThreshold, resp.AbandonedCartThreshold)
	assert.Equal(t, []string{resp.ID}, store.activateCalls, "active create must enforce the single-active invariant")

	// the secret never appears in the serialized response
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")
}

func TestCreateConfigValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	tests := []struct {
		name   string
		mutate func(*CreateConfigRequest)
	}{
		{"missing client_id", func(r *CreateConfigRequest) { r.ClientID = "" }},
		{"missing client_secret", func(r *CreateConfigRequest) { r.ClientSecret = "" }},
		{"no event types", func(r *CreateConfigRequest) { r.EventTypes = nil }},
		{"blank event types", func(r *CreateConfigRequest) { r.EventTypes = []string{"  ", ""} }},
		{"negative threshold", func(r *CreateConfigRequest) { r.AbandonedCartThreshold = -5 }},
		{"relative webhook url", func(r *CreateConfigRequest) { r.WebhookURL = "/not-absolute" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := svc.CreateConfig(context.Background(), req, "admin", "")
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestUpdateConfigKeepsSecretWhenBlank(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	created, err := svc.CreateConfig(context.Background(), validCreateRequest(), "admin", "")
	require.NoError(t, err)

	update := UpdateConfigRequest{
		ClientID:   "client-1",
		WebhookURL: "https://hooks.example.com/v2",
		EventTypes: []string{"order.created"},
	}
	resp, err := svc.UpdateConfig(context.Background(), created.ID, update, "admin", "")
	require.NoError(t, err)

	assert.True(t, resp.ClientSecretSet)
	assert.Equal(t, "https://hooks.example.com/v2", resp.WebhookURL)
	assert.Equal(t, "s3cret", store.configs[created.ID].ClientSecret)
}

func TestUpdateConfigInvalidatesToken(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	created, err := svc.CreateConfig(context.Background(), validCreateRequest(), "admin", "")
	require.NoError(t, err)

	token := "tok"
	expiry := time.Now().Add(time.Hour)
	store.configs[created.ID].AccessToken = &token
	store.configs[created.ID].TokenExpiry = &expiry

	update := UpdateConfigRequest{
		ClientID:     "client-2",
		ClientSecret: "new-secret",
		EventTypes:   []string{"order.created"},
	}
	resp, err := svc.UpdateConfig(context.Background(), created.ID, update, "admin", "")
	require.NoError(t, err)

	assert.False(t, resp.HasToken, "credential change must drop the cached token")
	assert.Nil(t, store.configs[created.ID].AccessToken)
}

func TestActivateConfig(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	first, err := svc.CreateConfig(context.Background(), validCreateRequest(), "admin", "")
	require.NoError(t, err)

	req := validCreateRequest()
	req.ClientID = "client-2"
	req.IsActive = false
	second, err := svc.CreateConfig(context.Background(), req, "admin", "")
	require.NoError(t, err)

	resp, err := svc.ActivateConfig(context.Background(), second.ID, "admin", "")
	require.NoError(t, err)

	assert.True(t, resp.IsActive)
	assert.False(t, store.configs[first.ID].IsActive)
}

func TestGetConfigNotFound(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.GetConfig(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
