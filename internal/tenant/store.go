package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "relay/pkg/errors"
)

// Store persists tenant configurations.
type Store interface {
	LoadActive(ctx context.Context) (*Config, error)
	LoadByID(ctx context.Context, id string) (*Config, error)
	List(ctx context.Context) ([]Config, error)
	Create(ctx context.Context, cfg *Config) error
	Update(ctx context.Context, cfg *Config) error
	Delete(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	UpdateToken(ctx context.Context, id string, version int64, token string, expiry time.Time) (int64, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const configColumns = `id, client_id, client_secret, access_token, token_expiry,
	webhook_url, is_active, event_types, abandoned_cart_threshold, version,
	created_at, updated_at`

// LoadActive returns the single active configuration. Zero active rows is a
// hard configuration error. If more than one row is active the most recently
// updated one wins, deterministically.
func (s *PostgresStore) LoadActive(ctx context.Context) (*Config, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM webhook_configs
		WHERE is_active = true
		ORDER BY updated_at DESC
		LIMIT 1
	`, configColumns)

	cfg, err := s.scanOne(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrConfig.WithMessage("no active webhook configuration")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) LoadByID(ctx context.Context, id string) (*Config, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_configs WHERE id = $1`, configColumns)

	cfg, err := s.scanOne(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Config, error) {
	query := fmt.Sprintf(`SELECT %s FROM webhook_configs ORDER BY created_at DESC`, configColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	defer rows.Close()

	var configs []Config
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		configs = append(configs, *cfg)
	}

	return configs, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, cfg *Config) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	cfg.Version = 1

	query := `
		INSERT INTO webhook_configs
			(id, client_id, client_secret, access_token, token_expiry,
			 webhook_url, is_active, event_types, abandoned_cart_threshold, version,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		cfg.ID, cfg.ClientID, cfg.ClientSecret, cfg.AccessToken, cfg.TokenExpiry,
		cfg.WebhookURL, cfg.IsActive, joinEventTypes(cfg.EventTypes),
		cfg.AbandonedCartThreshold, cfg.Version, cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("config for client_id '%s' already exists", cfg.ClientID))
		}
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint") {
			return pkgerrors.ErrConflict.WithCause(err).
				WithDetail("message", fmt.Sprintf("config for client_id '%s' already exists", cfg.ClientID))
		}
		return fmt.Errorf("failed to create config: %w", err)
	}

	return nil
}

// Update replaces the editable fields and invalidates the cached token when
// the credentials changed, forcing the next delivery to fetch a fresh one.
func (s *PostgresStore) Update(ctx context.Context, cfg *Config) error {
	cfg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE webhook_configs
		SET client_id = $1,
		    client_secret = $2,
		    webhook_url = $3,
		    is_active = $4,
		    event_types = $5,
		    abandoned_cart_threshold = $6,
		    access_token = NULL,
		    token_expiry = NULL,
		    version = version + 1,
		    updated_at = $7
		WHERE id = $8
	`

	res, err := s.db.ExecContext(ctx, query,
		cfg.ClientID, cfg.ClientSecret, cfg.WebhookURL, cfg.IsActive,
		joinEventTypes(cfg.EventTypes), cfg.AbandonedCartThreshold,
		cfg.UpdatedAt, cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", cfg.ID)
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_configs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	return nil
}

// Activate marks one configuration active and deactivates the rest in the
// same transaction, preserving the single-active invariant.
func (s *PostgresStore) Activate(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE webhook_configs SET is_active = false, updated_at = $1 WHERE is_active = true AND id <> $2`,
		now, id,
	); err != nil {
		return fmt.Errorf("failed to deactivate configs: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE webhook_configs SET is_active = true, updated_at = $1 WHERE id = $2`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to activate config: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	return tx.Commit()
}

// UpdateToken persists a refreshed token guarded by the row version. A zero
// row count means another writer refreshed first; the caller re-reads and
// uses the winner's token instead of overwriting it.
func (s *PostgresStore) UpdateToken(ctx context.Context, id string, version int64, token string, expiry time.Time) (int64, error) {
	query := `
		UPDATE webhook_configs
		SET access_token = $1,
		    token_expiry = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4 AND version = $5
	`

	res, err := s.db.ExecContext(ctx, query, token, expiry.UTC(), time.Now().UTC(), id, version)
	if err != nil {
		return 0, fmt.Errorf("failed to persist token: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, pkgerrors.ErrConflict.WithDetail("id", id).
			WithDetail("message", "config version changed during token refresh")
	}

	return version + 1, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Config, error) {
	return scanConfig(row)
}

func scanConfig(row rowScanner) (*Config, error) {
	var cfg Config
	var eventTypes string
	var accessToken sql.NullString
	var tokenExpiry sql.NullTime

	err := row.Scan(
		&cfg.ID, &cfg.ClientID, &cfg.ClientSecret, &accessToken, &tokenExpiry,
		&cfg.WebhookURL, &cfg.IsActive, &eventTypes, &cfg.AbandonedCartThreshold,
		&cfg.Version, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accessToken.Valid {
		cfg.AccessToken = &accessToken.String
	}
	if tokenExpiry.Valid {
		t := tokenExpiry.Time
		cfg.TokenExpiry = &t
	}
	cfg.EventTypes = splitEventTypes(eventTypes)

	return &cfg, nil
}
