package management

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditLogger struct {
	db *sql.DB
}

func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db}
}

type AuditLogEntry struct {
	ID           string
	ConfigID     string
	Action       string
	OldValue     interface{}
	NewValue     interface{}
	ChangedBy    string
	ChangeReason string
	IPAddress    string
	Timestamp    time.Time
}

func (a *AuditLogger) LogConfigChange(ctx context.Context, entry AuditLogEntry) error {
	query := `
		INSERT INTO config_audit_logs (id, config_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	id := uuid.New().String()
	if entry.ID != "" {
		id = entry.ID
	}

	oldValueJSON, _ := json.Marshal(entry.OldValue)
	newValueJSON, _ := json.Marshal(entry.NewValue)

	var configID *string
	if entry.ConfigID != "" {
		configID = &entry.ConfigID
	}

	var ipAddress *string
	if entry.IPAddress != "" {
		ipAddress = &entry.IPAddress
	}

	var changeReason *string
	if entry.ChangeReason != "" {
		changeReason = &entry.ChangeReason
	}

	timestamp := time.Now()
	if !entry.Timestamp.IsZero() {
		timestamp = entry.Timestamp
	}

	_, err := a.db.ExecContext(ctx, query,
		id, configID, entry.Action,
		oldValueJSON, newValueJSON,
		entry.ChangedBy, changeReason, ipAddress, timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	return nil
}

func (a *AuditLogger) GetAuditLogs(ctx context.Context, configID *string, limit int) ([]AuditLog, error) {
	query := `
		SELECT id, config_id, action, old_value, new_value, changed_by, change_reason, ip_address, timestamp
		FROM config_audit_logs
	`
	args := []interface{}{}
	if configID != nil {
		query += ` WHERE config_id = $1`
		args = append(args, *configID)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var cfgID, changeReason, ipAddress sql.NullString
		var oldValue, newValue []byte

		if err := rows.Scan(
			&log.ID, &cfgID, &log.Action,
			&oldValue, &newValue,
			&log.ChangedBy, &changeReason, &ipAddress, &log.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}

		log.ConfigID = cfgID.String
		log.ChangeReason = changeReason.String
		log.IPAddress = ipAddress.String
		if len(oldValue) > 0 {
			_ = json.Unmarshal(oldValue, &log.OldValue)
		}
		if len(newValue) > 0 {
			_ = json.Unmarshal(newValue, &log.NewValue)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
