package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secureauth/sentinel/internal/database"
	"github.com/secureauth/sentinel/internal/models"
)

// SecurityAlertRepository owns security alert rows. Alerts are created only
// through CreateIfAbsent; the only permitted mutation afterwards is marking
// them read.
type SecurityAlertRepository struct {
	db *database.DB
}

func NewSecurityAlertRepository(db *database.DB) *SecurityAlertRepository {
	return &SecurityAlertRepository{db: db}
}

const securityAlertColumns = `id, account_id, alert_type, severity, message, metadata,
	dedup_key, is_read, created_at`

func scanSecurityAlert(scanner rowScanner) (*models.SecurityAlert, error) {
	var a models.SecurityAlert
	var severity string

	err := scanner.Scan(
		&a.ID, &a.AccountID, &a.AlertType, &severity, &a.Message, &a.Metadata,
		&a.DedupKey, &a.IsRead, &a.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.Severity = models.AlertSeverity(severity)
	return &a, nil
}

// CreateIfAbsent inserts the alert unless one with the same dedup key already
// exists. The unique constraint on dedup_key makes the check-and-create
// atomic under concurrent triggers: the loser of the race gets the winner's
// row back with created=false.
func (r *SecurityAlertRepository) CreateIfAbsent(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, bool, error) {
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO security_alerts (id, account_id, alert_type, severity, message, metadata,
			dedup_key, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		RETURNING ` + securityAlertColumns

	stored, err := scanSecurityAlert(r.db.Pool.QueryRow(ctx, query,
		alert.ID, alert.AccountID, alert.AlertType, string(alert.Severity),
		alert.Message, alert.Metadata, alert.DedupKey, alert.CreatedAt,
	))
	if err == nil {
		return stored, true, nil
	}

	if !errors.Is(err, models.ErrConflict) {
		return nil, false, fmt.Errorf("failed to create security alert: %w", err)
	}

	existing, lookupErr := r.getByDedupKey(ctx, alert.DedupKey)
	if lookupErr != nil {
		return nil, false, fmt.Errorf("failed to load deduplicated alert: %w", lookupErr)
	}

	return existing, false, nil
}

func (r *SecurityAlertRepository) getByDedupKey(ctx context.Context, dedupKey string) (*models.SecurityAlert, error) {
	query := `SELECT ` + securityAlertColumns + ` FROM security_alerts WHERE dedup_key = $1`
	return scanSecurityAlert(r.db.Pool.QueryRow(ctx, query, dedupKey))
}

// List returns the account's alerts, newest first.
func (r *SecurityAlertRepository) List(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*models.SecurityAlert, error) {
	query := `
		SELECT ` + securityAlertColumns + `
		FROM security_alerts
		WHERE account_id = $1 AND ($2 = false OR is_read = false)
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, unreadOnly, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	alerts := make([]*models.SecurityAlert, 0)
	for rows.Next() {
		alert, err := scanSecurityAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return alerts, nil
}

// MarkRead flips is_read for the account's alert. ErrNotFound when the alert
// does not exist or belongs to another account.
func (r *SecurityAlertRepository) MarkRead(ctx context.Context, accountID, alertID uuid.UUID) error {
	query := `UPDATE security_alerts SET is_read = true WHERE id = $1 AND account_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, alertID, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CountUnread returns the number of unread alerts for the account.
func (r *SecurityAlertRepository) CountUnread(ctx context.Context, accountID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM security_alerts WHERE account_id = $1 AND is_read = false`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(&count)
	if err != nil && err != pgx.ErrNoRows {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
