package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/secureauth/sentinel/internal/database"
	"github.com/secureauth/sentinel/internal/models"
)

// LoginAttemptRepository owns the login history ledger. Rows are append-only:
// no update or delete statement exists here by design.
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

const loginAttemptColumns = `id, account_id, created_at, ip_address, country, city, isp,
	latitude, longitude, browser, os, device_class, device_fingerprint, device_info,
	risk_score, is_suspicious, status`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoginAttempt(scanner rowScanner) (*models.LoginAttempt, error) {
	var a models.LoginAttempt
	var status string

	err := scanner.Scan(
		&a.ID, &a.AccountID, &a.CreatedAt, &a.IPAddress, &a.Country, &a.City, &a.ISP,
		&a.Latitude, &a.Longitude, &a.Browser, &a.OS, &a.DeviceClass, &a.DeviceFingerprint, &a.DeviceInfo,
		&a.RiskScore, &a.IsSuspicious, &status,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	a.Status = models.LoginStatus(status)
	return &a, nil
}

func scanLoginAttempts(rows pgx.Rows) ([]*models.LoginAttempt, error) {
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)

	for rows.Next() {
		attempt, err := scanLoginAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return attempts, nil
}

// Append assigns an id and server timestamp, persists the attempt atomically
// and returns the stored immutable record.
func (r *LoginAttemptRepository) Append(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	attempt.ID = uuid.New()
	attempt.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO login_attempts (id, account_id, created_at, ip_address, country, city, isp,
			latitude, longitude, browser, os, device_class, device_fingerprint, device_info,
			risk_score, is_suspicious, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + loginAttemptColumns

	stored, err := scanLoginAttempt(r.db.Pool.QueryRow(ctx, query,
		attempt.ID, attempt.AccountID, attempt.CreatedAt, attempt.IPAddress,
		attempt.Country, attempt.City, attempt.ISP,
		attempt.Latitude, attempt.Longitude,
		attempt.Browser, attempt.OS, attempt.DeviceClass, attempt.DeviceFingerprint, attempt.DeviceInfo,
		attempt.RiskScore, attempt.IsSuspicious, string(attempt.Status),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to append login attempt: %w", err)
	}

	return stored, nil
}

func (r *LoginAttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LoginAttempt, error) {
	query := `SELECT ` + loginAttemptColumns + ` FROM login_attempts WHERE id = $1`
	return scanLoginAttempt(r.db.Pool.QueryRow(ctx, query, id))
}

// ListRecent returns the account's most recent attempts, newest first.
func (r *LoginAttemptRepository) ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanLoginAttempts(rows)
}

// RecentCounts returns total and failed attempt counts over the trailing
// window: the account's last maxAttempts attempts, restricted to those at or
// after since.
func (r *LoginAttemptRepository) RecentCounts(ctx context.Context, accountID uuid.UUID, since time.Time, maxAttempts int) (total, failed int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'failed')
		FROM (
			SELECT status FROM login_attempts
			WHERE account_id = $1 AND created_at >= $2
			ORDER BY created_at DESC
			LIMIT $3
		) recent
	`

	if err := r.db.Pool.QueryRow(ctx, query, accountID, since, maxAttempts).Scan(&total, &failed); err != nil {
		return 0, 0, database.MapPostgresError(err)
	}

	return total, failed, nil
}

// FailedCountSince counts failed attempts for the account at or after since.
func (r *LoginAttemptRepository) FailedCountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = $1 AND status = 'failed' AND created_at >= $2
	`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, accountID, since).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// LastGeolocated returns the account's most recent attempt that carries
// coordinates, or ErrNotFound.
func (r *LoginAttemptRepository) LastGeolocated(ctx context.Context, accountID uuid.UUID) (*models.LoginAttempt, error) {
	query := `
		SELECT ` + loginAttemptColumns + `
		FROM login_attempts
		WHERE account_id = $1 AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanLoginAttempt(r.db.Pool.QueryRow(ctx, query, accountID))
}

// HomeCountry returns the most frequent country over the account's last
// lastN successful logins; empty string when there is no geolocated history.
func (r *LoginAttemptRepository) HomeCountry(ctx context.Context, accountID uuid.UUID, lastN int) (string, error) {
	query := `
		SELECT country FROM (
			SELECT country FROM login_attempts
			WHERE account_id = $1 AND status = 'success' AND country IS NOT NULL
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		GROUP BY country
		ORDER BY COUNT(*) DESC, country ASC
		LIMIT 1
	`

	var country string
	err := r.db.Pool.QueryRow(ctx, query, accountID, lastN).Scan(&country)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", database.MapPostgresError(err)
	}

	return country, nil
}

// KnownCountries returns every country the account has successfully logged
// in from.
func (r *LoginAttemptRepository) KnownCountries(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT country FROM login_attempts
		WHERE account_id = $1 AND status = 'success' AND country IS NOT NULL
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	countries := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, database.MapPostgresError(err)
		}
		countries = append(countries, c)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return countries, nil
}

// DailyRiskAverages groups the account's attempts from the last `days`
// calendar days in tz, averaging risk_score per day. Days without attempts
// are simply absent. Oldest day first.
func (r *LoginAttemptRepository) DailyRiskAverages(ctx context.Context, accountID uuid.UUID, days int, tz string) ([]models.RiskTrendPoint, error) {
	query := `
		SELECT (created_at AT TIME ZONE $3)::date AS day,
		       ROUND(AVG(risk_score))::int AS average_risk,
		       COUNT(*) AS attempts
		FROM login_attempts
		WHERE account_id = $1 AND created_at >= $2
		GROUP BY day
		ORDER BY day ASC
	`

	// Start at midnight of the oldest included calendar day so the window
	// covers exactly `days` distinct dates including today. A raw now-days
	// cutoff would catch the tail of one extra day.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := r.db.Pool.Query(ctx, query, accountID, since, tz)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	points := make([]models.RiskTrendPoint, 0)
	for rows.Next() {
		var p models.RiskTrendPoint
		if err := rows.Scan(&p.Day, &p.AverageRisk, &p.Attempts); err != nil {
			return nil, database.MapPostgresError(err)
		}
		points = append(points, p)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return points, nil
}

// SummaryCounts returns attempt totals for the account since the given time.
func (r *LoginAttemptRepository) SummaryCounts(ctx context.Context, accountID uuid.UUID, since time.Time) (total, suspicious int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_suspicious)
		FROM login_attempts
		WHERE account_id = $1 AND created_at >= $2
	`

	if err := r.db.Pool.QueryRow(ctx, query, accountID, since).Scan(&total, &suspicious); err != nil {
		return 0, 0, database.MapPostgresError(err)
	}

	return total, suspicious, nil
}
