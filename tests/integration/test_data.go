package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/secureauth/sentinel/internal/models"
)

// SeedAttempt inserts a ledger row directly, bypassing the scoring pipeline.
// Used to build up history for repository and aggregation tests.
func SeedAttempt(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID, at time.Time, status models.LoginStatus, country string, riskScore int, suspicious bool) (uuid.UUID, error) {
	id := uuid.New()

	var countryPtr *string
	if country != "" {
		countryPtr = &country
	}

	query := `
		INSERT INTO login_attempts (id, account_id, created_at, ip_address, country,
			browser, os, device_class, device_fingerprint, risk_score, is_suspicious, status)
		VALUES ($1, $2, $3, '203.0.113.10', $4, 'Chrome', 'macOS', 'desktop', $5, $6, $7, $8)
	`

	fingerprint := fmt.Sprintf("seed-fp-%s", accountID)

	_, err := pool.Exec(ctx, query, id, accountID, at, countryPtr, fingerprint, riskScore, suspicious, string(status))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed attempt: %w", err)
	}

	return id, nil
}

// SeedGeolocatedAttempt inserts a ledger row with coordinates, for velocity
// scenarios.
func SeedGeolocatedAttempt(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID, at time.Time, country string, lat, lon float64) (uuid.UUID, error) {
	id := uuid.New()

	query := `
		INSERT INTO login_attempts (id, account_id, created_at, ip_address, country,
			latitude, longitude, browser, os, device_class, device_fingerprint,
			risk_score, is_suspicious, status)
		VALUES ($1, $2, $3, '203.0.113.10', $4, $5, $6, 'Chrome', 'macOS', 'desktop', $7, 10, false, 'success')
	`

	fingerprint := fmt.Sprintf("seed-fp-%s", accountID)

	_, err := pool.Exec(ctx, query, id, accountID, at, country, lat, lon, fingerprint)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed geolocated attempt: %w", err)
	}

	return id, nil
}

// SeedTrustedDevice inserts a device row in the given trust state.
func SeedTrustedDevice(ctx context.Context, pool *pgxpool.Pool, accountID uuid.UUID, fingerprint string, trusted bool, lastUsedAt time.Time) (uuid.UUID, error) {
	id := uuid.New()

	query := `
		INSERT INTO trusted_devices (id, account_id, device_fingerprint, display_name,
			is_trusted, created_at, last_used_at)
		VALUES ($1, $2, $3, 'Chrome on macOS', $4, $5, $5)
	`

	_, err := pool.Exec(ctx, query, id, accountID, fingerprint, trusted, lastUsedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to seed trusted device: %w", err)
	}

	return id, nil
}
