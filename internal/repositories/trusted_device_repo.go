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

// TrustedDeviceRepository owns the trusted-device rows backing the session
// trust store.
type TrustedDeviceRepository struct {
	db *database.DB
}

func NewTrustedDeviceRepository(db *database.DB) *TrustedDeviceRepository {
	return &TrustedDeviceRepository{db: db}
}

const trustedDeviceColumns = `id, account_id, device_fingerprint, display_name, device_info,
	is_trusted, created_at, last_used_at`

func scanTrustedDevice(scanner rowScanner) (*models.TrustedDevice, error) {
	var d models.TrustedDevice

	err := scanner.Scan(
		&d.ID, &d.AccountID, &d.DeviceFingerprint, &d.DisplayName, &d.DeviceInfo,
		&d.IsTrusted, &d.CreatedAt, &d.LastUsedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &d, nil
}

func (r *TrustedDeviceRepository) Lookup(ctx context.Context, accountID uuid.UUID, fingerprint string) (*models.TrustedDevice, error) {
	query := `
		SELECT ` + trustedDeviceColumns + `
		FROM trusted_devices
		WHERE account_id = $1 AND device_fingerprint = $2
	`

	return scanTrustedDevice(r.db.Pool.QueryRow(ctx, query, accountID, fingerprint))
}

func (r *TrustedDeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error) {
	query := `SELECT ` + trustedDeviceColumns + ` FROM trusted_devices WHERE id = $1`
	return scanTrustedDevice(r.db.Pool.QueryRow(ctx, query, id))
}

// Upsert creates the row if absent, otherwise advances last_used_at to the
// greater of the stored value and the supplied one and fills display_name
// only when previously unset. The single-statement conditional upsert is what
// keeps concurrent logins from the same device from duplicating the row or
// losing a last_used_at advance.
func (r *TrustedDeviceRepository) Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
	query := `
		INSERT INTO trusted_devices (id, account_id, device_fingerprint, display_name, device_info,
			is_trusted, created_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id, device_fingerprint) DO UPDATE SET
			last_used_at = GREATEST(trusted_devices.last_used_at, EXCLUDED.last_used_at),
			display_name = COALESCE(trusted_devices.display_name, EXCLUDED.display_name),
			device_info  = COALESCE(trusted_devices.device_info, EXCLUDED.device_info)
		RETURNING ` + trustedDeviceColumns

	now := time.Now().UTC()
	id := uuid.New()

	stored, err := scanTrustedDevice(r.db.Pool.QueryRow(ctx, query,
		id, device.AccountID, device.DeviceFingerprint, device.DisplayName, device.DeviceInfo,
		device.IsTrusted, now, device.LastUsedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert trusted device: %w", err)
	}

	return stored, nil
}

// Promote marks the device trusted. The device must have been seen at least
// once; otherwise ErrNotFound.
func (r *TrustedDeviceRepository) Promote(ctx context.Context, accountID uuid.UUID, fingerprint string) (*models.TrustedDevice, error) {
	query := `
		UPDATE trusted_devices
		SET is_trusted = true
		WHERE account_id = $1 AND device_fingerprint = $2
		RETURNING ` + trustedDeviceColumns

	return scanTrustedDevice(r.db.Pool.QueryRow(ctx, query, accountID, fingerprint))
}

// Revoke deletes the device row, scoped to the owning account.
func (r *TrustedDeviceRepository) Revoke(ctx context.Context, accountID, deviceID uuid.UUID) error {
	query := `DELETE FROM trusted_devices WHERE id = $1 AND account_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, deviceID, accountID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// ListTrusted returns the account's trusted devices, most recently used
// first.
func (r *TrustedDeviceRepository) ListTrusted(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error) {
	query := `
		SELECT ` + trustedDeviceColumns + `
		FROM trusted_devices
		WHERE account_id = $1 AND is_trusted = true
		ORDER BY last_used_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return scanTrustedDevices(rows)
}

// CountTrusted returns how many trusted devices the account has.
func (r *TrustedDeviceRepository) CountTrusted(ctx context.Context, accountID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM trusted_devices WHERE account_id = $1 AND is_trusted = true`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// DeleteStaleUntrusted removes never-promoted device rows unused since the
// cutoff. Trusted rows are never touched.
func (r *TrustedDeviceRepository) DeleteStaleUntrusted(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM trusted_devices WHERE is_trusted = false AND last_used_at < $1`

	tag, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return tag.RowsAffected(), nil
}

func scanTrustedDevices(rows pgx.Rows) ([]*models.TrustedDevice, error) {
	defer rows.Close()

	devices := make([]*models.TrustedDevice, 0)

	for rows.Next() {
		device, err := scanTrustedDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trusted device: %w", err)
		}
		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, database.MapPostgresError(err)
	}

	return devices, nil
}
