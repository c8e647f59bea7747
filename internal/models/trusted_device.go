package models

import (
	"time"

	"github.com/google/uuid"
)

// TrustedDevice is a device fingerprint an account has been seen with.
// At most one row exists per (account_id, device_fingerprint); last_used_at
// only advances, and only on successful authentication.
type TrustedDevice struct {
	ID                uuid.UUID  `db:"id"`
	AccountID         uuid.UUID  `db:"account_id"`
	DeviceFingerprint string     `db:"device_fingerprint"`
	DisplayName       *string    `db:"display_name"`
	DeviceInfo        DeviceInfo `db:"device_info"`
	IsTrusted         bool       `db:"is_trusted"`
	CreatedAt         time.Time  `db:"created_at"`
	LastUsedAt        time.Time  `db:"last_used_at"`
}
