package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LoginStatus is the outcome of an authentication attempt as reported by the
// authentication provider.
type LoginStatus string

const (
	LoginStatusSuccess     LoginStatus = "success"
	LoginStatusFailed      LoginStatus = "failed"
	LoginStatusMFARequired LoginStatus = "mfa_required"
)

// Valid reports whether s is a known login status.
func (s LoginStatus) Valid() bool {
	switch s {
	case LoginStatusSuccess, LoginStatusFailed, LoginStatusMFARequired:
		return true
	}
	return false
}

// DeviceInfo holds the raw client signals captured with an attempt or device
type DeviceInfo map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (di *DeviceInfo) Scan(value interface{}) error {
	if value == nil {
		*di = make(DeviceInfo)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrValidation
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*di = DeviceInfo(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (di DeviceInfo) Value() (driver.Value, error) {
	if di == nil {
		return nil, nil
	}
	return json.Marshal(di)
}

// LoginAttempt is a single entry in the login history ledger. Rows are
// immutable once written: risk_score and is_suspicious are computed exactly
// once at append time and never updated.
type LoginAttempt struct {
	ID                uuid.UUID   `db:"id"`
	AccountID         uuid.UUID   `db:"account_id"`
	CreatedAt         time.Time   `db:"created_at"`
	IPAddress         string      `db:"ip_address"`
	Country           *string     `db:"country"`
	City              *string     `db:"city"`
	ISP               *string     `db:"isp"`
	Latitude          *float64    `db:"latitude"`
	Longitude         *float64    `db:"longitude"`
	Browser           string      `db:"browser"`
	OS                string      `db:"os"`
	DeviceClass       string      `db:"device_class"`
	DeviceFingerprint string      `db:"device_fingerprint"`
	DeviceInfo        DeviceInfo  `db:"device_info"`
	RiskScore         int         `db:"risk_score"`
	IsSuspicious      bool        `db:"is_suspicious"`
	Status            LoginStatus `db:"status"`
}

// HasCoordinates reports whether the attempt carries an IP-geolocated point.
func (a *LoginAttempt) HasCoordinates() bool {
	return a.Latitude != nil && a.Longitude != nil
}

// RiskTrendPoint is one day in the rolling risk trend aggregation.
type RiskTrendPoint struct {
	Day         time.Time `db:"day"`
	AverageRisk int       `db:"average_risk"`
	Attempts    int       `db:"attempts"`
}

// AccountSummary aggregates ledger and alert totals for the dashboard header.
type AccountSummary struct {
	LoginsLast30Days int `db:"logins_last_30_days"`
	SuspiciousLast30 int `db:"suspicious_last_30"`
	UnreadAlerts     int `db:"unread_alerts"`
	TrustedDevices   int `db:"trusted_devices"`
}
