package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Alert types raised by the dispatcher
const (
	AlertTypeBruteForceSuspected = "brute_force_suspected"
	AlertTypeNewDeviceHighRisk   = "new_device_high_risk"
	AlertTypeRiskyLogin          = "risky_login"
)

// AlertSeverity classifies how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// AlertMetadata holds additional context for a security alert
type AlertMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AlertMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AlertMetadata)
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
	*am = AlertMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AlertMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}

// SecurityAlert is created only by the alert dispatcher. Users may mark it
// read; nothing else mutates it. DedupKey is unique and encodes
// (account, alert type, cool-down bucket) so concurrent triggers cannot
// create duplicates within a cool-down window.
type SecurityAlert struct {
	ID        uuid.UUID     `db:"id"`
	AccountID uuid.UUID     `db:"account_id"`
	AlertType string        `db:"alert_type"`
	Severity  AlertSeverity `db:"severity"`
	Message   string        `db:"message"`
	Metadata  AlertMetadata `db:"metadata"`
	DedupKey  string        `db:"dedup_key"`
	IsRead    bool          `db:"is_read"`
	CreatedAt time.Time     `db:"created_at"`
}
