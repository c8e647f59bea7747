package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType   string
	AccountID   string
	IPAddress   string
	Fingerprint string
	RiskScore   int
	Suspicious  bool
	AlertType   string
	Metadata    map[string]string
}

// AuditLogger emits structured security audit events
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogAttemptScored logs the outcome of a scored authentication attempt.
// Suspicious attempts log at warn so they stand out in aggregation.
func (al *AuditLogger) LogAttemptScored(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login_attempt"),
		slog.String("event_type", event.EventType),
		slog.String("account_id", event.AccountID),
		slog.Int("risk_score", event.RiskScore),
		slog.Bool("suspicious", event.Suspicious),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Fingerprint != "" {
		attrs = append(attrs, slog.String("device_fingerprint", event.Fingerprint))
	}

	level := slog.LevelInfo
	if event.Suspicious {
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAlertRaised logs a newly created security alert
func (al *AuditLogger) LogAlertRaised(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "security_alert"),
		slog.String("alert_type", event.AlertType),
		slog.String("account_id", event.AccountID),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	for k, v := range event.Metadata {
		attrs = append(attrs, slog.String(k, v))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
}

// LogTrustChange logs trust-store promotions and revocations
func (al *AuditLogger) LogTrustChange(eventType, accountID, fingerprint string) {
	al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit",
		slog.String("audit_type", "device_trust"),
		slog.String("event_type", eventType),
		slog.String("account_id", accountID),
		slog.String("device_fingerprint", fingerprint),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
