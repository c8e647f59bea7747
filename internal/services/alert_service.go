package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/pkg/logger"
)

// SecurityAlertRepository defines the interface for alert database operations
type SecurityAlertRepository interface {
	CreateIfAbsent(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, bool, error)
	List(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*models.SecurityAlert, error)
	MarkRead(ctx context.Context, accountID, alertID uuid.UUID) error
	CountUnread(ctx context.Context, accountID uuid.UUID) (int, error)
}

// FailureCounter counts recent failed attempts for the brute-force rule.
type FailureCounter interface {
	FailedCountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
}

const notifyTimeout = 10 * time.Second

// AlertService evaluates scored attempts against the alert rules and
// persists at most one alert per (account, type, cool-down window).
type AlertService struct {
	repo     SecurityAlertRepository
	failures FailureCounter
	notifier Notifier
	cfg      config.AlertConfig
	audit    *logger.AuditLogger
	logger   *slog.Logger
}

func NewAlertService(repo SecurityAlertRepository, failures FailureCounter, notifier Notifier, cfg config.AlertConfig, audit *logger.AuditLogger, logger *slog.Logger) *AlertService {
	return &AlertService{
		repo:     repo,
		failures: failures,
		notifier: notifier,
		cfg:      cfg,
		audit:    audit,
		logger:   logger,
	}
}

// Evaluate runs the alert rules against a freshly appended attempt. Rules are
// checked in fixed priority order and at most one alert fires per attempt.
// Returns nil when no rule matched. When a duplicate is suppressed by the
// cool-down the existing alert is returned and no notification is sent.
func (s *AlertService) Evaluate(ctx context.Context, attempt *models.LoginAttempt, deviceWasNew bool) (*models.SecurityAlert, error) {
	candidate, err := s.matchRule(ctx, attempt, deviceWasNew)
	if err != nil {
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}

	candidate.DedupKey = dedupKey(attempt.AccountID, candidate.AlertType, attempt.CreatedAt, s.cfg.CooldownWindow)

	stored, created, err := s.repo.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}
	if !created {
		s.logger.Debug("alert suppressed by cooldown",
			slog.String("alert_type", candidate.AlertType),
			slog.String("account_id", attempt.AccountID.String()))
		return stored, nil
	}

	s.audit.LogAlertRaised(logger.AuditEvent{
		AlertType: stored.AlertType,
		AccountID: stored.AccountID.String(),
		Metadata: map[string]string{
			"severity":   string(stored.Severity),
			"attempt_id": attempt.ID.String(),
		},
	})

	s.notifyAsync(stored)

	return stored, nil
}

// matchRule returns the first matching rule's alert, unpersisted, or nil.
func (s *AlertService) matchRule(ctx context.Context, attempt *models.LoginAttempt, deviceWasNew bool) (*models.SecurityAlert, error) {
	if attempt.Status == models.LoginStatusFailed {
		since := attempt.CreatedAt.Add(-s.cfg.BruteForceWindow)
		failed, err := s.failures.FailedCountSince(ctx, attempt.AccountID, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count recent failures: %w", err)
		}

		if failed >= s.cfg.BruteForceThreshold {
			return &models.SecurityAlert{
				AccountID: attempt.AccountID,
				AlertType: models.AlertTypeBruteForceSuspected,
				Severity:  models.SeverityCritical,
				Message:   fmt.Sprintf("%d failed login attempts in the last %d minutes", failed, int(s.cfg.BruteForceWindow.Minutes())),
				Metadata: models.AlertMetadata{
					"failed_count": failed,
					"ip_address":   attempt.IPAddress,
				},
			}, nil
		}
	}

	if attempt.IsSuspicious && deviceWasNew {
		return &models.SecurityAlert{
			AccountID: attempt.AccountID,
			AlertType: models.AlertTypeNewDeviceHighRisk,
			Severity:  models.SeverityHigh,
			Message:   fmt.Sprintf("Suspicious login from an unrecognized device (risk score %d)", attempt.RiskScore),
			Metadata: models.AlertMetadata{
				"risk_score":  attempt.RiskScore,
				"fingerprint": attempt.DeviceFingerprint,
				"ip_address":  attempt.IPAddress,
			},
		}, nil
	}

	if attempt.IsSuspicious {
		return &models.SecurityAlert{
			AccountID: attempt.AccountID,
			AlertType: models.AlertTypeRiskyLogin,
			Severity:  models.SeverityMedium,
			Message:   fmt.Sprintf("Login flagged as risky (risk score %d)", attempt.RiskScore),
			Metadata: models.AlertMetadata{
				"risk_score": attempt.RiskScore,
				"ip_address": attempt.IPAddress,
			},
		}, nil
	}

	return nil, nil
}

// notifyAsync delivers the alert out of band. Delivery failures are logged
// and swallowed; the persisted alert is the source of truth and login
// processing never waits on email.
func (s *AlertService) notifyAsync(alert *models.SecurityAlert) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := s.notifier.Send(ctx, alert); err != nil {
			s.logger.Error("alert notification failed",
				slog.String("alert_type", alert.AlertType),
				slog.String("alert_id", alert.ID.String()),
				slog.Any("error", err))
		}
	}()
}

// ListAlerts returns the account's alerts, newest first.
func (s *AlertService) ListAlerts(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*models.SecurityAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, accountID, unreadOnly, limit)
}

// MarkAlertRead acknowledges a single alert for the account.
func (s *AlertService) MarkAlertRead(ctx context.Context, accountID, alertID uuid.UUID) error {
	return s.repo.MarkRead(ctx, accountID, alertID)
}

// dedupKey buckets alerts by cool-down window so the unique constraint on the
// column suppresses repeats: two triggers in the same bucket produce the same
// key.
func dedupKey(accountID uuid.UUID, alertType string, at time.Time, cooldown time.Duration) string {
	bucket := at.Truncate(cooldown).Unix()
	return fmt.Sprintf("%s|%s|%d", accountID, alertType, bucket)
}
