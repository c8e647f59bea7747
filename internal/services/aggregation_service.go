package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/models"
)

// HistoryLedger defines the read-side ledger operations for aggregation
type HistoryLedger interface {
	ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LoginAttempt, error)
	DailyRiskAverages(ctx context.Context, accountID uuid.UUID, days int, tz string) ([]models.RiskTrendPoint, error)
	SummaryCounts(ctx context.Context, accountID uuid.UUID, since time.Time) (total, suspicious int, err error)
}

// TrustReader is the read-only slice of the trust store aggregation needs.
type TrustReader interface {
	ListTrusted(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error)
	CountTrusted(ctx context.Context, accountID uuid.UUID) (int, error)
}

// UnreadCounter counts pending alerts for the summary.
type UnreadCounter interface {
	CountUnread(ctx context.Context, accountID uuid.UUID) (int, error)
}

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100

	defaultTrendDays = 6
	maxTrendDays     = 90

	summaryWindow = 30 * 24 * time.Hour
)

// ActiveSession is a trusted device decorated with whether it matches the
// caller's current fingerprint.
type ActiveSession struct {
	Device    *models.TrustedDevice
	IsCurrent bool
}

// AggregationService serves the read-side views: recent history, the daily
// risk trend, active sessions and the account summary.
type AggregationService struct {
	ledger HistoryLedger
	trust  TrustReader
	alerts UnreadCounter
}

func NewAggregationService(ledger HistoryLedger, trust TrustReader, alerts UnreadCounter) *AggregationService {
	return &AggregationService{
		ledger: ledger,
		trust:  trust,
		alerts: alerts,
	}
}

// RecentHistory returns the account's latest attempts, newest first. The
// limit is clamped to [1, 100] with a default of 10.
func (s *AggregationService) RecentHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LoginAttempt, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return s.ledger.ListRecent(ctx, accountID, limit)
}

// RiskTrend returns per-day average risk over the trailing window, oldest
// day first. Days with no attempts are absent from the result.
func (s *AggregationService) RiskTrend(ctx context.Context, accountID uuid.UUID, days int) ([]models.RiskTrendPoint, error) {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}

	return s.ledger.DailyRiskAverages(ctx, accountID, days, "UTC")
}

// ActiveSessions lists the account's trusted devices, flagging the one the
// caller is currently on. currentFingerprint may be empty when the caller's
// signals could not be resolved; then no session is flagged current.
func (s *AggregationService) ActiveSessions(ctx context.Context, accountID uuid.UUID, currentFingerprint string) ([]ActiveSession, error) {
	devices, err := s.trust.ListTrusted(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sessions := make([]ActiveSession, 0, len(devices))
	for _, d := range devices {
		sessions = append(sessions, ActiveSession{
			Device:    d,
			IsCurrent: currentFingerprint != "" && d.DeviceFingerprint == currentFingerprint,
		})
	}

	return sessions, nil
}

// AccountSummary aggregates the 30-day totals shown on the dashboard header.
func (s *AggregationService) AccountSummary(ctx context.Context, accountID uuid.UUID) (*models.AccountSummary, error) {
	since := time.Now().UTC().Add(-summaryWindow)

	total, suspicious, err := s.ledger.SummaryCounts(ctx, accountID, since)
	if err != nil {
		return nil, err
	}

	unread, err := s.alerts.CountUnread(ctx, accountID)
	if err != nil {
		return nil, err
	}

	trusted, err := s.trust.CountTrusted(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &models.AccountSummary{
		LoginsLast30Days: total,
		SuspiciousLast30: suspicious,
		UnreadAlerts:     unread,
		TrustedDevices:   trusted,
	}, nil
}
