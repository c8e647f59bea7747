package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAudit() *logger.AuditLogger {
	return logger.NewAuditLogger(newTestLogger())
}

// MockLedger implements LoginLedger, FailureCounter and HistoryLedger for testing
type MockLedger struct {
	AppendFunc            func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	RecentCountsFunc      func(ctx context.Context, accountID uuid.UUID, since time.Time, maxAttempts int) (int, int, error)
	LastGeolocatedFunc    func(ctx context.Context, accountID uuid.UUID) (*models.LoginAttempt, error)
	HomeCountryFunc       func(ctx context.Context, accountID uuid.UUID, lastN int) (string, error)
	KnownCountriesFunc    func(ctx context.Context, accountID uuid.UUID) ([]string, error)
	FailedCountSinceFunc  func(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
	ListRecentFunc        func(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LoginAttempt, error)
	DailyRiskAveragesFunc func(ctx context.Context, accountID uuid.UUID, days int, tz string) ([]models.RiskTrendPoint, error)
	SummaryCountsFunc     func(ctx context.Context, accountID uuid.UUID, since time.Time) (int, int, error)
}

func (m *MockLedger) Append(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, attempt)
	}
	attempt.ID = uuid.New()
	attempt.CreatedAt = time.Now().UTC()
	return attempt, nil
}

func (m *MockLedger) RecentCounts(ctx context.Context, accountID uuid.UUID, since time.Time, maxAttempts int) (int, int, error) {
	if m.RecentCountsFunc != nil {
		return m.RecentCountsFunc(ctx, accountID, since, maxAttempts)
	}
	return 0, 0, nil
}

func (m *MockLedger) LastGeolocated(ctx context.Context, accountID uuid.UUID) (*models.LoginAttempt, error) {
	if m.LastGeolocatedFunc != nil {
		return m.LastGeolocatedFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockLedger) HomeCountry(ctx context.Context, accountID uuid.UUID, lastN int) (string, error) {
	if m.HomeCountryFunc != nil {
		return m.HomeCountryFunc(ctx, accountID, lastN)
	}
	return "", nil
}

func (m *MockLedger) KnownCountries(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	if m.KnownCountriesFunc != nil {
		return m.KnownCountriesFunc(ctx, accountID)
	}
	return []string{}, nil
}

func (m *MockLedger) FailedCountSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	if m.FailedCountSinceFunc != nil {
		return m.FailedCountSinceFunc(ctx, accountID, since)
	}
	return 0, nil
}

func (m *MockLedger) ListRecent(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LoginAttempt, error) {
	if m.ListRecentFunc != nil {
		return m.ListRecentFunc(ctx, accountID, limit)
	}
	return []*models.LoginAttempt{}, nil
}

func (m *MockLedger) DailyRiskAverages(ctx context.Context, accountID uuid.UUID, days int, tz string) ([]models.RiskTrendPoint, error) {
	if m.DailyRiskAveragesFunc != nil {
		return m.DailyRiskAveragesFunc(ctx, accountID, days, tz)
	}
	return []models.RiskTrendPoint{}, nil
}

func (m *MockLedger) SummaryCounts(ctx context.Context, accountID uuid.UUID, since time.Time) (int, int, error) {
	if m.SummaryCountsFunc != nil {
		return m.SummaryCountsFunc(ctx, accountID, since)
	}
	return 0, 0, nil
}

// MockTrustedDeviceRepository implements TrustedDeviceRepository for testing
type MockTrustedDeviceRepository struct {
	LookupFunc               func(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error)
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error)
	UpsertFunc               func(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error)
	PromoteFunc              func(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error)
	RevokeFunc               func(ctx context.Context, accountID, deviceID uuid.UUID) error
	ListTrustedFunc          func(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error)
	CountTrustedFunc         func(ctx context.Context, accountID uuid.UUID) (int, error)
	DeleteStaleUntrustedFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockTrustedDeviceRepository) Lookup(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, accountID, fp)
	}
	return nil, models.ErrNotFound
}

func (m *MockTrustedDeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockTrustedDeviceRepository) Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, device)
	}
	stored := *device
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	return &stored, nil
}

func (m *MockTrustedDeviceRepository) Promote(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error) {
	if m.PromoteFunc != nil {
		return m.PromoteFunc(ctx, accountID, fp)
	}
	return nil, models.ErrNotFound
}

func (m *MockTrustedDeviceRepository) Revoke(ctx context.Context, accountID, deviceID uuid.UUID) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, accountID, deviceID)
	}
	return nil
}

func (m *MockTrustedDeviceRepository) ListTrusted(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error) {
	if m.ListTrustedFunc != nil {
		return m.ListTrustedFunc(ctx, accountID)
	}
	return []*models.TrustedDevice{}, nil
}

func (m *MockTrustedDeviceRepository) CountTrusted(ctx context.Context, accountID uuid.UUID) (int, error) {
	if m.CountTrustedFunc != nil {
		return m.CountTrustedFunc(ctx, accountID)
	}
	return 0, nil
}

func (m *MockTrustedDeviceRepository) DeleteStaleUntrusted(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteStaleUntrustedFunc != nil {
		return m.DeleteStaleUntrustedFunc(ctx, cutoff)
	}
	return 0, nil
}

// MockSecurityAlertRepository implements SecurityAlertRepository for testing
type MockSecurityAlertRepository struct {
	CreateIfAbsentFunc func(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, bool, error)
	ListFunc           func(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*models.SecurityAlert, error)
	MarkReadFunc       func(ctx context.Context, accountID, alertID uuid.UUID) error
	CountUnreadFunc    func(ctx context.Context, accountID uuid.UUID) (int, error)
}

func (m *MockSecurityAlertRepository) CreateIfAbsent(ctx context.Context, alert *models.SecurityAlert) (*models.SecurityAlert, bool, error) {
	if m.CreateIfAbsentFunc != nil {
		return m.CreateIfAbsentFunc(ctx, alert)
	}
	alert.ID = uuid.New()
	alert.CreatedAt = time.Now().UTC()
	return alert, true, nil
}

func (m *MockSecurityAlertRepository) List(ctx context.Context, accountID uuid.UUID, unreadOnly bool, limit int) ([]*models.SecurityAlert, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, accountID, unreadOnly, limit)
	}
	return []*models.SecurityAlert{}, nil
}

func (m *MockSecurityAlertRepository) MarkRead(ctx context.Context, accountID, alertID uuid.UUID) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, accountID, alertID)
	}
	return nil
}

func (m *MockSecurityAlertRepository) CountUnread(ctx context.Context, accountID uuid.UUID) (int, error) {
	if m.CountUnreadFunc != nil {
		return m.CountUnreadFunc(ctx, accountID)
	}
	return 0, nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	SendFunc func(ctx context.Context, alert *models.SecurityAlert) error
}

func (m *MockNotifier) Send(ctx context.Context, alert *models.SecurityAlert) error {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, alert)
	}
	return nil
}

// MockGeoResolver implements geo.Resolver for testing
type MockGeoResolver struct {
	ResolveFunc func(ctx context.Context, ip string) (*models.GeoContext, error)
}

func (m *MockGeoResolver) Resolve(ctx context.Context, ip string) (*models.GeoContext, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, ip)
	}
	return nil, models.ErrUnavailableDependency
}
