package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/internal/risk"
)

const chromeUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		DeviceNoveltyWeight:   0.35,
		GeoNoveltyWeight:      0.25,
		VelocityWeight:        0.25,
		FailureRateWeight:     0.15,
		SuspicionThreshold:    70,
		MaxTravelSpeedKmh:     1000,
		HistoryWindowAttempts: 20,
		HistoryWindowDuration: 24 * time.Hour,
		CountryHistoryLogins:  30,
	}
}

func newLoginService(ledger *MockLedger, trustRepo *MockTrustedDeviceRepository, alertRepo *MockSecurityAlertRepository, geoResolver *MockGeoResolver) *LoginService {
	riskCfg := testRiskConfig()
	geoCfg := config.GeoConfig{LookupTimeout: 400 * time.Millisecond}

	trust := NewTrustService(trustRepo, newTestAudit(), newTestLogger())
	alerts := NewAlertService(alertRepo, ledger, &MockNotifier{}, testAlertConfig(), newTestAudit(), newTestLogger())

	return NewLoginService(ledger, trust, alerts, geoResolver, risk.NewEngine(riskCfg), riskCfg, geoCfg, newTestAudit(), newTestLogger())
}

func successInput(accountID uuid.UUID) SubmitAttemptInput {
	return SubmitAttemptInput{
		AccountID: accountID,
		Status:    models.LoginStatusSuccess,
		IPAddress: "203.0.113.10",
		Signals:   fingerprint.Signals{UserAgent: chromeUA},
	}
}

func germanyGeo() *MockGeoResolver {
	return &MockGeoResolver{
		ResolveFunc: func(ctx context.Context, ip string) (*models.GeoContext, error) {
			return &models.GeoContext{
				Country:        "Germany",
				City:           "Berlin",
				Latitude:       52.52,
				Longitude:      13.405,
				HasCoordinates: true,
			}, nil
		},
	}
}

func TestSubmitAttempt_Validation(t *testing.T) {
	svc := newLoginService(&MockLedger{}, &MockTrustedDeviceRepository{}, &MockSecurityAlertRepository{}, &MockGeoResolver{})

	tests := []struct {
		name  string
		input SubmitAttemptInput
	}{
		{"missing account id", SubmitAttemptInput{Status: models.LoginStatusSuccess, IPAddress: "1.2.3.4"}},
		{"unknown status", SubmitAttemptInput{AccountID: uuid.New(), Status: "weird", IPAddress: "1.2.3.4"}},
		{"missing ip", SubmitAttemptInput{AccountID: uuid.New(), Status: models.LoginStatusSuccess}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitAttempt(context.Background(), tt.input)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestSubmitAttempt_NewDeviceNewCountry(t *testing.T) {
	accountID := uuid.New()
	ledger := &MockLedger{}
	trustRepo := &MockTrustedDeviceRepository{}

	svc := newLoginService(ledger, trustRepo, &MockSecurityAlertRepository{}, germanyGeo())

	result, err := svc.SubmitAttempt(context.Background(), successInput(accountID))

	require.NoError(t, err)
	require.NotNil(t, result.Attempt)

	// device novelty 100 and geo novelty 100; velocity and failure rate zero
	assert.Equal(t, 60, result.Attempt.RiskScore)
	assert.True(t, result.Attempt.IsSuspicious, "new device from new country must flag regardless of score")
	assert.True(t, result.DeviceWasNew)

	require.NotNil(t, result.Attempt.Country)
	assert.Equal(t, "Germany", *result.Attempt.Country)
	assert.True(t, result.Attempt.HasCoordinates())

	require.NotNil(t, result.Alert)
	assert.Equal(t, models.AlertTypeNewDeviceHighRisk, result.Alert.AlertType)
}

func TestSubmitAttempt_TrustedDeviceHomeCountry(t *testing.T) {
	accountID := uuid.New()
	ledger := &MockLedger{
		HomeCountryFunc: func(ctx context.Context, id uuid.UUID, lastN int) (string, error) {
			return "Germany", nil
		},
		KnownCountriesFunc: func(ctx context.Context, id uuid.UUID) ([]string, error) {
			return []string{"Germany"}, nil
		},
	}
	trustRepo := &MockTrustedDeviceRepository{
		LookupFunc: func(ctx context.Context, id uuid.UUID, fp string) (*models.TrustedDevice, error) {
			return &models.TrustedDevice{AccountID: id, DeviceFingerprint: fp, IsTrusted: true}, nil
		},
	}

	svc := newLoginService(ledger, trustRepo, &MockSecurityAlertRepository{}, germanyGeo())

	result, err := svc.SubmitAttempt(context.Background(), successInput(accountID))

	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempt.RiskScore)
	assert.False(t, result.Attempt.IsSuspicious)
	assert.False(t, result.DeviceWasNew)
	assert.Nil(t, result.Alert)
}

func TestSubmitAttempt_GeoFailureDegrades(t *testing.T) {
	accountID := uuid.New()
	resolver := &MockGeoResolver{
		ResolveFunc: func(ctx context.Context, ip string) (*models.GeoContext, error) {
			return nil, models.ErrUnavailableDependency
		},
	}

	svc := newLoginService(&MockLedger{}, &MockTrustedDeviceRepository{}, &MockSecurityAlertRepository{}, resolver)

	result, err := svc.SubmitAttempt(context.Background(), successInput(accountID))

	require.NoError(t, err, "geo outages must not block attempt recording")
	assert.Nil(t, result.Attempt.Country)
	assert.False(t, result.Attempt.HasCoordinates())

	// only the device factor contributes: 0.35 * 100
	assert.Equal(t, 35, result.Attempt.RiskScore)
}

func TestSubmitAttempt_LedgerFailureIsFatal(t *testing.T) {
	ledger := &MockLedger{
		AppendFunc: func(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error) {
			return nil, models.ErrStorage
		},
	}

	svc := newLoginService(ledger, &MockTrustedDeviceRepository{}, &MockSecurityAlertRepository{}, germanyGeo())

	_, err := svc.SubmitAttempt(context.Background(), successInput(uuid.New()))

	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestSubmitAttempt_FailedLoginSkipsTrustStore(t *testing.T) {
	trustRepo := &MockTrustedDeviceRepository{
		UpsertFunc: func(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
			t.Fatal("failed attempts must not touch the trust store")
			return nil, nil
		},
	}

	svc := newLoginService(&MockLedger{}, trustRepo, &MockSecurityAlertRepository{}, germanyGeo())

	input := successInput(uuid.New())
	input.Status = models.LoginStatusFailed

	result, err := svc.SubmitAttempt(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, models.LoginStatusFailed, result.Attempt.Status)
}

func TestSubmitAttempt_SuccessRecordsDeviceUse(t *testing.T) {
	var upserted *models.TrustedDevice
	trustRepo := &MockTrustedDeviceRepository{
		UpsertFunc: func(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error) {
			upserted = device
			stored := *device
			stored.ID = uuid.New()
			return &stored, nil
		},
	}

	svc := newLoginService(&MockLedger{}, trustRepo, &MockSecurityAlertRepository{}, germanyGeo())

	result, err := svc.SubmitAttempt(context.Background(), successInput(uuid.New()))

	require.NoError(t, err)
	require.NotNil(t, upserted)
	assert.Equal(t, result.Attempt.DeviceFingerprint, upserted.DeviceFingerprint)
	assert.False(t, upserted.IsTrusted, "first sighting must not auto-trust")
}

func TestSubmitAttempt_UnresolvableSignalsFallBack(t *testing.T) {
	svc := newLoginService(&MockLedger{}, &MockTrustedDeviceRepository{}, &MockSecurityAlertRepository{}, germanyGeo())

	input := successInput(uuid.New())
	input.Signals = fingerprint.Signals{}

	result, err := svc.SubmitAttempt(context.Background(), input)

	require.NoError(t, err, "unresolvable signals must not block the attempt")
	assert.Equal(t, fingerprint.UnknownDevice().Fingerprint, result.Attempt.DeviceFingerprint)
	assert.Equal(t, "unknown", result.Attempt.DeviceClass)
}
