package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/auth"
	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/risk"
	"github.com/secureauth/sentinel/internal/services"
	"github.com/secureauth/sentinel/pkg/logger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authenticatedRequest injects a verified account id the way the auth
// middleware would.
func authenticatedRequest(req *http.Request, accountID uuid.UUID) *http.Request {
	ctx := context.WithValue(req.Context(), auth.AccountContextKey, accountID)
	return req.WithContext(ctx)
}

// currentFingerprintFor computes the fingerprint the sessions endpoint would
// derive for a request carrying only this user agent.
func currentFingerprintFor(userAgent string) string {
	device, err := fingerprint.Resolve(fingerprint.Signals{UserAgent: userAgent})
	if err != nil {
		return ""
	}
	return device.Fingerprint
}

// withURLParam attaches a chi route parameter to the request
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

type testServices struct {
	ledger    *services.MockLedger
	trustRepo *services.MockTrustedDeviceRepository
	alertRepo *services.MockSecurityAlertRepository
	geo       *services.MockGeoResolver

	login       *services.LoginService
	trust       *services.TrustService
	alerts      *services.AlertService
	aggregation *services.AggregationService
}

func newTestServices() *testServices {
	ts := &testServices{
		ledger:    &services.MockLedger{},
		trustRepo: &services.MockTrustedDeviceRepository{},
		alertRepo: &services.MockSecurityAlertRepository{},
		geo:       &services.MockGeoResolver{},
	}

	log := newTestLogger()
	audit := logger.NewAuditLogger(log)

	riskCfg := config.RiskConfig{
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
	alertCfg := config.AlertConfig{
		CooldownWindow:      time.Hour,
		BruteForceWindow:    15 * time.Minute,
		BruteForceThreshold: 5,
	}
	geoCfg := config.GeoConfig{LookupTimeout: 400 * time.Millisecond}

	ts.trust = services.NewTrustService(ts.trustRepo, audit, log)
	ts.alerts = services.NewAlertService(ts.alertRepo, ts.ledger, &services.MockNotifier{}, alertCfg, audit, log)
	ts.login = services.NewLoginService(ts.ledger, ts.trust, ts.alerts, ts.geo, risk.NewEngine(riskCfg), riskCfg, geoCfg, audit, log)
	ts.aggregation = services.NewAggregationService(ts.ledger, ts.trustRepo, ts.alertRepo)

	return ts
}
