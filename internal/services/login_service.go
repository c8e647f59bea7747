package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/geo"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/internal/risk"
	"github.com/secureauth/sentinel/pkg/logger"
)

// LoginLedger defines the ledger operations the login pipeline needs
type LoginLedger interface {
	Append(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	RecentCounts(ctx context.Context, accountID uuid.UUID, since time.Time, maxAttempts int) (total, failed int, err error)
	LastGeolocated(ctx context.Context, accountID uuid.UUID) (*models.LoginAttempt, error)
	HomeCountry(ctx context.Context, accountID uuid.UUID, lastN int) (string, error)
	KnownCountries(ctx context.Context, accountID uuid.UUID) ([]string, error)
}

// SubmitAttemptInput is a raw attempt as reported by the authentication
// provider.
type SubmitAttemptInput struct {
	AccountID uuid.UUID
	Status    models.LoginStatus
	IPAddress string
	Signals   fingerprint.Signals
}

// SubmitResult is the outcome of the scoring pipeline for one attempt.
type SubmitResult struct {
	Attempt      *models.LoginAttempt
	Device       fingerprint.Device
	DeviceWasNew bool
	Alert        *models.SecurityAlert
}

// LoginService runs the scoring pipeline: fingerprint resolution, geo
// enrichment, risk assessment, ledger append, trust-store update and alert
// evaluation.
type LoginService struct {
	ledger  LoginLedger
	trust   *TrustService
	alerts  *AlertService
	geo     geo.Resolver
	engine  *risk.Engine
	riskCfg config.RiskConfig
	geoCfg  config.GeoConfig
	audit   *logger.AuditLogger
	logger  *slog.Logger
}

func NewLoginService(ledger LoginLedger, trust *TrustService, alerts *AlertService, geoResolver geo.Resolver, engine *risk.Engine, riskCfg config.RiskConfig, geoCfg config.GeoConfig, audit *logger.AuditLogger, logger *slog.Logger) *LoginService {
	return &LoginService{
		ledger:  ledger,
		trust:   trust,
		alerts:  alerts,
		geo:     geoResolver,
		engine:  engine,
		riskCfg: riskCfg,
		geoCfg:  geoCfg,
		audit:   audit,
		logger:  logger,
	}
}

// SubmitAttempt scores and records one authentication attempt. A ledger
// append failure is fatal: callers must treat it as a denied session, since
// an unrecorded attempt would punch a hole in the audit trail. Enrichment
// failures (fingerprint, geo) degrade instead.
func (s *LoginService) SubmitAttempt(ctx context.Context, input SubmitAttemptInput) (*SubmitResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	device, err := fingerprint.Resolve(input.Signals)
	if err != nil {
		s.logger.Debug("unresolvable device signals, using fallback",
			slog.String("account_id", input.AccountID.String()))
		device = fingerprint.UnknownDevice()
	}

	geoCtx := s.resolveGeo(ctx, input.IPAddress)

	state, err := s.trust.StateFor(ctx, input.AccountID, device.Fingerprint)
	if err != nil {
		return nil, err
	}

	riskCtx, err := s.buildRiskContext(ctx, input.AccountID, device, geoCtx, state)
	if err != nil {
		return nil, err
	}

	assessment := s.engine.ScoreAttempt(riskCtx)

	attempt, err := s.appendAttempt(ctx, input, device, geoCtx, assessment)
	if err != nil {
		return nil, err
	}

	s.audit.LogAttemptScored(logger.AuditEvent{
		EventType:   string(attempt.Status),
		AccountID:   attempt.AccountID.String(),
		IPAddress:   attempt.IPAddress,
		Fingerprint: attempt.DeviceFingerprint,
		RiskScore:   attempt.RiskScore,
		Suspicious:  attempt.IsSuspicious,
	})

	result := &SubmitResult{
		Attempt:      attempt,
		Device:       device,
		DeviceWasNew: !state.Seen,
	}

	// The attempt is recorded; everything past this point degrades rather
	// than failing the call.
	if attempt.Status == models.LoginStatusSuccess {
		if _, err := s.trust.RecordUse(ctx, input.AccountID, device, input.Signals.Map(), attempt.CreatedAt); err != nil {
			s.logger.Error("failed to update trust store after successful login",
				slog.String("account_id", input.AccountID.String()),
				slog.Any("error", err))
		}
	}

	alert, err := s.alerts.Evaluate(ctx, attempt, result.DeviceWasNew)
	if err != nil {
		s.logger.Error("alert evaluation failed",
			slog.String("account_id", input.AccountID.String()),
			slog.String("attempt_id", attempt.ID.String()),
			slog.Any("error", err))
	}
	result.Alert = alert

	return result, nil
}

func validateInput(input SubmitAttemptInput) error {
	if input.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", models.ErrValidation)
	}
	if !input.Status.Valid() {
		return fmt.Errorf("%w: unknown login status %q", models.ErrValidation, input.Status)
	}
	if input.IPAddress == "" {
		return fmt.Errorf("%w: ip address is required", models.ErrValidation)
	}
	return nil
}

// resolveGeo enriches the attempt's IP under a hard timeout. Lookup failure
// or timeout returns nil; scoring then treats location factors as zero.
func (s *LoginService) resolveGeo(ctx context.Context, ip string) *models.GeoContext {
	lookupCtx, cancel := context.WithTimeout(ctx, s.geoCfg.LookupTimeout)
	defer cancel()

	geoCtx, err := s.geo.Resolve(lookupCtx, ip)
	if err != nil {
		s.logger.Warn("geo lookup failed, scoring without location",
			slog.String("ip_address", ip),
			slog.Any("error", err))
		return nil
	}

	return geoCtx
}

func (s *LoginService) buildRiskContext(ctx context.Context, accountID uuid.UUID, device fingerprint.Device, geoCtx *models.GeoContext, state DeviceState) (risk.Context, error) {
	now := time.Now().UTC()

	rc := risk.Context{
		Fingerprint:   device.Fingerprint,
		Timestamp:     now,
		Geo:           geoCtx,
		DeviceSeen:    state.Seen,
		DeviceTrusted: state.Trusted,
	}

	home, err := s.ledger.HomeCountry(ctx, accountID, s.riskCfg.CountryHistoryLogins)
	if err != nil {
		return rc, fmt.Errorf("failed to load home country: %w", err)
	}
	rc.HomeCountry = home

	known, err := s.ledger.KnownCountries(ctx, accountID)
	if err != nil {
		return rc, fmt.Errorf("failed to load known countries: %w", err)
	}
	rc.KnownCountries = known

	prev, err := s.ledger.LastGeolocated(ctx, accountID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return rc, fmt.Errorf("failed to load previous geolocated attempt: %w", err)
	}
	if prev != nil {
		rc.PrevLoginAt = &prev.CreatedAt
		rc.PrevLatitude = prev.Latitude
		rc.PrevLongitude = prev.Longitude
	}

	since := now.Add(-s.riskCfg.HistoryWindowDuration)
	total, failed, err := s.ledger.RecentCounts(ctx, accountID, since, s.riskCfg.HistoryWindowAttempts)
	if err != nil {
		return rc, fmt.Errorf("failed to load recent attempt counts: %w", err)
	}
	rc.RecentTotal = total
	rc.RecentFailed = failed

	return rc, nil
}

func (s *LoginService) appendAttempt(ctx context.Context, input SubmitAttemptInput, device fingerprint.Device, geoCtx *models.GeoContext, assessment risk.Assessment) (*models.LoginAttempt, error) {
	attempt := &models.LoginAttempt{
		AccountID:         input.AccountID,
		IPAddress:         input.IPAddress,
		Browser:           device.Browser,
		OS:                device.OS,
		DeviceClass:       device.DeviceClass,
		DeviceFingerprint: device.Fingerprint,
		DeviceInfo:        input.Signals.Map(),
		RiskScore:         assessment.Score,
		IsSuspicious:      assessment.Suspicious,
		Status:            input.Status,
	}

	if geoCtx != nil {
		if geoCtx.Country != "" {
			attempt.Country = &geoCtx.Country
		}
		if geoCtx.City != "" {
			attempt.City = &geoCtx.City
		}
		if geoCtx.ISP != "" {
			attempt.ISP = &geoCtx.ISP
		}
		if geoCtx.HasCoordinates {
			lat, lon := geoCtx.Latitude, geoCtx.Longitude
			attempt.Latitude = &lat
			attempt.Longitude = &lon
		}
	}

	stored, err := s.ledger.Append(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to record login attempt: %w", err)
	}

	return stored, nil
}
