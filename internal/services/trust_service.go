package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/secureauth/sentinel/internal/fingerprint"
	"github.com/secureauth/sentinel/internal/models"
	"github.com/secureauth/sentinel/pkg/logger"
)

// TrustedDeviceRepository defines the interface for trust-store database operations
type TrustedDeviceRepository interface {
	Lookup(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.TrustedDevice, error)
	Upsert(ctx context.Context, device *models.TrustedDevice) (*models.TrustedDevice, error)
	Promote(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error)
	Revoke(ctx context.Context, accountID, deviceID uuid.UUID) error
	ListTrusted(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error)
	CountTrusted(ctx context.Context, accountID uuid.UUID) (int, error)
	DeleteStaleUntrusted(ctx context.Context, cutoff time.Time) (int64, error)
}

// TrustService manages the per-account device trust store.
type TrustService struct {
	repo   TrustedDeviceRepository
	audit  *logger.AuditLogger
	logger *slog.Logger
}

func NewTrustService(repo TrustedDeviceRepository, audit *logger.AuditLogger, logger *slog.Logger) *TrustService {
	return &TrustService{
		repo:   repo,
		audit:  audit,
		logger: logger,
	}
}

// DeviceState is the trust-store view of a fingerprint at scoring time.
type DeviceState struct {
	Seen    bool
	Trusted bool
	Device  *models.TrustedDevice
}

// StateFor returns whether the fingerprint has been seen and whether it is
// trusted. An unseen fingerprint is a valid state, not an error.
func (s *TrustService) StateFor(ctx context.Context, accountID uuid.UUID, fp string) (DeviceState, error) {
	device, err := s.repo.Lookup(ctx, accountID, fp)
	if errors.Is(err, models.ErrNotFound) {
		return DeviceState{}, nil
	}
	if err != nil {
		return DeviceState{}, fmt.Errorf("failed to look up device state: %w", err)
	}

	return DeviceState{Seen: true, Trusted: device.IsTrusted, Device: device}, nil
}

// RecordUse upserts the device row for a successful authentication,
// advancing last_used_at. Only successful attempts reach here; failed and
// mfa_required outcomes never touch the trust store.
func (s *TrustService) RecordUse(ctx context.Context, accountID uuid.UUID, device fingerprint.Device, info models.DeviceInfo, seenAt time.Time) (*models.TrustedDevice, error) {
	displayName := device.DisplayName

	row := &models.TrustedDevice{
		AccountID:         accountID,
		DeviceFingerprint: device.Fingerprint,
		DisplayName:       &displayName,
		DeviceInfo:        info,
		IsTrusted:         false,
		LastUsedAt:        seenAt,
	}

	stored, err := s.repo.Upsert(ctx, row)
	if errors.Is(err, models.ErrConflict) {
		// Lost a race against a concurrent login from the same device.
		// The winner's row is in place, so a single retry resolves it.
		stored, err = s.repo.Upsert(ctx, row)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record device use: %w", err)
	}

	return stored, nil
}

// Promote marks a previously seen device as trusted so its logins score a
// zero device-novelty factor.
func (s *TrustService) Promote(ctx context.Context, accountID uuid.UUID, fp string) (*models.TrustedDevice, error) {
	device, err := s.repo.Promote(ctx, accountID, fp)
	if err != nil {
		return nil, err
	}

	s.audit.LogTrustChange("device_promoted", accountID.String(), fp)
	return device, nil
}

// Revoke removes the device from the trust store entirely. Its next login
// scores as a brand-new device.
func (s *TrustService) Revoke(ctx context.Context, accountID, deviceID uuid.UUID) error {
	device, err := s.repo.GetByID(ctx, deviceID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to load device for revocation: %w", err)
	case device.AccountID != accountID:
		// Don't leak existence of another account's device.
		return models.ErrNotFound
	}

	if err := s.repo.Revoke(ctx, accountID, deviceID); err != nil {
		return err
	}

	s.audit.LogTrustChange("device_revoked", accountID.String(), device.DeviceFingerprint)

	return nil
}

// ListTrusted returns the account's trusted devices, most recently used first.
func (s *TrustService) ListTrusted(ctx context.Context, accountID uuid.UUID) ([]*models.TrustedDevice, error) {
	return s.repo.ListTrusted(ctx, accountID)
}

// PruneStale deletes untrusted device rows unused for longer than retention.
// Returns the number of rows removed.
func (s *TrustService) PruneStale(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	removed, err := s.repo.DeleteStaleUntrusted(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune stale devices: %w", err)
	}

	if removed > 0 {
		s.logger.Info("pruned stale untrusted devices",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}

	return removed, nil
}
