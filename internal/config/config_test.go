package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.35, cfg.Risk.DeviceNoveltyWeight)
	assert.Equal(t, 0.25, cfg.Risk.GeoNoveltyWeight)
	assert.Equal(t, 0.25, cfg.Risk.VelocityWeight)
	assert.Equal(t, 0.15, cfg.Risk.FailureRateWeight)
	assert.Equal(t, 70, cfg.Risk.SuspicionThreshold)
	assert.Equal(t, float64(1000), cfg.Risk.MaxTravelSpeedKmh)
	assert.Equal(t, 20, cfg.Risk.HistoryWindowAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Risk.HistoryWindowDuration)
	assert.Equal(t, 30, cfg.Risk.CountryHistoryLogins)

	assert.Equal(t, 1*time.Hour, cfg.Alerts.CooldownWindow)
	assert.Equal(t, 15*time.Minute, cfg.Alerts.BruteForceWindow)
	assert.Equal(t, 5, cfg.Alerts.BruteForceThreshold)

	assert.Equal(t, 400*time.Millisecond, cfg.Geo.LookupTimeout)
	assert.False(t, cfg.Notification.Enabled)
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WeightsMustSumToOne(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RISK_WEIGHT_DEVICE_NOVELTY", "0.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestLoad_NotificationRequiresAddresses(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NOTIFY_ENABLED", "true")

	_, err := Load()
	assert.Error(t, err)
}

func TestRiskConfigValidate_ThresholdBounds(t *testing.T) {
	cfg := RiskConfig{
		DeviceNoveltyWeight: 0.35,
		GeoNoveltyWeight:    0.25,
		VelocityWeight:      0.25,
		FailureRateWeight:   0.15,
		SuspicionThreshold:  101,
		MaxTravelSpeedKmh:   1000,
	}

	assert.Error(t, cfg.Validate())

	cfg.SuspicionThreshold = 70
	assert.NoError(t, cfg.Validate())
}
