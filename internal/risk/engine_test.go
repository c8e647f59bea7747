package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/models"
)

func defaultRiskConfig() config.RiskConfig {
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

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64    { return &f }

func TestScoreAttempt_BrandNewAccountNewCountry(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	// Zero history: never-seen device, first-ever country, no prior login
	a := engine.ScoreAttempt(Context{
		Fingerprint: "abc",
		Timestamp:   time.Now(),
		Geo:         &models.GeoContext{Country: "BR"},
	})

	assert.Equal(t, float64(100), a.DeviceNovelty)
	assert.Equal(t, float64(100), a.GeoNovelty)
	assert.Equal(t, float64(0), a.Velocity)
	assert.Equal(t, float64(0), a.FailureRate)
	// 0.35*100 + 0.25*100 = 60; conjunction override must still flag it
	assert.Equal(t, 60, a.Score)
	assert.True(t, a.Suspicious)
}

func TestScoreAttempt_TrustedDeviceUsualCountry(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	prev := time.Now().Add(-24 * time.Hour)
	a := engine.ScoreAttempt(Context{
		Fingerprint:    "abc",
		Timestamp:      time.Now(),
		Geo:            &models.GeoContext{Country: "US", Latitude: 40.71, Longitude: -74.0, HasCoordinates: true},
		DeviceSeen:     true,
		DeviceTrusted:  true,
		HomeCountry:    "US",
		KnownCountries: []string{"US"},
		PrevLoginAt:    ptrTime(prev),
		PrevLatitude:   ptrFloat(40.73),
		PrevLongitude:  ptrFloat(-74.1),
		RecentTotal:    10,
		RecentFailed:   1,
	})

	assert.Equal(t, float64(0), a.DeviceNovelty)
	assert.Equal(t, float64(0), a.GeoNovelty)
	assert.InDelta(t, 0, a.Velocity, 1)
	assert.Equal(t, float64(10), a.FailureRate)
	// Score is the failure-rate term alone: round(0.15*10) = 2
	assert.Equal(t, 2, a.Score)
	assert.False(t, a.Suspicious)
}

func TestScoreAttempt_ImpossibleTravel(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	// New York to Tokyo (~10,800 km) in one hour
	prev := time.Now().Add(-1 * time.Hour)
	a := engine.ScoreAttempt(Context{
		Timestamp:     time.Now(),
		Geo:           &models.GeoContext{Country: "JP", Latitude: 35.68, Longitude: 139.69, HasCoordinates: true},
		DeviceSeen:    true,
		HomeCountry:   "US",
		PrevLoginAt:   ptrTime(prev),
		PrevLatitude:  ptrFloat(40.71),
		PrevLongitude: ptrFloat(-74.0),
	})

	assert.Equal(t, float64(100), a.Velocity)
}

func TestScoreAttempt_VelocityScalesLinearly(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	// ~500 km in one hour: factor should be near 500/1000*100 = 50
	prev := time.Now().Add(-1 * time.Hour)
	a := engine.ScoreAttempt(Context{
		Timestamp:     time.Now(),
		Geo:           &models.GeoContext{Country: "FR", Latitude: 48.85, Longitude: 2.35, HasCoordinates: true},
		PrevLoginAt:   ptrTime(prev),
		PrevLatitude:  ptrFloat(44.84),
		PrevLongitude: ptrFloat(-0.58),
	})

	assert.Greater(t, a.Velocity, 40.0)
	assert.Less(t, a.Velocity, 60.0)
}

func TestScoreAttempt_SameInstantDifferentPlaces(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	now := time.Now()
	a := engine.ScoreAttempt(Context{
		Timestamp:     now,
		Geo:           &models.GeoContext{Country: "DE", Latitude: 52.52, Longitude: 13.40, HasCoordinates: true},
		PrevLoginAt:   ptrTime(now),
		PrevLatitude:  ptrFloat(48.85),
		PrevLongitude: ptrFloat(2.35),
	})

	assert.Equal(t, float64(100), a.Velocity)
}

func TestScoreAttempt_MissingGeoDegrades(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	prev := time.Now().Add(-1 * time.Minute)
	a := engine.ScoreAttempt(Context{
		Timestamp:     time.Now(),
		Geo:           nil,
		DeviceSeen:    true,
		DeviceTrusted: true,
		PrevLoginAt:   ptrTime(prev),
		PrevLatitude:  ptrFloat(40.71),
		PrevLongitude: ptrFloat(-74.0),
	})

	assert.Equal(t, float64(0), a.GeoNovelty)
	assert.Equal(t, float64(0), a.Velocity)
	assert.Equal(t, 0, a.Score)
	assert.False(t, a.Suspicious)
}

func TestScoreAttempt_KnownButNotHomeCountry(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	a := engine.ScoreAttempt(Context{
		Timestamp:      time.Now(),
		Geo:            &models.GeoContext{Country: "GB"},
		DeviceSeen:     true,
		HomeCountry:    "US",
		KnownCountries: []string{"US", "GB"},
	})

	assert.Equal(t, float64(50), a.GeoNovelty)
}

func TestScoreAttempt_NewDeviceFromVisitedCountryIsConjunctionFlagged(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	// 0.35*100 + 0.25*50 = 47.5, below threshold, but the conjunction rule
	// (new device, geo novelty >= 50) applies
	a := engine.ScoreAttempt(Context{
		Timestamp:      time.Now(),
		Geo:            &models.GeoContext{Country: "GB"},
		HomeCountry:    "US",
		KnownCountries: []string{"US", "GB"},
	})

	assert.Equal(t, 48, a.Score)
	assert.True(t, a.Suspicious)
}

func TestScoreAttempt_ThresholdFlagging(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	// Seen-but-untrusted device (60), new country (100), all failures
	a := engine.ScoreAttempt(Context{
		Timestamp:    time.Now(),
		Geo:          &models.GeoContext{Country: "RU"},
		DeviceSeen:   true,
		HomeCountry:  "US",
		RecentTotal:  10,
		RecentFailed: 10,
	})

	// 0.35*60 + 0.25*100 + 0.15*100 = 61; below threshold, no conjunction
	assert.Equal(t, 61, a.Score)
	assert.False(t, a.Suspicious)

	// Same but with impossible travel on top
	prev := time.Now().Add(-1 * time.Hour)
	a = engine.ScoreAttempt(Context{
		Timestamp:     time.Now(),
		Geo:           &models.GeoContext{Country: "RU", Latitude: 55.75, Longitude: 37.61, HasCoordinates: true},
		DeviceSeen:    true,
		HomeCountry:   "US",
		PrevLoginAt:   ptrTime(prev),
		PrevLatitude:  ptrFloat(40.71),
		PrevLongitude: ptrFloat(-74.0),
		RecentTotal:   10,
		RecentFailed:  10,
	})

	// 61 + 0.25*100 = 86
	assert.Equal(t, 86, a.Score)
	assert.True(t, a.Suspicious)
}

func TestScoreAttempt_ScoreAlwaysInRange(t *testing.T) {
	engine := NewEngine(defaultRiskConfig())

	contexts := []Context{
		{},
		{Geo: &models.GeoContext{Country: "ZZ"}, RecentTotal: 1, RecentFailed: 1},
		{DeviceSeen: true, DeviceTrusted: true, RecentTotal: 100},
	}

	for _, rc := range contexts {
		rc.Timestamp = time.Now()
		a := engine.ScoreAttempt(rc)
		assert.GreaterOrEqual(t, a.Score, 0)
		assert.LessOrEqual(t, a.Score, 100)
	}
}

func TestHaversine_KnownDistance(t *testing.T) {
	// Paris to London is roughly 344 km
	d := haversine(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, 344, d, 10)
}
