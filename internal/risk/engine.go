// Package risk scores authentication attempts. The engine is a pure function
// of the supplied context: it never reads or writes storage, so the same
// inputs always produce the same assessment.
package risk

import (
	"math"
	"time"

	"github.com/secureauth/sentinel/internal/config"
	"github.com/secureauth/sentinel/internal/models"
)

// Factor values for device novelty
const (
	deviceTrustedFactor = 0
	deviceSeenFactor    = 60
	deviceNewFactor     = 100
)

// Factor values for geo novelty
const (
	geoHomeFactor    = 0
	geoVisitedFactor = 50
	geoNewFactor     = 100
)

// sameLocationToleranceKm absorbs IP-geolocation jitter when two attempts
// land in the same instant.
const sameLocationToleranceKm = 10.0

// Context carries every input for one scoring decision. It is assembled by
// the orchestrating caller, consumed by a single ScoreAttempt invocation and
// discarded afterwards.
type Context struct {
	Fingerprint string
	Timestamp   time.Time
	Geo         *models.GeoContext

	// Trust-store state for the fingerprint
	DeviceSeen    bool
	DeviceTrusted bool

	// HomeCountry is the account's most frequent country over its recent
	// successful logins; empty when the account has none.
	HomeCountry string
	// KnownCountries are all countries with prior successful visits.
	KnownCountries []string

	// Previous geolocated login, for the velocity factor
	PrevLoginAt   *time.Time
	PrevLatitude  *float64
	PrevLongitude *float64

	// Trailing-window attempt counts, for the failure-rate factor
	RecentTotal  int
	RecentFailed int
}

// Assessment is the result of scoring one attempt.
type Assessment struct {
	Score      int
	Suspicious bool

	DeviceNovelty float64
	GeoNovelty    float64
	Velocity      float64
	FailureRate   float64
}

// Engine combines weighted risk factors into a 0-100 score.
type Engine struct {
	cfg config.RiskConfig
}

func NewEngine(cfg config.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// ScoreAttempt evaluates the supplied context. Missing geo enrichment
// degrades the geo and velocity factors to zero; the engine never fails an
// attempt for lack of inputs.
func (e *Engine) ScoreAttempt(rc Context) Assessment {
	a := Assessment{
		DeviceNovelty: e.deviceNoveltyFactor(rc),
		GeoNovelty:    e.geoNoveltyFactor(rc),
		Velocity:      e.velocityFactor(rc),
		FailureRate:   e.failureRateFactor(rc),
	}

	weighted := a.DeviceNovelty*e.cfg.DeviceNoveltyWeight +
		a.GeoNovelty*e.cfg.GeoNoveltyWeight +
		a.Velocity*e.cfg.VelocityWeight +
		a.FailureRate*e.cfg.FailureRateWeight

	a.Score = clampScore(int(math.Round(weighted)))

	// The new-device-from-unfamiliar-region conjunction flags even when the
	// weighted average stays under the threshold. Deliberately not folded
	// into the weighted sum.
	a.Suspicious = a.Score >= e.cfg.SuspicionThreshold ||
		(a.DeviceNovelty == deviceNewFactor && a.GeoNovelty >= geoVisitedFactor)

	return a
}

func (e *Engine) deviceNoveltyFactor(rc Context) float64 {
	switch {
	case rc.DeviceTrusted:
		return deviceTrustedFactor
	case rc.DeviceSeen:
		return deviceSeenFactor
	default:
		return deviceNewFactor
	}
}

func (e *Engine) geoNoveltyFactor(rc Context) float64 {
	if rc.Geo == nil || rc.Geo.Country == "" {
		return 0
	}

	if rc.Geo.Country == rc.HomeCountry {
		return geoHomeFactor
	}

	for _, c := range rc.KnownCountries {
		if c == rc.Geo.Country {
			return geoVisitedFactor
		}
	}

	return geoNewFactor
}

func (e *Engine) velocityFactor(rc Context) float64 {
	if rc.PrevLoginAt == nil {
		return 0
	}
	if rc.Geo == nil || !rc.Geo.HasCoordinates || rc.PrevLatitude == nil || rc.PrevLongitude == nil {
		return 0
	}

	distanceKm := haversine(rc.Geo.Latitude, rc.Geo.Longitude, *rc.PrevLatitude, *rc.PrevLongitude)
	elapsed := rc.Timestamp.Sub(*rc.PrevLoginAt)

	if elapsed <= 0 {
		// Same-instant attempts from meaningfully different places are as
		// implausible as any over-speed travel.
		if distanceKm > sameLocationToleranceKm {
			return 100
		}
		return 0
	}

	speedKmh := distanceKm / elapsed.Hours()
	if speedKmh >= e.cfg.MaxTravelSpeedKmh {
		return 100
	}

	return speedKmh / e.cfg.MaxTravelSpeedKmh * 100
}

func (e *Engine) failureRateFactor(rc Context) float64 {
	if rc.RecentTotal <= 0 {
		return 0
	}
	if rc.RecentFailed < 0 || rc.RecentFailed > rc.RecentTotal {
		return 0
	}

	return 100 * float64(rc.RecentFailed) / float64(rc.RecentTotal)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
