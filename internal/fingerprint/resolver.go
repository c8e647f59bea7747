// Package fingerprint derives stable device fingerprints from raw client
// signals presented with a login attempt.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/secureauth/sentinel/internal/models"
)

// Device classes recognized by the resolver
const (
	ClassDesktop = "desktop"
	ClassMobile  = "mobile"
	ClassTablet  = "tablet"
	ClassBot     = "bot"
	ClassUnknown = "unknown"
)

// unknownDeviceSentinel seeds the fallback fingerprint for attempts whose
// signals cannot be resolved. Changing it would orphan existing
// unknown-device trust rows.
const unknownDeviceSentinel = "sentinel:unknown-device"

// Signals are the raw client hints presented with an attempt.
type Signals struct {
	UserAgent        string `json:"user_agent"`
	AcceptLanguage   string `json:"accept_language"`
	ScreenResolution string `json:"screen_resolution"`
	Timezone         string `json:"timezone"`
}

// Map flattens the signals into an opaque payload for ledger storage.
func (s Signals) Map() models.DeviceInfo {
	return models.DeviceInfo{
		"user_agent":        s.UserAgent,
		"accept_language":   s.AcceptLanguage,
		"screen_resolution": s.ScreenResolution,
		"timezone":          s.Timezone,
	}
}

// Device is the resolved identity of the client that made an attempt.
type Device struct {
	Fingerprint string
	Browser     string
	OS          string
	DeviceClass string
	// DisplayName is a human label like "Chrome on macOS", used when the
	// trust store has no display-name hint for the device.
	DisplayName string
}

// Resolve derives a normalized fingerprint and parsed device identity from
// client signals. It is deterministic: identical signals always produce the
// identical fingerprint. Returns ErrUnresolvableFingerprint only when the
// user agent is empty; callers must fall back to UnknownDevice and never
// block the attempt.
func Resolve(sig Signals) (Device, error) {
	if strings.TrimSpace(sig.UserAgent) == "" {
		return Device{}, models.ErrUnresolvableFingerprint
	}

	ua := useragent.Parse(sig.UserAgent)

	browser := ua.Name
	if browser == "" {
		browser = ClassUnknown
	}

	os := ua.OS
	if os == "" {
		os = ClassUnknown
	}

	class := deviceClass(ua)

	return Device{
		Fingerprint: hashSignals(sig.UserAgent, sig.AcceptLanguage, sig.ScreenResolution, sig.Timezone),
		Browser:     browser,
		OS:          os,
		DeviceClass: class,
		DisplayName: fmt.Sprintf("%s on %s", browser, os),
	}, nil
}

// UnknownDevice is the fallback identity for unresolvable signals. Its
// fingerprint is fixed so repeat unresolvable attempts from an account map to
// the same trust row.
func UnknownDevice() Device {
	return Device{
		Fingerprint: hashSignals(unknownDeviceSentinel),
		Browser:     ClassUnknown,
		OS:          ClassUnknown,
		DeviceClass: ClassUnknown,
		DisplayName: "Unknown device",
	}
}

func deviceClass(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return ClassBot
	case ua.Tablet:
		return ClassTablet
	case ua.Mobile:
		return ClassMobile
	case ua.Desktop:
		return ClassDesktop
	default:
		return ClassUnknown
	}
}

// hashSignals hashes the signal tuple into a 32-char hex fingerprint
func hashSignals(parts ...string) string {
	data := []byte(strings.Join(parts, "|"))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32]
}
