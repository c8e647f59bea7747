// Package geo wraps the external geo/network context provider. Lookups are
// enrichment only: every failure maps to ErrUnavailableDependency and the
// caller proceeds with degraded context.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/secureauth/sentinel/internal/models"
)

// Resolver supplies geo/network context for an IP address.
type Resolver interface {
	Resolve(ctx context.Context, ipAddress string) (*models.GeoContext, error)
}

// DisabledResolver fails every lookup. Used when no City database is
// configured; attempts are then scored without location factors.
type DisabledResolver struct{}

func (DisabledResolver) Resolve(context.Context, string) (*models.GeoContext, error) {
	return nil, fmt.Errorf("%w: geo enrichment disabled", models.ErrUnavailableDependency)
}

// MaxMindResolver resolves IPs against local MaxMind City and ASN databases.
type MaxMindResolver struct {
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
	logger     *slog.Logger
}

// NewMaxMindResolver opens the City and ASN databases. The ASN path may be
// empty; ISP enrichment is then skipped.
func NewMaxMindResolver(cityDBPath, asnDBPath string, logger *slog.Logger) (*MaxMindResolver, error) {
	cityReader, err := geoip2.Open(cityDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}

	var asnReader *geoip2.Reader
	if asnDBPath != "" {
		asnReader, err = geoip2.Open(asnDBPath)
		if err != nil {
			cityReader.Close()
			return nil, fmt.Errorf("failed to open asn database: %w", err)
		}
	}

	return &MaxMindResolver{
		cityReader: cityReader,
		asnReader:  asnReader,
		logger:     logger,
	}, nil
}

func (r *MaxMindResolver) Close() {
	if r.cityReader != nil {
		r.cityReader.Close()
	}
	if r.asnReader != nil {
		r.asnReader.Close()
	}
}

// Resolve returns geo context for ipAddress or ErrUnavailableDependency.
func (r *MaxMindResolver) Resolve(ctx context.Context, ipAddress string) (*models.GeoContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailableDependency, err)
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return nil, fmt.Errorf("%w: unparseable ip address", models.ErrUnavailableDependency)
	}

	record, err := r.cityReader.City(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: city lookup: %v", models.ErrUnavailableDependency, err)
	}

	geoCtx := &models.GeoContext{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
	}

	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		geoCtx.Latitude = record.Location.Latitude
		geoCtx.Longitude = record.Location.Longitude
		geoCtx.HasCoordinates = true
	}

	if r.asnReader != nil {
		asn, err := r.asnReader.ASN(ip)
		if err != nil {
			// ISP is the least important field; keep the rest
			r.logger.Debug("asn lookup failed", slog.String("ip_address", ipAddress), slog.Any("error", err))
		} else {
			geoCtx.ISP = asn.AutonomousSystemOrganization
		}
	}

	if geoCtx.Country == "" && !geoCtx.HasCoordinates {
		return nil, fmt.Errorf("%w: no geo data for address", models.ErrUnavailableDependency)
	}

	return geoCtx, nil
}
