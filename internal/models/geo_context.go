package models

// GeoContext is the enrichment returned by the geo/network provider for a
// single IP address. It is ephemeral: it feeds one scoring decision and the
// ledger row written for it, and is discarded afterwards.
type GeoContext struct {
	Country   string
	City      string
	ISP       string
	Latitude  float64
	Longitude float64
	// HasCoordinates distinguishes a real (0, 0) fix from a lookup that
	// returned no location.
	HasCoordinates bool
}
