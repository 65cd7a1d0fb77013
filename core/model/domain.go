package model

// Domain is a category of vehicle data served by the REST API.
type Domain string

const (
	DomainInfo            Domain = "info"
	DomainStatus          Domain = "status"
	DomainCharging        Domain = "charging"
	DomainAirConditioning Domain = "air-conditioning"
	DomainPositions       Domain = "positions"
	DomainDrivingRange    Domain = "driving-range"
	DomainTripStatistics  Domain = "trip-statistics"
	DomainMaintenance     Domain = "maintenance"
	DomainHealth          Domain = "health"
	DomainDeparture       Domain = "departure"
)

// Domains lists every fetchable data domain.
func Domains() []Domain {
	return []Domain{
		DomainInfo, DomainStatus, DomainCharging, DomainAirConditioning,
		DomainPositions, DomainDrivingRange, DomainTripStatistics,
		DomainMaintenance, DomainHealth, DomainDeparture,
	}
}

// Valid reports whether d names a known domain.
func (d Domain) Valid() bool {
	for _, known := range Domains() {
		if d == known {
			return true
		}
	}
	return false
}
