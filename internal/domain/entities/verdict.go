// Package entities defines core domain models and data structures.
package entities

// GeoVerdict classifies the executing host's network region.
type GeoVerdict int

const (
	// VerdictUnknown means no trace endpoint produced a usable location.
	VerdictUnknown GeoVerdict = iota
	// VerdictRestricted means at least one endpoint located the host inside
	// the restricted region.
	VerdictRestricted
	// VerdictNotRestricted means at least one endpoint confirmed a location
	// outside the restricted region and none confirmed the opposite.
	VerdictNotRestricted
)

// String returns a human-readable verdict name.
func (v GeoVerdict) String() string {
	switch v {
	case VerdictRestricted:
		return "restricted"
	case VerdictNotRestricted:
		return "not-restricted"
	default:
		return "unknown"
	}
}

// TraceEndpoint is a URL expected to return line-oriented key=value text
// containing a loc=<ISO-country-code> field.
type TraceEndpoint struct {
	Name string
	URL  string
}

// IPMode selects the address family used when dialing an endpoint.
type IPMode string

const (
	// IPModeAuto tries the platform default first, then IPv6, then IPv4.
	IPModeAuto IPMode = "auto"
	// IPMode4 forces IPv4-only dialing.
	IPMode4 IPMode = "4"
	// IPMode6 forces IPv6-only dialing.
	IPMode6 IPMode = "6"
)

// ParseIPMode maps an operator-supplied value to an IPMode, defaulting to
// auto on unset or unrecognized values.
func ParseIPMode(s string) IPMode {
	switch s {
	case "4":
		return IPMode4
	case "6":
		return IPMode6
	default:
		return IPModeAuto
	}
}
