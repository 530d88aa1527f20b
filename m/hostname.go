package m

import (
	"strings"

	"golang.org/x/net/idna"
)

// WildcardMarker prefixes host names that stand for a whole domain.
const WildcardMarker = "*."

// DefaultLocalDomain is the domain mesh host names are reachable under.
const DefaultLocalDomain = "local.mesh"

// DisplayHostname returns the host name cleaned up for display:
// the wildcard marker is removed and IDN labels are shown in Unicode.
func DisplayHostname(hostname string) string {
	hostname = strings.TrimPrefix(hostname, WildcardMarker)
	if strings.Contains(hostname, "xn--") {
		if unicodeName, err := idna.ToUnicode(hostname); err == nil {
			hostname = unicodeName
		}
	}
	return hostname
}

// HostLink returns the address of the host's web interface.
func HostLink(hostname, localDomain string) string {
	if localDomain == "" {
		return "http://" + hostname
	}
	return "http://" + hostname + "." + localDomain
}
