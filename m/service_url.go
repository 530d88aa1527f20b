package m

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedServiceURL is returned for service URLs that do not have the
// scheme://host:port/path shape.
var ErrMalformedServiceURL = errors.New("malformed service url")

// NameOnlyPort is the port marking a service that cannot be linked to.
const NameOnlyPort = "0"

var serviceURLRegex = regexp.MustCompile(`^(.+://)([^:]+):(\d+)(.*)$`)

// ServiceURL is a parsed service URL.
type ServiceURL struct {
	// Scheme includes the "://" separator, eg. "http://".
	Scheme string
	Host   string
	// Port is the port as written, digits only.
	Port string
	// Path is everything after the port, including the leading slash.
	Path string
}

// ParseServiceURL parses a service URL in the scheme://host:port/path form.
// The port is required.
func ParseServiceURL(raw string) (*ServiceURL, error) {
	match := serviceURLRegex.FindStringSubmatch(raw)
	if match == nil {
		return nil, ErrMalformedServiceURL
	}

	return &ServiceURL{
		Scheme: match[1],
		Host:   match[2],
		Port:   match[3],
		Path:   match[4],
	}, nil
}

// Linkable returns whether the service can be linked to.
func (u *ServiceURL) Linkable() bool {
	return u.Port != NameOnlyPort
}

// HostIs returns whether the URL host is the given host name.
// Host names are compared case-insensitively.
func (u *ServiceURL) HostIs(hostname string) bool {
	return strings.EqualFold(u.Host, hostname)
}

// Link returns the address the service is reachable at through the given
// local mesh domain. Standard web ports are omitted.
func (u *ServiceURL) Link(localDomain string) string {
	host := u.Host
	if localDomain != "" {
		host += "." + localDomain
	}

	switch u.Port {
	case "80", "443":
		return u.Scheme + host + u.Path
	default:
		return u.Scheme + host + ":" + u.Port + u.Path
	}
}
