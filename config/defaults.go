package config

import (
	"net/netip"
	"time"
)

// DefaultAPIListen is the default address the dashboard listens on.
var DefaultAPIListen = netip.MustParseAddrPort("127.0.0.1:8080")

// Source defaults.
const (
	DefaultSourceInterval = 30 * time.Second
	DefaultSourceTimeout  = 10 * time.Second
	MinSourceInterval     = 1 * time.Second
)
