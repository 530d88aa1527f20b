package config

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"go4.org/netipx"
	"golang.org/x/net/idna"

	"github.com/meshpage/meshpage/filter"
	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/topology"
)

// Config holds initialized configuration.
type Config struct {
	Store

	APIListen netip.AddrPort

	SourceInterval time.Duration
	SourceTimeout  time.Duration

	Thresholds     m.Thresholds
	LocalDomain    string
	Hidden         *netipx.IPSet
	FilterDebounce time.Duration

	devMode atomic.Bool
	started time.Time
}

var domainRegex = regexp.MustCompile(
	`^` + // match beginning
		`(` + // start subdomain group
		`(xn--)?` + // idn prefix
		`[a-z0-9_-]{1,63}` + // main chunk
		`\.` + // ending with a dot
		`)*` + // end subdomain group, allow any number of subdomains
		`(xn--)?` + // TLD idn prefix
		`[a-z0-9_-]{1,63}` + // TLD main chunk with at least one character
		`$`, // match end
)

// Parse parses a config definition and return an initialized config.
func (s Store) Parse() (*Config, error) {
	return s.parse(false)
}

// MakeTestConfig parses and returns the given config store with loosened checks.
// If anything fails, it panics.
func MakeTestConfig(s Store) *Config {
	c, err := s.parse(true)
	if err != nil {
		panic("test config invalid: " + err.Error())
	}
	return c
}

func (s Store) parse(test bool) (*Config, error) {
	c := &Config{
		Store:          s,
		APIListen:      DefaultAPIListen,
		SourceInterval: DefaultSourceInterval,
		SourceTimeout:  DefaultSourceTimeout,
		Thresholds:     m.DefaultThresholds,
		LocalDomain:    m.DefaultLocalDomain,
		FilterDebounce: filter.DefaultDebounce,
		started:        time.Now(),
	}

	// System.
	if c.System.APIListen != "" {
		var err error
		c.APIListen, err = netip.ParseAddrPort(c.System.APIListen)
		if err != nil {
			return nil, errors.New("system.apiListen is not a valid IP and port")
		}
	}
	if c.System.StatePath != "" {
		if !test && !filepath.IsAbs(c.System.StatePath) {
			return nil, errors.New("system.statePath must be an absolute path")
		}
		if !hasSnapshotSuffix(c.System.StatePath) {
			return nil, errors.New("system.statePath must end in .json or .cbor")
		}
	}

	// Source.
	switch {
	case c.Source.Path != "" && c.Source.URL != "":
		return nil, errors.New("source.path and source.url are mutually exclusive")
	case c.Source.Path != "":
		if !hasSnapshotSuffix(c.Source.Path) {
			return nil, errors.New("source.path must end in .json or .cbor")
		}
	case c.Source.URL != "":
		u, err := url.Parse(c.Source.URL)
		if err != nil {
			return nil, fmt.Errorf("source.url is invalid: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("source.url has unsupported scheme %q", u.Scheme)
		}
	case !test:
		return nil, errors.New(`no mesh data source configured
Configure one of these settings:
- source.path
- source.url`)
	}
	if c.Source.Interval != "" {
		interval, err := time.ParseDuration(c.Source.Interval)
		if err != nil {
			return nil, fmt.Errorf("source.interval is invalid: %w", err)
		}
		if interval < MinSourceInterval {
			return nil, fmt.Errorf("source.interval must be at least %s", MinSourceInterval)
		}
		c.SourceInterval = interval
	}
	if c.Source.Timeout != "" {
		timeout, err := time.ParseDuration(c.Source.Timeout)
		if err != nil || timeout <= 0 {
			return nil, errors.New("source.timeout is invalid")
		}
		c.SourceTimeout = timeout
	}

	// Page.
	if len(c.Page.Thresholds) > 0 {
		thresholds := m.Thresholds(c.Page.Thresholds)
		if err := thresholds.Check(); err != nil {
			return nil, fmt.Errorf("page.thresholds: %w", err)
		}
		c.Thresholds = thresholds
	}
	if c.Page.LocalDomain != "" {
		cleaned, valid := CleanDomain(c.Page.LocalDomain)
		if !valid {
			return nil, fmt.Errorf("page.localDomain %q is invalid", c.Page.LocalDomain)
		}
		c.LocalDomain = cleaned
	}
	if len(c.Page.Hide) > 0 {
		var b netipx.IPSetBuilder
		for i, entry := range c.Page.Hide {
			prefix, err := parsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("page.hide.#%d is invalid: %w", i+1, err)
			}
			b.AddPrefix(prefix)
		}
		hidden, err := b.IPSet()
		if err != nil {
			return nil, fmt.Errorf("page.hide: %w", err)
		}
		c.Hidden = hidden
	}
	if c.Page.FilterDebounce != "" {
		debounce, err := time.ParseDuration(c.Page.FilterDebounce)
		if err != nil || debounce <= 0 {
			return nil, errors.New("page.filterDebounce is invalid")
		}
		c.FilterDebounce = debounce
	}

	return c, nil
}

func hasSnapshotSuffix(filename string) bool {
	return strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".cbor")
}

// parsePrefix parses an IP prefix or a single IP.
func parsePrefix(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(ip, ip.BitLen()), nil
}

// CleanDomain cleans the given domain and also returns if it is valid.
func CleanDomain(domain string) (cleaned string, valid bool) {
	domain = strings.ToLower(domain)
	domain = strings.Trim(domain, ".")

	// Check max length.
	if len(domain) > 256 {
		return domain, false
	}

	// Check domain with regex.
	if !domainRegex.MatchString(domain) {
		// Check if this is an IDN domain.
		punyDomain, err := idna.ToASCII(domain)
		if err == nil && domainRegex.MatchString(punyDomain) {
			domain = punyDomain
		} else {
			return domain, false
		}
	}

	return domain, true
}

// TopologyOptions returns the rendering options for the topology page.
func (c *Config) TopologyOptions() topology.Options {
	return topology.Options{
		Thresholds:  c.Thresholds,
		LocalDomain: c.LocalDomain,
		Hidden:      c.Hidden,
	}
}

// DevMode returns if the development mode is enabled.
func (c *Config) DevMode() bool {
	return c.devMode.Load()
}

// SetDevMode sets the development mode.
func (c *Config) SetDevMode(mode bool) {
	c.devMode.Store(mode)
}

// Started returns the time when the service was started.
// Measured by when the config was created.
func (c *Config) Started() time.Time {
	return c.started
}

// Uptime returns the time since the service was started.
// Measured by when the config was created.
func (c *Config) Uptime() time.Duration {
	return time.Since(c.started)
}
