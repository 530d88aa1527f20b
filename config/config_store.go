package config

import (
	"github.com/mitchellh/copystructure"
)

// Store holds all configuration in a storable format.
type Store struct {
	System System `json:"system,omitempty" yaml:"system,omitempty"`
	Source Source `json:"source,omitempty" yaml:"source,omitempty"`
	Page   Page   `json:"page,omitempty"   yaml:"page,omitempty"`
}

// System defines all configuration regarding the system.
type System struct {
	// APIListen is the IP and port the dashboard listens on.
	// Defaults to 127.0.0.1:8080.
	APIListen string `json:"apiListen,omitempty" yaml:"apiListen,omitempty"`

	// StatePath is where the last loaded mesh snapshot is kept across restarts.
	// Must end in .json or .cbor. If empty, the snapshot is kept in memory only.
	StatePath string `json:"statePath,omitempty" yaml:"statePath,omitempty"`
}

// Source defines where the mesh snapshot is loaded from.
// Exactly one of Path and URL must be set.
type Source struct {
	// Path is a snapshot file ending in .json or .cbor.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// URL is an http(s) URL returning a JSON snapshot.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Interval defines how often the snapshot is reloaded, eg. "30s".
	Interval string `json:"interval,omitempty" yaml:"interval,omitempty"`

	// Timeout limits loading from URL, eg. "10s".
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Page defines how the topology page is rendered.
type Page struct {
	// Thresholds are the ascending distance band boundaries.
	Thresholds []float64 `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// LocalDomain is appended to mesh host names for links.
	LocalDomain string `json:"localDomain,omitempty" yaml:"localDomain,omitempty"`

	// Hide holds IP prefixes of nodes that are not shown.
	Hide []string `json:"hide,omitempty" yaml:"hide,omitempty"`

	// FilterDebounce is the time to wait for further input before applying
	// a live filter, eg. "200ms".
	FilterDebounce string `json:"filterDebounce,omitempty" yaml:"filterDebounce,omitempty"`
}

// Clone returns a full copy the store.
func (s Store) Clone() (Store, error) {
	copied, err := copystructure.Copy(s)
	if err != nil {
		return Store{}, err
	}
	return copied.(Store), nil //nolint:forcetypeassert
}
