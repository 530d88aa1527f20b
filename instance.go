// Package meshpage renders the topology page of a wireless mesh node.
package meshpage

import (
	"fmt"

	"github.com/meshpage/meshpage/api/httpapi"
	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/dashboard"
	"github.com/meshpage/meshpage/inst"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/source"
	"github.com/meshpage/meshpage/storage"
)

// Instance is an instance of a meshpage service.
type Instance struct {
	*mgr.Group

	version string
	config  *config.Config

	storage   storage.Storage
	source    *source.Source
	api       *httpapi.API
	dashboard *dashboard.Dashboard
}

var _ inst.Ance = &Instance{}

// New returns a new meshpage instance.
func New(version string, c *config.Config) (*Instance, error) {
	// Create instance to pass it to modules.
	instance := &Instance{
		version: version,
		config:  c,
	}

	// Load storage.
	if c.System.StatePath == "" {
		instance.storage = storage.NewMemStorage()
	} else {
		var err error
		instance.storage, err = storage.NewFileStorage(c.System.StatePath)
		if err != nil {
			return nil, fmt.Errorf("load state: %w", err)
		}
	}

	// Create source.
	var err error
	instance.source, err = source.New(instance)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	// Create API.
	instance.api, err = httpapi.New(instance, nil)
	if err != nil {
		return nil, fmt.Errorf("create http API: %w", err)
	}

	// Create dashboard.
	instance.dashboard, err = dashboard.New(instance)
	if err != nil {
		return nil, fmt.Errorf("create dashboard: %w", err)
	}

	// Add all modules to instance group.
	instance.Group = mgr.NewGroup(
		instance.storage,
		instance.source,
		instance.api,
		instance.dashboard,
	)

	return instance, nil
}

// Version returns the version.
func (i *Instance) Version() string {
	return i.version
}

// Config returns the config.
func (i *Instance) Config() *config.Config {
	return i.config
}

/////

// Storage returns the storage.
func (i *Instance) Storage() storage.Storage {
	return i.storage
}

// Source returns the snapshot source.
func (i *Instance) Source() *source.Source {
	return i.source
}

// API returns the http API.
func (i *Instance) API() *httpapi.API {
	return i.api
}

// Dashboard returns the dashboard.
func (i *Instance) Dashboard() *dashboard.Dashboard {
	return i.dashboard
}
