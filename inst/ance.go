package inst

import (
	"github.com/meshpage/meshpage/api/httpapi"
	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/storage"
)

// Ance (inst.Ance) is an interface to access global attributes of a meshpage instance.
type Ance interface {
	Version() string
	Config() *config.Config

	Storage() storage.Storage
	API() *httpapi.API

	Modules() []string
	GetAlerts() []mgr.AlertUpdate
}

// AnceStub (inst.AnceStub) is a stub to easily create an inst.Ance.
type AnceStub struct {
	VersionStub string
	ConfigStub  *config.Config

	StorageStub storage.Storage
	APIStub     *httpapi.API

	ModulesStub []string
	AlertsStub  []mgr.AlertUpdate
}

var _ Ance = &AnceStub{}

// Version returns the version.
func (stub *AnceStub) Version() string {
	return stub.VersionStub
}

// Config returns the config.
func (stub *AnceStub) Config() *config.Config {
	return stub.ConfigStub
}

/////

// Storage returns the snapshot storage.
func (stub *AnceStub) Storage() storage.Storage {
	return stub.StorageStub
}

// API returns the local http API.
func (stub *AnceStub) API() *httpapi.API {
	return stub.APIStub
}

/////

// Modules returns the module names.
func (stub *AnceStub) Modules() []string {
	return stub.ModulesStub
}

// GetAlerts returns the alerts of all modules.
func (stub *AnceStub) GetAlerts() []mgr.AlertUpdate {
	return stub.AlertsStub
}
