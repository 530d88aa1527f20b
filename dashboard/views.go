package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meshpage/meshpage/filter"
	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/storage"
	"github.com/meshpage/meshpage/topology"
)

func (d *Dashboard) registerViews() {
	api := d.instance.API()

	api.HandleFunc("GET /{$}", d.statusPage)
	api.HandleFunc("GET /status", d.statusPage)
	api.HandleFunc("GET /mesh", d.meshPage)
	api.HandleFunc("GET /mesh/fragment", d.meshFragment)
	api.HandleFunc("GET /mesh/filter", d.meshFilterSocket)
	api.HandleFunc("GET /config", d.configPage)
}

type statusAlert struct {
	Module string
	mgr.Alert
}

func (d *Dashboard) statusPage(w http.ResponseWriter, r *http.Request) {
	buildInfo, _ := debug.ReadBuildInfo()
	buildSettings := make(map[string]string)
	if buildInfo != nil {
		for _, setting := range buildInfo.Settings {
			buildSettings[setting.Key] = setting.Value
		}
	}

	memStats := new(runtime.MemStats)
	runtime.ReadMemStats(memStats)

	// Collect alerts, worst first.
	var alerts []statusAlert
	for _, update := range d.instance.GetAlerts() {
		for _, a := range update.Alerts {
			alerts = append(alerts, statusAlert{
				Module: update.Module,
				Alert:  a,
			})
		}
	}
	slices.SortStableFunc(alerts, func(a, b statusAlert) int {
		return b.Severity.Weight() - a.Severity.Weight()
	})

	// Get snapshot info.
	var (
		snapshot *storage.StoredSnapshot
		stats    m.SnapshotStats
	)
	stored, err := d.instance.Storage().GetSnapshot()
	switch {
	case err == nil:
		snapshot = stored
		stats = stored.Snapshot.Stats()
	case errors.Is(err, storage.ErrNotFound):
	default:
		http.Error(w, fmt.Sprintf("failed to get snapshot: %s", err), http.StatusInternalServerError)
		return
	}

	d.render(w, r, "status", "Status", struct {
		Snapshot      *storage.StoredSnapshot
		Stats         m.SnapshotStats
		Alerts        []statusAlert
		Modules       []string
		BuildInfo     *debug.BuildInfo
		BuildSettings map[string]string
		NumCPU        int
		NumGoroutine  int
		MemStats      *runtime.MemStats
	}{
		Snapshot:      snapshot,
		Stats:         stats,
		Alerts:        alerts,
		Modules:       d.instance.Modules(),
		BuildInfo:     buildInfo,
		BuildSettings: buildSettings,
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
		MemStats:      memStats,
	})
}

// meshView renders the current snapshot.
// Returns a nil view if no snapshot was loaded yet.
func (d *Dashboard) meshView() (*topology.View, *storage.StoredSnapshot, error) {
	stored, err := d.instance.Storage().GetSnapshot()
	switch {
	case err == nil:
		return topology.Render(stored.Snapshot, d.instance.Config().TopologyOptions()), stored, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil, nil
	default:
		return nil, nil, err
	}
}

// checkETag sets the ETag of the response and returns whether the client
// already has the current version.
func (d *Dashboard) checkETag(w http.ResponseWriter, r *http.Request, stored *storage.StoredSnapshot) (notModified bool) {
	if stored == nil || d.instance.Config().DevMode() {
		return false
	}

	etag := stored.ETag()
	w.Header().Set("Etag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

type meshPageData struct {
	Snapshot *storage.StoredSnapshot
	Stats    m.SnapshotStats
	Filter   string
	State    filter.State
	Fragment template.HTML
	Text     string
	Token    *RequestToken
	Debounce time.Duration
}

func (d *Dashboard) meshPage(w http.ResponseWriter, r *http.Request) {
	view, stored, err := d.meshView()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to get snapshot: %s", err), http.StatusInternalServerError)
		return
	}

	// Pages carry a fresh request token, never serve them from cache.
	w.Header().Set("Cache-Control", "no-store")
	filterText := r.URL.Query().Get("filter")

	data := &meshPageData{
		Snapshot: stored,
		Filter:   filterText,
		Debounce: d.instance.Config().FilterDebounce,
	}
	if view != nil {
		data.Stats = stored.Snapshot.Stats()
		data.State = filter.New(view.Targets()).Match(filterText)
		if contentType(r) == plain {
			data.Text, err = view.Text(data.State)
		} else {
			data.Fragment, err = view.HTML(data.State)
		}
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to render mesh: %s", err), http.StatusInternalServerError)
			return
		}
	}

	data.Token, err = d.CreateRequestToken(actionMeshFilter)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to create request token: %s", err), http.StatusInternalServerError)
		return
	}

	d.render(w, r, "mesh", "Mesh", data)
}

// meshFragment returns only the rendered topology, for updating the page in place.
func (d *Dashboard) meshFragment(w http.ResponseWriter, r *http.Request) {
	view, stored, err := d.meshView()
	switch {
	case err != nil:
		http.Error(w, fmt.Sprintf("failed to get snapshot: %s", err), http.StatusInternalServerError)
		return
	case view == nil:
		http.Error(w, "no mesh data loaded yet", http.StatusServiceUnavailable)
		return
	}

	filterText := r.URL.Query().Get("filter")
	if filterText == "" && d.checkETag(w, r, stored) {
		return
	}
	state := filter.New(view.Targets()).Match(filterText)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.WriteHTML(w, state); err != nil {
		d.mgr.Error("failed to render mesh fragment", "err", err)
	}
}

func (d *Dashboard) configPage(w http.ResponseWriter, r *http.Request) {
	store, err := d.instance.Config().Store.Clone()
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to clone config: %s", err), http.StatusInternalServerError)
		return
	}
	store.Source.URL = redactURL(store.Source.URL)
	configStoreYaml, err := yaml.Marshal(store)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal config: %s", err), http.StatusInternalServerError)
		return
	}

	d.render(w, r, "config", "Config", struct {
		ConfigStore string
	}{
		ConfigStore: string(configStoreYaml),
	})
}

// redactURL hides the password of URLs with credentials.
func redactURL(s string) string {
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
