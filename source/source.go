package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
	"github.com/meshpage/meshpage/storage"
)

// AlertIDUnavailable is the ID of the alert reported when the mesh data
// source cannot be loaded.
const AlertIDUnavailable = "source-unavailable"

// maxSnapshotSize is the maximum size of a snapshot that is loaded.
const maxSnapshotSize = 16 << 20 // 16MB

// Errors.
var (
	ErrNoSource       = errors.New("no source configured")
	ErrUnexpectedType = errors.New("unexpected content type")
)

// Source periodically loads the mesh snapshot and saves it to the storage.
type Source struct {
	mgr      *mgr.Manager
	instance instance

	alerts *mgr.AlertMgr
	client *http.Client
	task   *mgr.Task
}

// instance is an interface subset of inst.Ance.
type instance interface {
	Version() string
	Config() *config.Config
	Storage() storage.Storage
}

// New returns a new snapshot source.
func New(instance instance) (*Source, error) {
	cfg := instance.Config()
	if cfg.Source.Path == "" && cfg.Source.URL == "" {
		return nil, ErrNoSource
	}

	s := &Source{
		mgr:      mgr.New("source"),
		instance: instance,
		client: &http.Client{
			Timeout: cfg.SourceTimeout,
		},
	}
	s.alerts = s.mgr.NewAlertMgr()
	return s, nil
}

// Manager returns the module's manager.
func (s *Source) Manager() *mgr.Manager {
	return s.mgr
}

// Alerts returns the module's alert manager.
func (s *Source) Alerts() *mgr.AlertMgr {
	return s.alerts
}

// Start starts loading the snapshot on the configured interval.
func (s *Source) Start() error {
	s.task = s.mgr.NewTask("load snapshot", s.loadWorker).
		Repeat(s.instance.Config().SourceInterval).
		Go()
	return nil
}

// Stop stops loading the snapshot.
func (s *Source) Stop() error {
	if s.task != nil {
		s.task.Cancel()
	}
	return nil
}

// Reload triggers loading the snapshot now.
func (s *Source) Reload() {
	if s.task != nil {
		s.task.Go()
	}
}

// Name returns a description of the configured source.
func (s *Source) Name() string {
	cfg := s.instance.Config()
	if cfg.Source.Path != "" {
		return cfg.Source.Path
	}
	return cfg.Source.URL
}

func (s *Source) loadWorker(w *mgr.WorkerCtx) error {
	snapshot, err := s.Load(w.Ctx())
	if err != nil {
		s.alerts.Report(mgr.Alert{
			ID:       AlertIDUnavailable,
			Name:     "Mesh data unavailable",
			Message:  fmt.Sprintf("Failed to load mesh data from %s: %s", s.Name(), err),
			Severity: mgr.AlertSeverityWarning,
		})
		return fmt.Errorf("load snapshot from %s: %w", s.Name(), err)
	}
	s.alerts.Resolve(AlertIDUnavailable)

	changed, err := s.instance.Storage().SaveSnapshot(snapshot, s.Name())
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if changed {
		stats := snapshot.Stats()
		w.Info(
			"mesh snapshot updated",
			"source", s.Name(),
			"nodes", stats.Nodes,
			"named", stats.Named,
			"services", stats.Services,
		)
	} else {
		w.Debug("mesh snapshot unchanged", "source", s.Name())
	}
	return nil
}

// Load loads and parses the snapshot from the configured source.
func (s *Source) Load(ctx context.Context) (*m.Snapshot, error) {
	cfg := s.instance.Config()
	switch {
	case cfg.Source.Path != "":
		return LoadFile(cfg.Source.Path)
	case cfg.Source.URL != "":
		return s.loadURL(ctx, cfg.Source.URL)
	default:
		return nil, ErrNoSource
	}
}

// LoadFile loads a snapshot from a .json or .cbor file.
func LoadFile(filename string) (*m.Snapshot, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(filename, ".cbor"):
		return m.ParseSnapshotCBOR(data)
	default:
		return m.ParseSnapshotJSON(data)
	}
}

func (s *Source) loadURL(ctx context.Context, url string) (*m.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.instance.Config().SourceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/cbor")
	req.Header.Set("User-Agent", "meshpage/"+s.instance.Version())

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	s.mgr.Debug(
		"fetched mesh snapshot",
		"url", url,
		"size", len(data),
		"time", time.Since(started),
	)

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/cbor"):
		return m.ParseSnapshotCBOR(data)
	case contentType == "",
		strings.HasPrefix(contentType, "application/json"),
		strings.HasPrefix(contentType, "text/plain"):
		return m.ParseSnapshotJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedType, contentType)
	}
}
