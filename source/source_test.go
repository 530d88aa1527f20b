package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/inst"
	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/storage"
)

const testSnapshotJSON = `{
	"etx": [["10.1.2.3", 1], ["10.1.2.4", 2.5]],
	"hosts": {
		"10.1.2.3": [["nodeA", ""], ["*.printer", "10.1.2.99"]],
		"10.1.2.4": [["nodeB", ""]]
	},
	"services": {
		"10.1.2.3": [{"name": "web", "url": "http://nodeA:80/"}]
	}
}`

func newTestInstance(s config.Store) *inst.AnceStub {
	return &inst.AnceStub{
		VersionStub: "test",
		ConfigStub:  config.MakeTestConfig(s),
		StorageStub: storage.NewMemStorage(),
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "mesh.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(testSnapshotJSON), 0o0600))

	fromJSON, err := LoadFile(jsonFile)
	require.NoError(t, err)
	assert.Len(t, fromJSON.ETX, 2)
	assert.Equal(t, 2.5, fromJSON.ETX[1].ETX)

	// The same snapshot as cbor.
	cborData, err := cbor.Marshal(fromJSON)
	require.NoError(t, err)
	cborFile := filepath.Join(dir, "mesh.cbor")
	require.NoError(t, os.WriteFile(cborFile, cborData, 0o0600))

	fromCBOR, err := LoadFile(cborFile)
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromCBOR)

	_, err = LoadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadURL(t *testing.T) {
	t.Parallel()

	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/mesh.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testSnapshotJSON))
		case "/mesh.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s, err := New(newTestInstance(config.Store{
		Source: config.Source{URL: server.URL + "/mesh.json"},
	}))
	require.NoError(t, err)
	snapshot, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "meshpage/test", userAgent)
	hostname, ok := snapshot.PrimaryHostname("10.1.2.4")
	assert.True(t, ok)
	assert.Equal(t, "nodeB", hostname)

	s, err = New(newTestInstance(config.Store{
		Source: config.Source{URL: server.URL + "/mesh.html"},
	}))
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedType)

	s, err = New(newTestInstance(config.Store{
		Source: config.Source{URL: server.URL + "/missing"},
	}))
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestSourceModule(t *testing.T) {
	t.Parallel()

	meshFile := filepath.Join(t.TempDir(), "mesh.json")
	instance := newTestInstance(config.Store{
		Source: config.Source{Path: meshFile},
	})
	s, err := New(instance)
	require.NoError(t, err)

	// Missing file reports an alert.
	require.NoError(t, s.Start())
	defer func() {
		assert.NoError(t, s.Stop())
	}()
	assert.Eventually(t, func() bool {
		return s.Alerts().Len() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, AlertIDUnavailable, s.Alerts().Export().Alerts[0].ID)
	_, err = instance.Storage().GetSnapshot()
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Reloading after the file appeared resolves the alert.
	require.NoError(t, os.WriteFile(meshFile, []byte(testSnapshotJSON), 0o0600))
	s.Reload()
	assert.Eventually(t, func() bool {
		_, err := instance.Storage().GetSnapshot()
		return err == nil
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.Alerts().Len() == 0
	}, time.Second, 10*time.Millisecond)

	stored, err := instance.Storage().GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, meshFile, stored.Source)
	assert.Equal(t, m.SnapshotStats{Nodes: 2, Named: 2, LANHosts: 1, Services: 1}, stored.Snapshot.Stats())
}

func TestNoSource(t *testing.T) {
	t.Parallel()

	_, err := New(newTestInstance(config.Store{}))
	assert.ErrorIs(t, err, ErrNoSource)
}
