package meshpage

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/storage"
)

func TestInstance(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meshFile := filepath.Join(dir, "mesh.json")
	require.NoError(t, os.WriteFile(meshFile, []byte(`{
		"etx": [["10.1.2.3", 1]],
		"hosts": {"10.1.2.3": [["nodeA", ""]]},
		"services": {}
	}`), 0o0600))
	stateFile := filepath.Join(dir, "state.cbor")

	c := config.MakeTestConfig(config.Store{
		System: config.System{
			APIListen: "127.0.0.1:0",
			StatePath: stateFile,
		},
		Source: config.Source{Path: meshFile},
	})
	instance, err := New("test", c)
	require.NoError(t, err)
	assert.Equal(t, []string{"storage", "source", "api", "dashboard"}, instance.Modules())

	require.NoError(t, instance.Start())
	assert.Eventually(t, func() bool {
		_, err := instance.Storage().GetSnapshot()
		return err == nil
	}, time.Second, 10*time.Millisecond)

	// Fetch the page as a terminal would.
	req, err := http.NewRequest(http.MethodGet, "http://"+instance.API().Addr().String()+"/mesh", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "curl/8.5.0")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "nodeA (10.1.2.3) etx=1")

	// Stopping persists the snapshot.
	require.True(t, instance.Stop())
	reloaded, err := storage.NewFileStorage(stateFile)
	require.NoError(t, err)
	stored, err := reloaded.GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, meshFile, stored.Source)
}
