package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpage/meshpage/m"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	c, err := Store{
		Source: Source{Path: "/var/run/mesh.json"},
	}.Parse()
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIListen, c.APIListen)
	assert.Equal(t, DefaultSourceInterval, c.SourceInterval)
	assert.Equal(t, m.DefaultThresholds, c.Thresholds)
	assert.Equal(t, m.DefaultLocalDomain, c.LocalDomain)
	assert.Equal(t, 200*time.Millisecond, c.FilterDebounce)
	assert.Nil(t, c.Hidden)
}

func TestParse(t *testing.T) {
	t.Parallel()

	c, err := Store{
		System: System{
			APIListen: "[::1]:9090",
			StatePath: "/var/lib/meshpage/state.cbor",
		},
		Source: Source{
			URL:      "http://localnode.local.mesh/cgi-bin/mesh.json",
			Interval: "1m",
			Timeout:  "5s",
		},
		Page: Page{
			Thresholds:     []float64{0, 2, 4},
			LocalDomain:    "Mesh.Example.",
			Hide:           []string{"10.99.0.0/16", "10.1.2.3"},
			FilterDebounce: "300ms",
		},
	}.Parse()
	require.NoError(t, err)

	assert.Equal(t, netip.MustParseAddrPort("[::1]:9090"), c.APIListen)
	assert.Equal(t, time.Minute, c.SourceInterval)
	assert.Equal(t, 5*time.Second, c.SourceTimeout)
	assert.Equal(t, m.Thresholds{0, 2, 4}, c.Thresholds)
	assert.Equal(t, "mesh.example", c.LocalDomain)
	assert.Equal(t, 300*time.Millisecond, c.FilterDebounce)
	require.NotNil(t, c.Hidden)
	assert.True(t, c.Hidden.Contains(netip.MustParseAddr("10.99.4.5")))
	assert.True(t, c.Hidden.Contains(netip.MustParseAddr("10.1.2.3")))
	assert.False(t, c.Hidden.Contains(netip.MustParseAddr("10.1.2.4")))

	opts := c.TopologyOptions()
	assert.Equal(t, "mesh.example", opts.LocalDomain)
	assert.Equal(t, c.Hidden, opts.Hidden)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for name, s := range map[string]Store{
		"no source":         {},
		"both sources":      {Source: Source{Path: "/a.json", URL: "http://a/"}},
		"source suffix":     {Source: Source{Path: "/a.txt"}},
		"source scheme":     {Source: Source{URL: "ftp://a/"}},
		"short interval":    {Source: Source{Path: "/a.json", Interval: "10ms"}},
		"relative state":    {Source: Source{Path: "/a.json"}, System: System{StatePath: "state.json"}},
		"state suffix":      {Source: Source{Path: "/a.json"}, System: System{StatePath: "/state.db"}},
		"listen":            {Source: Source{Path: "/a.json"}, System: System{APIListen: "localhost"}},
		"thresholds":        {Source: Source{Path: "/a.json"}, Page: Page{Thresholds: []float64{0, 3, 1}}},
		"domain":            {Source: Source{Path: "/a.json"}, Page: Page{LocalDomain: "not a domain"}},
		"hide":              {Source: Source{Path: "/a.json"}, Page: Page{Hide: []string{"10.0.0.0/33"}}},
		"debounce":          {Source: Source{Path: "/a.json"}, Page: Page{FilterDebounce: "soon"}},
		"negative debounce": {Source: Source{Path: "/a.json"}, Page: Page{FilterDebounce: "-1s"}},
	} {
		_, err := s.Parse()
		assert.Error(t, err, name)
	}

	// Test configs do not need a source.
	assert.NotPanics(t, func() {
		MakeTestConfig(Store{})
	})
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte(`
source:
  path: /tmp/mesh.json
page:
  thresholds: [0, 1, 5]
`), 0o0600))

	c, err := LoadConfig(yamlFile)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/mesh.json", c.Source.Path)
	assert.Equal(t, m.Thresholds{0, 1, 5}, c.Thresholds)

	jsonFile := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"source": {"url": "https://node/mesh"}}`), 0o0600))
	c, err = LoadConfig(jsonFile)
	require.NoError(t, err)
	assert.Equal(t, "https://node/mesh", c.Source.URL)

	_, err = LoadConfig(filepath.Join(dir, "config.toml"))
	assert.Error(t, err)
}

func TestStoreClone(t *testing.T) {
	t.Parallel()

	s := Store{Page: Page{Hide: []string{"10.0.0.0/8"}}}
	cloned, err := s.Clone()
	require.NoError(t, err)
	cloned.Page.Hide[0] = "changed"
	assert.Equal(t, "10.0.0.0/8", s.Page.Hide[0], "clone must be a deep copy")
}
