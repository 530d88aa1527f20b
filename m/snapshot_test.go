package m

import (
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSnapshotJSON = `{
  "etx": [["10.1.2.3", 2], ["10.4.5.6", 1.5]],
  "hosts": {
    "10.1.2.3": [["nodeA", ""], ["*.printer", "10.1.2.99"], ["self", "10.1.2.3"]],
    "10.4.5.6": [["pc", "10.4.5.7"], ["nodeB", null]]
  },
  "services": {
    "10.1.2.3": [{"name": "Web", "url": "http://nodeA:80/"}]
  }
}`

func TestParseSnapshotJSON(t *testing.T) {
	t.Parallel()

	s, err := ParseSnapshotJSON([]byte(testSnapshotJSON))
	require.NoError(t, err)

	assert.Equal(t, []ETXEntry{
		{Node: "10.1.2.3", ETX: 2},
		{Node: "10.4.5.6", ETX: 1.5},
	}, s.ETX)
	assert.Equal(t, HostEntry{Name: "*.printer", Owner: "10.1.2.99"}, s.Hosts["10.1.2.3"][1])
	assert.Equal(t, HostEntry{Name: "nodeB"}, s.Hosts["10.4.5.6"][1], "null owner should read as empty")
	assert.Equal(t, []Service{{Name: "Web", URL: "http://nodeA:80/"}}, s.Services["10.1.2.3"])

	// Invalid entries.
	_, err = ParseSnapshotJSON([]byte(`{"etx": [["10.1.2.3"]]}`))
	assert.ErrorIs(t, err, ErrInvalidETXEntry)
	_, err = ParseSnapshotJSON([]byte(`{"hosts": {"10.1.2.3": [[]]}}`))
	assert.ErrorIs(t, err, ErrInvalidHostEntry)
}

func TestSnapshotHosts(t *testing.T) {
	t.Parallel()

	s, err := ParseSnapshotJSON([]byte(testSnapshotJSON))
	require.NoError(t, err)

	hostname, ok := s.PrimaryHostname("10.1.2.3")
	assert.True(t, ok)
	assert.Equal(t, "nodeA", hostname)

	// Primary host does not need to be first.
	hostname, ok = s.PrimaryHostname("10.4.5.6")
	assert.True(t, ok)
	assert.Equal(t, "nodeB", hostname)

	_, ok = s.PrimaryHostname("10.9.9.9")
	assert.False(t, ok, "unknown node has no host name")

	// Only the first entry without owner is considered.
	unnamed := &Snapshot{Hosts: HostDirectory{
		"10.7.7.7": {{Name: "cam", Owner: "10.7.7.8"}, {Name: ""}, {Name: "late"}},
	}}
	_, ok = unnamed.PrimaryHostname("10.7.7.7")
	assert.False(t, ok, "empty primary host name is not replaced by a later entry")

	// Entries owned by the node itself are not LAN hosts.
	assert.Equal(t, []HostEntry{{Name: "*.printer", Owner: "10.1.2.99"}}, s.LANHosts("10.1.2.3"))

	assert.Equal(t, SnapshotStats{
		Nodes:    2,
		Named:    2,
		LANHosts: 2,
		Services: 1,
	}, s.Stats())
}

func TestSnapshotCBORArrays(t *testing.T) {
	t.Parallel()

	s := &Snapshot{
		ETX: []ETXEntry{{Node: gofakeit.IPv4Address(), ETX: 3}},
		Hosts: HostDirectory{
			"10.0.0.1": {{Name: gofakeit.DomainName()}},
		},
	}
	data, err := cbor.Marshal(s)
	require.NoError(t, err)

	// Entries are encoded as arrays, not maps.
	var generic map[string]any
	require.NoError(t, cbor.Unmarshal(data, &generic))
	etx, ok := generic["etx"].([]any)
	require.True(t, ok)
	_, isArray := etx[0].([]any)
	assert.True(t, isArray, "etx entry should be encoded as array")

	parsed, err := ParseSnapshotCBOR(data)
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
}

func TestSnapshotDigest(t *testing.T) {
	t.Parallel()

	a, err := ParseSnapshotJSON([]byte(testSnapshotJSON))
	require.NoError(t, err)
	b, err := ParseSnapshotJSON([]byte(testSnapshotJSON))
	require.NoError(t, err)

	digestA, err := a.Digest()
	require.NoError(t, err)
	digestB, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, digestA, digestB, "equal snapshots must have equal digests")
	assert.Len(t, digestA, 64)

	b.ETX[0].ETX = 3
	digestB, err = b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, digestA, digestB, "changed snapshot must have a different digest")
}
