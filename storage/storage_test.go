package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
)

func testSnapshot(etx float64) *m.Snapshot {
	return &m.Snapshot{
		ETX: []m.ETXEntry{
			{Node: "10.1.2.3", ETX: etx},
		},
		Hosts: m.HostDirectory{
			"10.1.2.3": {
				{Name: "nodeA"},
				{Name: "printer", Owner: "10.1.2.99"},
			},
		},
		Services: m.ServiceDirectory{
			"10.1.2.3": {
				{Name: "web", URL: "http://nodeA:80/"},
			},
		},
	}
}

func TestMemStorage(t *testing.T) {
	t.Parallel()

	s := NewMemStorage()
	_, err := s.GetSnapshot()
	assert.ErrorIs(t, err, ErrNotFound)

	sub := s.SnapshotEvents().Subscribe("test", 10)
	defer sub.Cancel()

	// First save is a change.
	changed, err := s.SaveSnapshot(testSnapshot(1), "test")
	require.NoError(t, err)
	assert.True(t, changed)
	first, err := s.GetSnapshot()
	require.NoError(t, err)
	assert.NotEmpty(t, first.Digest)
	assert.Equal(t, `"`+first.Digest+`"`, first.ETag())
	select {
	case ev := <-sub.Events():
		assert.Equal(t, first, ev)
	default:
		t.Fatal("expected snapshot event")
	}

	// Same content only confirms.
	changed, err = s.SaveSnapshot(testSnapshot(1), "other")
	require.NoError(t, err)
	assert.False(t, changed)
	confirmed, err := s.GetSnapshot()
	require.NoError(t, err)
	assert.Equal(t, first.Digest, confirmed.Digest)
	assert.Equal(t, first.UpdatedAt, confirmed.UpdatedAt)
	assert.Equal(t, "other", confirmed.Source)
	assert.Equal(t, "test", first.Source, "stored snapshots must not be modified")
	assert.Empty(t, sub.Events())

	// Different content is a change.
	changed, err = s.SaveSnapshot(testSnapshot(2), "test")
	require.NoError(t, err)
	assert.True(t, changed)
	second, err := s.GetSnapshot()
	require.NoError(t, err)
	assert.NotEqual(t, first.Digest, second.Digest)
	assert.Len(t, sub.Events(), 1)
}

func TestSnapshotCallbacks(t *testing.T) {
	t.Parallel()

	s := NewMemStorage()
	var received []string
	s.SnapshotEvents().AddCallback("test", func(w *mgr.WorkerCtx, ss *StoredSnapshot) (cancel bool, err error) {
		// Reading from within the callback must not deadlock.
		current, err := s.GetSnapshot()
		if err != nil {
			return false, err
		}
		received = append(received, current.Digest)
		return false, nil
	})

	_, err := s.SaveSnapshot(testSnapshot(1), "test")
	require.NoError(t, err)
	_, err = s.SaveSnapshot(testSnapshot(3), "test")
	require.NoError(t, err)
	assert.Len(t, received, 2)
}

func TestFileStorage(t *testing.T) {
	t.Parallel()

	for _, filename := range []string{"state.json", "state.cbor"} {
		t.Run(filename, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), filename)

			// Missing file starts empty.
			s, err := NewFileStorage(path)
			require.NoError(t, err)
			_, err = s.GetSnapshot()
			assert.ErrorIs(t, err, ErrNotFound)

			// Stopping without data writes nothing.
			require.NoError(t, s.Stop())
			_, err = os.Stat(path)
			assert.ErrorIs(t, err, os.ErrNotExist)

			// Save and write.
			_, err = s.SaveSnapshot(testSnapshot(2), "/var/run/mesh.json")
			require.NoError(t, err)
			saved, err := s.GetSnapshot()
			require.NoError(t, err)
			require.NoError(t, s.Stop())

			// Load again.
			loaded, err := NewFileStorage(path)
			require.NoError(t, err)
			restored, err := loaded.GetSnapshot()
			require.NoError(t, err)
			assert.Equal(t, saved.Digest, restored.Digest)
			assert.Equal(t, saved.Source, restored.Source)
			assert.True(t, saved.UpdatedAt.Equal(restored.UpdatedAt))
			assert.Equal(t, saved.Snapshot, restored.Snapshot)

			// Loaded snapshot is recognized as unchanged.
			changed, err := loaded.SaveSnapshot(testSnapshot(2), "/var/run/mesh.json")
			require.NoError(t, err)
			assert.False(t, changed)
		})
	}

	_, err := NewFileStorage(filepath.Join(t.TempDir(), "state.db"))
	assert.Error(t, err)

	// Broken files fail loading.
	broken := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o0600))
	_, err = NewFileStorage(broken)
	assert.Error(t, err)
}
