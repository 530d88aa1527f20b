package storage

import (
	"errors"
	"time"

	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
)

// Errors.
var (
	ErrNotFound = errors.New("not found")
)

// Storage includes all storage interfaces.
type Storage interface {
	DatabaseModule
	SnapshotStorage
}

// DatabaseModule is an interface to a managed storage backend.
type DatabaseModule interface {
	Start() error
	Stop() error
	Manager() *mgr.Manager
}

// SnapshotStorage is an interface to a mesh snapshot storage.
type SnapshotStorage interface {
	// GetSnapshot returns the current snapshot.
	// The returned value must not be modified.
	GetSnapshot() (*StoredSnapshot, error)

	// SaveSnapshot saves the given snapshot, if it differs from the current one.
	// The snapshot must not be modified afterwards.
	SaveSnapshot(snapshot *m.Snapshot, source string) (changed bool, err error)

	// SnapshotEvents returns the event manager that is notified of new snapshots.
	SnapshotEvents() *mgr.EventMgr[*StoredSnapshot]
}

// StoredSnapshot is the format used to store mesh snapshots.
type StoredSnapshot struct {
	Snapshot *m.Snapshot `cbor:"snapshot" json:"snapshot"`

	// Digest is the BLAKE3 digest of the canonical snapshot encoding.
	Digest string `cbor:"digest" json:"digest"`
	// Source describes where the snapshot was loaded from.
	Source string `cbor:"source,omitempty" json:"source,omitempty"`

	// UpdatedAt is when the snapshot content last changed.
	UpdatedAt time.Time `cbor:"updatedAt" json:"updatedAt"`
	// CheckedAt is when the snapshot was last confirmed by its source.
	CheckedAt time.Time `cbor:"checkedAt" json:"checkedAt"`
}

// Age returns the time since the snapshot was last confirmed by its source.
func (ss *StoredSnapshot) Age() time.Duration {
	return time.Since(ss.CheckedAt)
}

// ETag returns an HTTP entity tag for the snapshot.
func (ss *StoredSnapshot) ETag() string {
	return `"` + ss.Digest + `"`
}
