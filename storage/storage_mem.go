package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/meshpage/meshpage/m"
	"github.com/meshpage/meshpage/mgr"
)

// MemStorage is a simple storage implementation using memory only.
type MemStorage struct {
	mgr *mgr.Manager

	snapshot     *StoredSnapshot
	snapshotLock sync.RWMutex

	events *mgr.EventMgr[*StoredSnapshot]
}

// NewMemStorage returns an empty storage.
func NewMemStorage() *MemStorage {
	s := &MemStorage{}
	s.init()
	return s
}

func (s *MemStorage) init() {
	s.mgr = mgr.New("storage")
	s.events = mgr.NewEventMgr[*StoredSnapshot]("snapshot update", s.mgr)
}

// Manager returns the module's manager.
func (s *MemStorage) Manager() *mgr.Manager {
	return s.mgr
}

// Start does nothing.
func (s *MemStorage) Start() error {
	return nil
}

// Stop does nothing.
func (s *MemStorage) Stop() error {
	return nil
}

// GetSnapshot returns the current snapshot.
func (s *MemStorage) GetSnapshot() (*StoredSnapshot, error) {
	s.snapshotLock.RLock()
	defer s.snapshotLock.RUnlock()

	if s.snapshot == nil {
		return nil, ErrNotFound
	}
	return s.snapshot, nil
}

// SaveSnapshot saves the given snapshot, if it differs from the current one.
func (s *MemStorage) SaveSnapshot(snapshot *m.Snapshot, source string) (changed bool, err error) {
	digest, err := snapshot.Digest()
	if err != nil {
		return false, fmt.Errorf("calculate digest: %w", err)
	}
	now := time.Now()

	s.snapshotLock.Lock()
	current := s.snapshot
	if current != nil && current.Digest == digest {
		// Stored snapshots are shared with readers, replace instead of modifying.
		confirmed := *current
		confirmed.CheckedAt = now
		confirmed.Source = source
		s.snapshot = &confirmed
		s.snapshotLock.Unlock()
		return false, nil
	}

	stored := &StoredSnapshot{
		Snapshot:  snapshot,
		Digest:    digest,
		Source:    source,
		UpdatedAt: now,
		CheckedAt: now,
	}
	s.snapshot = stored
	s.snapshotLock.Unlock()

	// Notify outside of lock to allow reading within callbacks.
	s.events.Submit(stored)
	return true, nil
}

// SnapshotEvents returns the event manager that is notified of new snapshots.
func (s *MemStorage) SnapshotEvents() *mgr.EventMgr[*StoredSnapshot] {
	return s.events
}

// setStored sets a snapshot loaded from a file.
func (s *MemStorage) setStored(stored *StoredSnapshot) {
	s.snapshotLock.Lock()
	defer s.snapshotLock.Unlock()

	s.snapshot = stored
}
