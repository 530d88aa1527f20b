package m

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot holds the mesh data a topology page is rendered from.
// It is treated as read-only once loaded.
type Snapshot struct {
	// ETX holds the routing cost to every known node, sorted ascending by cost.
	ETX []ETXEntry `cbor:"etx,omitempty" json:"etx"`

	// Hosts maps node identifiers to their host names.
	Hosts HostDirectory `cbor:"hosts,omitempty" json:"hosts"`

	// Services maps node identifiers to their advertised services.
	Services ServiceDirectory `cbor:"services,omitempty" json:"services"`
}

// ETXEntry is the routing cost to a node.
// Encoded as a two element array: ["10.1.2.3", 2].
type ETXEntry struct {
	_ struct{} `cbor:",toarray"`

	Node string
	ETX  float64
}

// HostDirectory maps node identifiers to host entries.
type HostDirectory map[string][]HostEntry

// HostEntry is a host name announced by a node.
// An empty owner marks the primary host name of the node, any other owner
// marks a host attached to the node's LAN.
// Encoded as a two element array: ["nodeA", ""].
type HostEntry struct {
	_ struct{} `cbor:",toarray"`

	Name  string
	Owner string
}

// ServiceDirectory maps node identifiers to services.
type ServiceDirectory map[string][]Service

// Service is an endpoint advertised by a node.
type Service struct {
	Name string `cbor:"name" json:"name"`
	URL  string `cbor:"url"  json:"url"`
}

// Errors.
var (
	ErrInvalidETXEntry  = errors.New("invalid etx entry")
	ErrInvalidHostEntry = errors.New("invalid host entry")
)

// PrimaryHostname returns the primary host name of the given node.
// This is the first entry without an owner; a node whose first such entry
// has an empty name has no primary host name.
func (s *Snapshot) PrimaryHostname(node string) (hostname string, ok bool) {
	for _, h := range s.Hosts[node] {
		if h.Owner == "" {
			return h.Name, h.Name != ""
		}
	}
	return "", false
}

// LANHosts returns the hosts attached to the LAN of the given node.
func (s *Snapshot) LANHosts(node string) []HostEntry {
	var lan []HostEntry
	for _, h := range s.Hosts[node] {
		if h.Owner != "" && h.Owner != node {
			lan = append(lan, h)
		}
	}
	return lan
}

// SnapshotStats holds counts about a snapshot.
type SnapshotStats struct {
	Nodes    int
	Named    int
	LANHosts int
	Services int
}

// Stats returns counts about the snapshot.
func (s *Snapshot) Stats() SnapshotStats {
	stats := SnapshotStats{
		Nodes: len(s.ETX),
	}
	for _, entry := range s.ETX {
		if _, ok := s.PrimaryHostname(entry.Node); ok {
			stats.Named++
		}
		stats.LANHosts += len(s.LANHosts(entry.Node))
	}
	for _, services := range s.Services {
		stats.Services += len(services)
	}
	return stats
}

var canonicalCBOR cbor.EncMode

func init() {
	var err error
	canonicalCBOR, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("create canonical cbor encoder: %s", err))
	}
}

// MarshalCanonical returns the canonical CBOR encoding of the snapshot.
// Equal snapshots always have an equal encoding.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return canonicalCBOR.Marshal(s)
}

// Digest returns the hex encoded BLAKE3 digest of the canonical encoding.
func (s *Snapshot) Digest() (string, error) {
	data, err := s.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return BLAKE3.HexDigest(data), nil
}

// ParseSnapshotJSON parses a snapshot from JSON.
func ParseSnapshotJSON(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseSnapshotCBOR parses a snapshot from CBOR.
func ParseSnapshotCBOR(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := cbor.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalJSON encodes the entry as a two element array.
func (e ETXEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Node, e.ETX})
}

// UnmarshalJSON decodes the entry from a two element array.
func (e *ETXEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidETXEntry, err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("%w: expected two elements, got %d", ErrInvalidETXEntry, len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Node); err != nil {
		return fmt.Errorf("%w: node: %w", ErrInvalidETXEntry, err)
	}
	if err := json.Unmarshal(raw[1], &e.ETX); err != nil {
		return fmt.Errorf("%w: etx: %w", ErrInvalidETXEntry, err)
	}
	return nil
}

// MarshalJSON encodes the entry as a two element array.
func (h HostEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string{h.Name, h.Owner})
}

// UnmarshalJSON decodes the entry from a two element array.
// A missing, null or false owner is read as empty.
func (h *HostEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHostEntry, err)
	}
	if len(raw) < 1 {
		return fmt.Errorf("%w: empty", ErrInvalidHostEntry)
	}
	if err := json.Unmarshal(raw[0], &h.Name); err != nil {
		return fmt.Errorf("%w: name: %w", ErrInvalidHostEntry, err)
	}

	h.Owner = ""
	if len(raw) < 2 {
		return nil
	}
	owner := bytes.TrimSpace(raw[1])
	if bytes.Equal(owner, []byte("null")) || bytes.Equal(owner, []byte("false")) {
		return nil
	}
	if err := json.Unmarshal(owner, &h.Owner); err != nil {
		return fmt.Errorf("%w: owner: %w", ErrInvalidHostEntry, err)
	}
	return nil
}
