package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// FileStorage is a simple storage implementation using a single file
// that is read on creation and written when stopped.
type FileStorage struct {
	MemStorage

	filename string
	format   FileFormat
}

// FileFormat is a file encoding.
type FileFormat string

// File Formats.
const (
	FormatJSON FileFormat = "json"
	FormatCBOR FileFormat = "cbor"
)

// FileStorageFormat is the format in which the FileStorage stores the state.
type FileStorageFormat struct {
	Snapshot *StoredSnapshot `cbor:"snapshot,omitempty" json:"snapshot,omitempty"`
}

// NewFileStorage returns a new file storage, using the encoding matching
// the file name suffix.
func NewFileStorage(filename string) (*FileStorage, error) {
	switch {
	case strings.HasSuffix(filename, ".json"):
		return NewJSONFileStorage(filename)
	case strings.HasSuffix(filename, ".cbor"):
		return NewCBORFileStorage(filename)
	default:
		return nil, errors.New("unknown state file type")
	}
}

// NewJSONFileStorage loads the json file at the given location and returns a new storage.
func NewJSONFileStorage(filename string) (*FileStorage, error) {
	return newFileStorage(filename, FormatJSON)
}

// NewCBORFileStorage loads the cbor file at the given location and returns a new storage.
func NewCBORFileStorage(filename string) (*FileStorage, error) {
	return newFileStorage(filename, FormatCBOR)
}

func newFileStorage(filename string, format FileFormat) (*FileStorage, error) {
	s := &FileStorage{
		filename: filename,
		format:   format,
	}
	s.init()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		var stored FileStorageFormat
		if err := s.unmarshal(data, &stored); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", format, err)
		}
		if stored.Snapshot != nil && stored.Snapshot.Snapshot != nil {
			s.setStored(stored.Snapshot)
		}

	case errors.Is(err, os.ErrNotExist):
		// File does not exist, start empty.

	default:
		return nil, fmt.Errorf("read file %q: %w", filename, err)
	}

	return s, nil
}

// Stop writes to storage to file.
func (s *FileStorage) Stop() error {
	stored, err := s.GetSnapshot()
	if errors.Is(err, ErrNotFound) {
		// Nothing to save.
		return nil
	}

	data, err := s.marshal(&FileStorageFormat{
		Snapshot: stored,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s storage: %w", s.format, err)
	}
	err = os.WriteFile(s.filename, data, 0o0644) //nolint:gosec // no secrets
	if err != nil {
		return fmt.Errorf("failed to write %s storage to %s: %w", s.format, s.filename, err)
	}
	return nil
}

var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.EncOptions{
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("create cbor encoder: %s", err))
	}
}

func (s *FileStorage) marshal(v any) ([]byte, error) {
	switch s.format {
	case FormatCBOR:
		return cborEncMode.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

func (s *FileStorage) unmarshal(data []byte, v any) error {
	switch s.format {
	case FormatCBOR:
		return cbor.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}
