// Package statefile implements the binary state-file snapshot and its
// companion HTML dump: the file-based view onto live sub-service state.
package statefile

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"sync"
)

// magic is the 4-byte big-endian prefix identifying a state file this
// daemon owns. An existing file with any other magic is foreign and must
// never be overwritten in place.
const magic uint32 = 0x5131E3A6

// infoMaxLen is the truncation length applied to Record.Info before
// encoding.
const infoMaxLen = 80

// Record is one sub-service's row in the snapshot.
type Record struct {
	Name  string
	State string
	Info  string
}

// Store owns the on-disk binary snapshot at path, rewriting it only when
// its encoded contents change (spec invariant 9).
type Store struct {
	mu   sync.Mutex
	path string
	last []byte
}

// bufferPool reduces allocation churn across frequent SetState-triggered
// snapshots, mirroring the teacher's boltdb store pooling pattern.
var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Open validates path: if it exists and carries a foreign (or absent)
// magic, path is reassigned to a fresh temp file and ErrForeignStateFile
// is returned alongside the usable Store, per spec §6 ("never deleted;
// reassigned to a fresh path, raised as a fatal configuration error").
func Open(path string) (*Store, error) {
	if err := validateExisting(path); err != nil {
		tmp, tmpErr := os.CreateTemp("", "agld-state-*.bin")
		if tmpErr != nil {
			return nil, fmt.Errorf("allocating fallback state file: %w", tmpErr)
		}
		tmpPath := tmp.Name()
		tmp.Close()
		return &Store{path: tmpPath}, fmt.Errorf("%w: reassigned state file to %s", err, tmpPath)
	}
	// A stale file from a previous run with our own magic must be deleted
	// so that, once a file reappears at path, it is guaranteed ours
	// (spec §4.5 Start step 1).
	_ = os.Remove(path)
	return &Store{path: path}, nil
}

// ErrForeignStateFile is wrapped into the error Open returns when an
// existing file at the requested path carries a different magic.
var ErrForeignStateFile = fmt.Errorf("state file exists with foreign magic")

func validateExisting(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil // unreadable is treated as absent, not foreign
	}
	if len(data) < 4 {
		return ErrForeignStateFile
	}
	if binary.BigEndian.Uint32(data[:4]) != magic {
		return ErrForeignStateFile
	}
	return nil
}

// Path returns the path currently in effect (possibly the reassigned
// fallback path from Open).
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Write encodes records and overwrites the state file only if the
// encoded bytes differ from the last write (spec invariant 9).
func (s *Store) Write(records []Record) error {
	encoded, err := encode(records)
	if err != nil {
		return fmt.Errorf("encoding state snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if bytes.Equal(encoded, s.last) {
		return nil
	}
	if err := os.WriteFile(s.path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	s.last = encoded
	return nil
}

// Delete removes the binary state file (spec §4.5 Stop step 3: "delete
// the binary state file; the HTML, marked all-stopped, remains").
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting state file: %w", err)
	}
	return nil
}

func encode(records []Record) ([]byte, error) {
	truncated := make([]Record, len(records))
	for i, r := range records {
		info := r.Info
		if len(info) > infoMaxLen {
			info = info[:infoMaxLen]
		}
		truncated[i] = Record{Name: r.Name, State: r.State, Info: info}
	}

	gobBuf, _ := bufferPool.Get().(*bytes.Buffer)
	gobBuf.Reset()
	defer bufferPool.Put(gobBuf)

	if err := gob.NewEncoder(gobBuf).Encode(truncated); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 8+gobBuf.Len())
	buf := bytes.NewBuffer(out)
	if err := binary.Write(buf, binary.BigEndian, magic); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, uint32(gobBuf.Len())); err != nil {
		return nil, err
	}
	buf.Write(gobBuf.Bytes())

	return buf.Bytes(), nil
}

// Read parses a state file previously written by Write, validating its
// magic. Exposed for the "agld list" CLI verb, the one reader of this
// format named in the spec.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if len(data) < 8 || binary.BigEndian.Uint32(data[:4]) != magic {
		return nil, ErrForeignStateFile
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if uint32(len(data)-8) < length {
		return nil, fmt.Errorf("state file truncated: want %d payload bytes, have %d", length, len(data)-8)
	}

	var records []Record
	if err := gob.NewDecoder(bytes.NewReader(data[8 : 8+length])).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding state file: %w", err)
	}
	return records, nil
}
