// Package journal provides a durable, per-sub-service event history
// backed by BoltDB, adapted from the teacher's boltdb metrics store:
// one bucket per sub-service name, keyed by nanosecond timestamp.
package journal

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kodflow/agld/internal/svcstate"
)

// dbFileMode matches the teacher's boltdb store permission.
const dbFileMode = 0o600

// dbOpenTimeout bounds how long Open waits on an existing file lock.
const dbOpenTimeout = 5 * time.Second

// Event is one recorded state transition for a sub-service.
type Event struct {
	Timestamp time.Time
	State     svcstate.State
	Message   string
}

// Journal persists lifecycle Events per sub-service name.
type Journal struct {
	db *bolt.DB
}

// Open creates or opens the BoltDB file at path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, dbFileMode, &bolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database file.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends an Event to name's bucket, creating the bucket on first
// use.
func (j *Journal) Record(name string, ev Event) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ev); err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
		key := int64ToBytes(ev.Timestamp.UnixNano())
		return bucket.Put(key, buf.Bytes())
	})
}

// History returns up to limit of the most recent Events for name, newest
// first. limit <= 0 means unbounded.
func (j *Journal) History(name string, limit int) ([]Event, error) {
	var events []Event

	err := j.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var ev Event
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&ev); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			events = append(events, ev)
			if limit > 0 && len(events) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

func int64ToBytes(n int64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}
