package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
)

// Event is one journaled progress update.
type Event struct {
	JobID   string  `json:"job_id"`
	Seq     uint64  `json:"seq"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
	Time    int64   `json:"time"`
}

// Journal is an append-only progress log backed by a single PebbleDB.
// Keys are "job:<id>:<seq>" with a fixed-width sequence so iteration
// order is append order.
type Journal struct {
	db *pebble.DB
}

func OpenJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	opts := &pebble.Options{
		// Suppress noisy logs
		Logger: &silentLogger{},
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// silentLogger suppresses Pebble's info logs
type silentLogger struct{}

func (l *silentLogger) Infof(format string, args ...interface{})  {}
func (l *silentLogger) Errorf(format string, args ...interface{}) {}
func (l *silentLogger) Fatalf(format string, args ...interface{}) {}

func (j *Journal) Close() error {
	return j.db.Close()
}

func eventKey(jobID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("job:%s:%016d", jobID, seq))
}

// Append writes one event.
func (j *Journal) Append(ev Event) error {
	val, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return j.db.Set(eventKey(ev.JobID, ev.Seq), val, pebble.Sync)
}

// List returns a job's events in sequence order.
func (j *Journal) List(jobID string) ([]Event, error) {
	prefix := []byte("job:" + jobID + ":")
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++

	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var events []Event
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var ev Event
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("corrupt journal entry %q: %w", iter.Key(), err)
		}
		events = append(events, ev)
	}
	return events, iter.Error()
}
