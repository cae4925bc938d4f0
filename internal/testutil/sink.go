package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by MemorySink.Read for unknown ids.
var ErrNotFound = errors.New("not found")

// OutcomeRecord is one outcome written to a MemorySink.
type OutcomeRecord struct {
	ID     string
	Label  string
	Detail []byte
}

// MemorySink is an in-memory engine.Sink.
//
// Set FailWrites or FailReads to simulate storage errors.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type MemorySink struct {
	mu         sync.Mutex
	recordings map[string][]byte
	outcomes   []OutcomeRecord
	writes     int

	FailWrites error
	FailReads  error
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{recordings: make(map[string][]byte)}
}

// Write stores data for id.
func (s *MemorySink) Write(_ context.Context, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites != nil {
		return s.FailWrites
	}
	s.recordings[id] = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Read returns the data stored for id.
func (s *MemorySink) Read(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailReads != nil {
		return nil, s.FailReads
	}
	data, ok := s.recordings[id]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", id, ErrNotFound)
	}
	return data, nil
}

// WriteOutcome appends an outcome.
func (s *MemorySink) WriteOutcome(_ context.Context, id, label string, detail []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, OutcomeRecord{ID: id, Label: label, Detail: detail})
	return nil
}

// SetFailWrites sets FailWrites under the sink's lock, for use while other
// goroutines write.
func (s *MemorySink) SetFailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailWrites = err
}

// Put seeds a recording directly.
func (s *MemorySink) Put(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings[id] = data
}

// Recording returns the stored data for id.
func (s *MemorySink) Recording(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.recordings[id]
	return data, ok
}

// Outcomes returns a copy of every outcome written so far.
func (s *MemorySink) Outcomes() []OutcomeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OutcomeRecord(nil), s.outcomes...)
}

// Writes returns the number of successful Write calls.
func (s *MemorySink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
