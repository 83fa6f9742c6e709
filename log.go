package coredb

import "sync"

// LogFile is the write-ahead log's external contract (spec section 1: "the
// core only calls logWrite and force"). The WAL's on-disk format is
// explicitly out of scope; this module only needs something it can call
// before a commit flush.
type LogFile interface {
	// logWrite records a before/after page image pair for a committing
	// transaction's dirty page.
	logWrite(before, after []byte) error
	// force durably syncs everything logWrite has buffered so far.
	force() error
}

// InMemoryLogFile is a minimal LogFile for tests and for callers that
// don't need real WAL durability; it counts calls and keeps every logged
// before/after pair in memory.
type InMemoryLogFile struct {
	mu      sync.Mutex
	writes  int
	forces  int
	entries [][2][]byte
}

func NewInMemoryLogFile() *InMemoryLogFile {
	return &InMemoryLogFile{}
}

func (l *InMemoryLogFile) logWrite(before, after []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	l.entries = append(l.entries, [2][]byte{before, after})
	return nil
}

func (l *InMemoryLogFile) force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.forces++
	return nil
}

func (l *InMemoryLogFile) Stats() (writes, forces int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes, l.forces
}
