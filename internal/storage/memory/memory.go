// Package memory stores flight session data in memory and exports it to a
// JSON flight log on session end.
package memory

import (
	"fmt"
	"sync"

	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/model"
)

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *model.FlightSession

	ticks []model.TickRecord
	dumps []model.CameraDump

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *model.FlightSession) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.session.ID = 1
	b.ticks = nil
	b.dumps = nil

	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("no session started")
	}
	return b.exportJSON()
}

// RecordTick records one control tick
func (b *Backend) RecordTick(t *model.TickRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		t.SessionID = b.session.ID
	}
	b.ticks = append(b.ticks, *t)
	return nil
}

// RecordCameraDump records camera dump metadata
func (b *Backend) RecordCameraDump(d *model.CameraDump) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		d.SessionID = b.session.ID
	}
	b.dumps = append(b.dumps, *d)
	return nil
}

// TickCount returns the number of recorded ticks
func (b *Backend) TickCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}

// GetExportedFilePath returns the path of the last exported flight log
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
