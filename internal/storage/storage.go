package storage

import "github.com/simflight/quadext/internal/model"

// Backend is the interface all flight-log storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *model.FlightSession) error
	EndSession() error

	// Recording
	RecordTick(t *model.TickRecord) error
	RecordCameraDump(d *model.CameraDump) error
}

// Exportable is an optional interface for backends that write a flight log
// file on session end.
type Exportable interface {
	GetExportedFilePath() string
}
