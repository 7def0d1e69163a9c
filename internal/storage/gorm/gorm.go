// Package gormstorage implements the storage.Backend interface on top of a
// GORM database handle with internal queues and a background DB writer
// goroutine. The SQLite and Postgres backends wrap it with their dialect
// specific concerns.
package gormstorage

import (
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/model"
	"github.com/simflight/quadext/internal/queue"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Ticks       *queue.Queue[model.TickRecord]
	CameraDumps *queue.Queue[model.CameraDump]
}

func newQueues() *queues {
	return &queues{
		Ticks:       queue.New[model.TickRecord](),
		CameraDumps: queue.New[model.CameraDump](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	dbReady   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine. The DB handle must be injected via Dependencies.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		return fmt.Errorf("no database handle injected")
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true

	b.startDBWriter()
	return nil
}

// setupDB migrates the flight log schema.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	var err error
	if db.Name() == "sqlite" {
		err = db.AutoMigrate(model.DatabaseModelsSQLite...)
	} else {
		err = db.AutoMigrate(model.DatabaseModels...)
	}
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close stops the DB writer goroutine.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return nil
}

// StartSession inserts the session row and stores its ID for the writer.
func (b *Backend) StartSession(s *model.FlightSession) error {
	if err := b.deps.DB.Create(s).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(s.ID))
	return nil
}

// EndSession flushes the remaining queued records and stamps the end time.
func (b *Backend) EndSession() error {
	b.drainQueues()

	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	return b.deps.DB.Model(&model.FlightSession{}).
		Where("id = ?", id).
		Update("end_time", time.Now()).Error
}

// SetDB injects the database handle. Must be called before Init when the
// wrapping backend manages its own connection.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// SetSessionID sets the current session ID for the DB writer (used by CLI tools).
func (b *Backend) SetSessionID(id uint) {
	b.sessionID.Store(uint64(id))
}

// RecordTick queues a tick record for batch insertion.
func (b *Backend) RecordTick(t *model.TickRecord) error {
	b.queues.Ticks.Push(*t)
	return nil
}

// RecordCameraDump queues a camera dump record for batch insertion.
func (b *Backend) RecordCameraDump(d *model.CameraDump) error {
	b.queues.CameraDumps.Push(*d)
	return nil
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

// drainQueues performs one write cycle synchronously.
func (b *Backend) drainQueues() {
	log := b.deps.LogManager.WriteLog
	sessionID := uint(b.sessionID.Load())

	stampTicks := func(items []model.TickRecord) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}
	stampDumps := func(items []model.CameraDump) {
		for i := range items {
			items[i].SessionID = sessionID
		}
	}

	writeQueue(b.deps.DB, b.queues.Ticks, "tick records", log, stampTicks)
	writeQueue(b.deps.DB, b.queues.CameraDumps, "camera dumps", log, stampDumps)
}

// startDBWriter starts the background goroutine that periodically drains the
// queues into the DB.
func (b *Backend) startDBWriter() {
	go func() {
		for {
			select {
			case <-b.stopChan:
				return
			default:
			}

			if !b.dbReady {
				time.Sleep(1 * time.Second)
				continue
			}

			b.drainQueues()

			time.Sleep(2 * time.Second)
		}
	}()
}
