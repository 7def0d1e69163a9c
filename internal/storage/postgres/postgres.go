// Package postgresstorage implements the storage.Backend interface on
// Postgres. It wraps the GORM backend via composition and owns the
// connection, which it builds from viper config.
package postgresstorage

import (
	"fmt"

	"github.com/simflight/quadext/internal/database"
	"github.com/simflight/quadext/internal/logging"
	gormstorage "github.com/simflight/quadext/internal/storage/gorm"
)

// Backend wraps the GORM backend with a self-managed Postgres connection.
type Backend struct {
	*gormstorage.Backend
	log *logging.SlogManager
}

// New creates a new Postgres storage backend. The connection is established
// and validated during Init.
func New(logManager *logging.SlogManager) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			LogManager: logManager,
		}),
		log: logManager,
	}
}

// Init connects to Postgres, validates the connection, and initializes the
// embedded GORM backend.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.SetDB(db)
	return b.Backend.Init()
}
