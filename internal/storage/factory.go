package storage

import (
	"fmt"
	"time"

	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/storage/memory"
	postgresstorage "github.com/simflight/quadext/internal/storage/postgres"
	sqlitestorage "github.com/simflight/quadext/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgresstorage.New(logManager), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: time.Duration(cfg.SQLite.DumpIntervalSeconds) * time.Second,
			DumpPath:     cfg.SQLite.DumpPath,
		}, logManager)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
