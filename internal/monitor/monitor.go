// Package monitor runs a background status service that writes extension
// health (session, frame counter, controller states) to a status file and
// optionally to the telemetry backend at 1 Hz.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/session"
	"github.com/simflight/quadext/internal/telemetry"
	"github.com/simflight/quadext/internal/worker"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager    *logging.SlogManager
	SessionCtx    *session.Context
	WorkerManager *worker.Manager
	Telemetry     *telemetry.Manager // optional
	StatusDir     string
}

// Status is the JSON document written to the status file each cycle.
type Status struct {
	Time               time.Time `json:"time"`
	SessionID          uint      `json:"sessionId"`
	SessionActive      bool      `json:"sessionActive"`
	Frame              uint      `json:"frame"`
	Attached           int       `json:"attached"`
	ControllersRunning int       `json:"controllersRunning"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current extension status
func (s *Service) GetStatus() Status {
	return Status{
		Time:               time.Now(),
		SessionID:          s.deps.SessionCtx.Get().ID,
		SessionActive:      s.deps.SessionCtx.Active(),
		Frame:              s.deps.SessionCtx.Frame(),
		Attached:           s.deps.WorkerManager.AttachedCount(),
		ControllersRunning: s.deps.WorkerManager.RunningCount(),
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(s.deps.StatusDir + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				if !s.deps.SessionCtx.Active() {
					continue
				}

				status := s.GetStatus()

				if statusFile != nil {
					statusStr, err := json.MarshalIndent(status, "", "  ")
					if err != nil {
						statusStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(statusStr)
					statusFile.WriteString("\n")
				}

				if s.deps.Telemetry != nil {
					point := influxdb2_write.NewPointWithMeasurement("extension_status").
						AddTag("session", fmt.Sprintf("%d", status.SessionID)).
						AddField("frame", int(status.Frame)).
						AddField("attached", status.Attached).
						AddField("controllers_running", status.ControllersRunning).
						SetTime(status.Time)
					if err := s.deps.Telemetry.WritePoint(context.Background(), telemetry.BucketExtensionPerformance, point); err != nil {
						logger.Error("Error writing status point", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
