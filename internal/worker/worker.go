package worker

import (
	"fmt"

	"github.com/simflight/quadext/internal/camera"
	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/quadcopter"
	"github.com/simflight/quadext/internal/scene"
	"github.com/simflight/quadext/internal/session"
	"github.com/simflight/quadext/internal/storage"
	"github.com/simflight/quadext/internal/telemetry"
)

// ErrNoQuadcopterAttached is returned when a step or stop command arrives
// before any quadcopter has been attached.
var ErrNoQuadcopterAttached = fmt.Errorf("no quadcopter attached")

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Host       scene.Host
	LogManager *logging.SlogManager
	SessionCtx *session.Context
	Telemetry  *telemetry.Manager // optional
	Camera     *camera.Dumper     // optional
	Version    string
}

// Manager owns the attached quadcopters and drives them from dispatcher
// commands, recording each tick to the storage backend.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	quads map[int64]*quadcopter.Quadcopter
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
		quads:   make(map[int64]*quadcopter.Quadcopter),
	}
}

// Quadcopter returns the attached quadcopter for a scene object id.
func (m *Manager) Quadcopter(id int64) (*quadcopter.Quadcopter, bool) {
	q, ok := m.quads[id]
	return q, ok
}

// AttachedCount returns the number of attached quadcopters.
func (m *Manager) AttachedCount() int {
	return len(m.quads)
}

// RunningCount returns the number of quadcopters with a running controller.
func (m *Manager) RunningCount() int {
	n := 0
	for _, q := range m.quads {
		if q.Running() {
			n++
		}
	}
	return n
}
