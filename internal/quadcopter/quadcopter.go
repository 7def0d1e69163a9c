// Package quadcopter binds a tagged quadcopter model in the host scene to
// its structural roles and runs the cascaded PID flight controller that
// tracks the target object.
package quadcopter

import (
	"log/slog"

	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/locator"
	"github.com/simflight/quadext/internal/scene"
)

// Bindings holds the objects resolved for each structural role. Any of the
// eight member roles may be absent; the controller skips the behavior of
// roles it could not bind.
type Bindings struct {
	Quadcopter  scene.Object
	Body        scene.Object
	Target      scene.Object
	Motors      [4]scene.Object
	CameraDown  scene.Object
	CameraFront scene.Object
}

// Quadcopter is the long-lived control entity for one quadcopter instance.
// It holds non-owning handles into the host scene and the controller's
// inter-tick memory.
type Quadcopter struct {
	host   scene.Host
	logger *slog.Logger

	bindings Bindings
	gains    Gains

	running bool
	state   ControllerState
}

// Query reports whether the object itself (not its descendants) carries the
// quadcopter role tag. The host uses this to decide whether to construct a
// Quadcopter for an object at all.
func Query(sc scene.Scene, obj scene.Object) bool {
	return locator.New(sc, nil).HasField(obj, customdata.RoleQuadcopter)
}

// New binds a quadcopter instance rooted at obj. The caller is expected to
// have confirmed the root via Query. Roles that cannot be found in the
// subtree bind to the absent handle; construction still succeeds.
func New(host scene.Host, logger *slog.Logger, obj scene.Object) *Quadcopter {
	if logger == nil {
		logger = slog.Default()
	}

	loc := locator.New(host, logger)

	q := &Quadcopter{
		host:   host,
		logger: logger,
		gains:  DefaultGains(),
	}

	q.bindings = Bindings{
		Quadcopter:  obj,
		Body:        loc.FindByField(obj, customdata.RoleBody),
		Target:      loc.FindByField(obj, customdata.RoleTarget),
		CameraDown:  loc.FindByField(obj, customdata.RoleCameraDown),
		CameraFront: loc.FindByField(obj, customdata.RoleCameraFront),
	}
	q.bindings.Motors[0] = loc.FindByField(obj, customdata.RoleMotor0)
	q.bindings.Motors[1] = loc.FindByField(obj, customdata.RoleMotor1)
	q.bindings.Motors[2] = loc.FindByField(obj, customdata.RoleMotor2)
	q.bindings.Motors[3] = loc.FindByField(obj, customdata.RoleMotor3)

	logger.Info("Found quadcopter", "object", obj.ID())
	q.logBinding("quadcopter", q.bindings.Quadcopter)
	q.logBinding("body", q.bindings.Body)
	q.logBinding("target", q.bindings.Target)
	q.logBinding("motor0", q.bindings.Motors[0])
	q.logBinding("motor1", q.bindings.Motors[1])
	q.logBinding("motor2", q.bindings.Motors[2])
	q.logBinding("motor3", q.bindings.Motors[3])
	q.logBinding("cameraDown", q.bindings.CameraDown)
	q.logBinding("cameraFront", q.bindings.CameraFront)

	return q
}

func (q *Quadcopter) logBinding(role string, obj scene.Object) {
	if !obj.Valid() {
		q.logger.Info("Role binding", "role", role, "bound", false)
		return
	}

	name, err := q.host.Name(obj)
	if err != nil {
		q.logger.Info("Role binding", "role", role, "bound", true, "id", obj.ID())
		return
	}
	q.logger.Info("Role binding", "role", role, "bound", true, "id", obj.ID(), "name", name)
}

// Object returns the root object this instance is bound to.
func (q *Quadcopter) Object() scene.Object {
	return q.bindings.Quadcopter
}

// Bindings returns the resolved role bindings.
func (q *Quadcopter) Bindings() Bindings {
	return q.bindings
}

// CameraDown returns the downward-facing vision sensor, if bound.
func (q *Quadcopter) CameraDown() scene.Object {
	return q.bindings.CameraDown
}

// CameraFront returns the forward-facing vision sensor, if bound.
func (q *Quadcopter) CameraFront() scene.Object {
	return q.bindings.CameraFront
}
