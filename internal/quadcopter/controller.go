package quadcopter

import (
	"fmt"

	"github.com/simflight/quadext/internal/scene"
)

// Gains holds the tuned control constants. The values were tuned empirically
// against the exact arithmetic in pidControl; changing either invalidates
// the other.
type Gains struct {
	P          float32
	I          float32
	D          float32
	V          float32
	BaseThrust float32
}

// DefaultGains returns the tuned constants for the stock quadcopter model.
func DefaultGains() Gains {
	return Gains{
		P:          1.0,
		I:          0.0,
		D:          0.0,
		V:          -2.0,
		BaseThrust: 5.335,
	}
}

// ControllerState is the controller's inter-tick memory. It is zeroed on
// every simulation start so no values leak across a stop/start boundary.
type ControllerState struct {
	Cumul      float32 // accumulated altitude error
	LastError  float32 // previous tick altitude error
	PrevAlphaE float32 // previous tick roll error term
	PrevBetaE  float32 // previous tick pitch error term
	PrevSpX    float32 // previous tick horizontal setpoint X
	PrevSpY    float32 // previous tick horizontal setpoint Y
	PrevYaw    float32 // previous tick yaw error
}

// Tick captures the quantities computed during one control step, for the
// flight log and telemetry sinks.
type Tick struct {
	AltError  float32
	Thrust    float32
	AlphaCorr float32
	BetaCorr  float32
	RotCorr   float32
	Motors    [4]float32
}

// Start transitions the controller to Running and resets all inter-tick
// memory to zero, regardless of what a previous run left behind.
func (q *Quadcopter) Start() {
	q.state = ControllerState{}
	q.running = true
	q.logger.Debug("Simulation started", "object", q.bindings.Quadcopter.ID())
}

// Stop transitions the controller back to Idle. No further cleanup; the
// state is discarded on the next Start.
func (q *Quadcopter) Stop() {
	q.running = false
	q.logger.Debug("Simulation stopped", "object", q.bindings.Quadcopter.ID())
}

// Running reports whether a simulation run is in progress.
func (q *Quadcopter) Running() bool {
	return q.running
}

// State returns a copy of the controller's inter-tick memory.
func (q *Quadcopter) State() ControllerState {
	return q.state
}

// Step runs one control tick. Outside the Running state it is a no-op. A
// failed host read aborts the remainder of the tick before any motor write;
// the controller resumes normally on the next tick.
func (q *Quadcopter) Step() (Tick, error) {
	if !q.running {
		return Tick{}, nil
	}
	return q.pidControl()
}

// pidControl is the per-tick cascaded PID law, ported from the original
// target-follower script. All arithmetic is single precision and the
// operation order is load-bearing: the gains were tuned against exactly
// this sequence.
func (q *Quadcopter) pidControl() (Tick, error) {
	g := q.gains
	body := q.bindings.Body

	// Vertical control.
	targetPos, err := q.host.Position(q.bindings.Target, scene.World())
	if err != nil {
		return Tick{}, q.tickFailed("target position", err)
	}
	pos, err := q.host.Position(body, scene.World())
	if err != nil {
		return Tick{}, q.tickFailed("body position", err)
	}
	vel, _, err := q.host.Velocity(q.bindings.Quadcopter)
	if err != nil {
		return Tick{}, q.tickFailed("velocity", err)
	}

	altError := targetPos.Z - pos.Z
	q.state.Cumul += altError
	pv := g.P * altError
	thrust := g.BaseThrust + pv + g.I*q.state.Cumul + g.D*(altError-q.state.LastError) + vel.Z*g.V
	q.state.LastError = altError

	// Horizontal control.
	sp, err := q.host.Position(q.bindings.Target, body)
	if err != nil {
		return Tick{}, q.tickFailed("relative target position", err)
	}
	m, err := q.host.OrientationMatrix(body, scene.World())
	if err != nil {
		return Tick{}, q.tickFailed("body matrix", err)
	}
	vx := q.host.TransformVector(m, scene.Vector3{X: 1})
	vy := q.host.TransformVector(m, scene.Vector3{Y: 1})

	alphaE := vy.Z - m[11]
	alphaCorr := 0.25*alphaE + 2.1*(alphaE-q.state.PrevAlphaE)
	betaE := vx.Z - m[11]
	betaCorr := -0.25*betaE - 2.1*(betaE-q.state.PrevBetaE)

	q.state.PrevAlphaE = alphaE
	q.state.PrevBetaE = betaE

	alphaCorr = alphaCorr + sp.Y*0.005 + 1.0*(sp.Y-q.state.PrevSpY)
	betaCorr = betaCorr - sp.X*0.005 - 1.0*(sp.X-q.state.PrevSpX)
	q.state.PrevSpX = sp.X
	q.state.PrevSpY = sp.Y

	// Rotational control.
	euler, err := q.host.OrientationEuler(body, q.bindings.Target)
	if err != nil {
		return Tick{}, q.tickFailed("relative orientation", err)
	}
	rotCorr := euler.G*0.1 + 2.0*(euler.G-q.state.PrevYaw)
	q.state.PrevYaw = euler.G

	tick := Tick{
		AltError:  altError,
		Thrust:    thrust,
		AlphaCorr: alphaCorr,
		BetaCorr:  betaCorr,
		RotCorr:   rotCorr,
	}
	tick.Motors[0] = thrust * (1.0 - alphaCorr + betaCorr + rotCorr)
	tick.Motors[1] = thrust * (1.0 - alphaCorr - betaCorr - rotCorr)
	tick.Motors[2] = thrust * (1.0 + alphaCorr - betaCorr + rotCorr)
	tick.Motors[3] = thrust * (1.0 + alphaCorr + betaCorr - rotCorr)

	for n := 0; n < 4; n++ {
		q.SetMotorCommand(n, tick.Motors[n])
	}

	return tick, nil
}

func (q *Quadcopter) tickFailed(what string, err error) error {
	q.logger.Warn("Control tick aborted", "read", what, "error", err)
	return fmt.Errorf("reading %s: %w", what, err)
}

// SetMotorCommand delegates a thrust command to the actuator for the motor
// at the given index. Indices outside 0..3 and unbound motors are no-ops.
func (q *Quadcopter) SetMotorCommand(n int, velocity float32) {
	if n < 0 || n > 3 {
		return
	}
	motor := q.bindings.Motors[n]
	if !motor.Valid() {
		return
	}
	if err := q.host.SetMotorCommand(motor, velocity); err != nil {
		q.logger.Warn("Setting motor command failed", "motor", n, "error", err)
	}
}

// MotorCommand reads back the current command of the motor at the given
// index. Out-of-range indices and unbound motors read as zero.
func (q *Quadcopter) MotorCommand(n int) float32 {
	if n < 0 || n > 3 {
		return 0
	}
	motor := q.bindings.Motors[n]
	if !motor.Valid() {
		return 0
	}
	v, err := q.host.MotorCommand(motor)
	if err != nil {
		q.logger.Warn("Reading motor command failed", "motor", n, "error", err)
		return 0
	}
	return v
}
