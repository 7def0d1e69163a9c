package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/simflight/quadext/internal/dispatcher"
	"github.com/simflight/quadext/internal/model"
	"github.com/simflight/quadext/internal/quadcopter"
	"github.com/simflight/quadext/internal/scene"
)

// RegisterHandlers registers all lifecycle command handlers with the
// dispatcher. The per-step control command is synchronous; bookkeeping
// commands that touch the filesystem are buffered off the hot path.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(":VERSION:", m.handleVersion)

	// Attachment is sync so the instance exists before the first step.
	d.Register(":QUAD:ATTACH:", m.handleAttach, dispatcher.Logged())

	d.Register(":SIM:START:", m.handleSimStart, dispatcher.Logged())
	d.Register(":SIM:STEP:", m.handleSimStep)
	d.Register(":SIM:STOP:", m.handleSimStop, dispatcher.Logged())

	d.Register(":CAM:DUMP:", m.handleCameraDump, dispatcher.Buffered(8), dispatcher.Logged())
}

func (m *Manager) handleVersion(e dispatcher.Event) (any, error) {
	return m.deps.Version, nil
}

// handleAttach binds a quadcopter instance rooted at the object id in
// Args[0]. Objects without the quadcopter tag are rejected.
func (m *Manager) handleAttach(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("missing object id argument")
	}

	id, err := strconv.ParseInt(e.Args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid object id %q: %w", e.Args[0], err)
	}

	obj := scene.NewObject(id)
	if !quadcopter.Query(m.deps.Host, obj) {
		return nil, fmt.Errorf("object %d does not carry the quadcopter tag", id)
	}

	q := quadcopter.New(m.deps.Host, m.deps.LogManager.Logger(), obj)
	m.quads[id] = q

	return id, nil
}

// handleSimStart starts the controllers and opens a storage session.
func (m *Manager) handleSimStart(e dispatcher.Event) (any, error) {
	if len(m.quads) == 0 {
		return nil, ErrNoQuadcopterAttached
	}

	for _, q := range m.quads {
		q.Start()
	}
	if m.deps.Camera != nil {
		m.deps.Camera.Reset()
	}

	// One session per run; the first attached quadcopter names it.
	var first *quadcopter.Quadcopter
	for _, q := range m.quads {
		if first == nil || q.Object().ID() < first.Object().ID() {
			first = q
		}
	}

	s := &model.FlightSession{
		QuadObjectID:     first.Object().ID(),
		StartTime:        time.Now(),
		Bindings:         m.bindingsJSON(first),
		ExtensionVersion: m.deps.Version,
	}

	if m.backend != nil {
		if err := m.backend.StartSession(s); err != nil {
			return nil, fmt.Errorf("failed to start session: %w", err)
		}
	}
	m.deps.SessionCtx.Set(s)

	return s.ID, nil
}

// handleSimStep runs one control tick per attached quadcopter. Args[0], when
// present, is the simulated time in seconds and gates camera dumps.
func (m *Manager) handleSimStep(e dispatcher.Event) (any, error) {
	if len(m.quads) == 0 {
		return nil, ErrNoQuadcopterAttached
	}

	var simTime float64
	if len(e.Args) > 0 {
		simTime, _ = strconv.ParseFloat(e.Args[0], 64)
	}

	frame := m.deps.SessionCtx.NextFrame()

	var firstErr error
	for _, q := range m.quads {
		tick, err := q.Step()

		rec := &model.TickRecord{
			Frame:     frame,
			Time:      time.Now(),
			AltError:  tick.AltError,
			Thrust:    tick.Thrust,
			AlphaCorr: tick.AlphaCorr,
			BetaCorr:  tick.BetaCorr,
			RotCorr:   tick.RotCorr,
			Motor0:    tick.Motors[0],
			Motor1:    tick.Motors[1],
			Motor2:    tick.Motors[2],
			Motor3:    tick.Motors[3],
		}
		if err != nil {
			rec.Aborted = true
			rec.Fault = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}

		m.record(rec)

		if m.deps.Camera != nil {
			m.dumpCamera(q, simTime)
		}
	}

	return frame, firstErr
}

// handleSimStop stops the controllers and closes the storage session.
func (m *Manager) handleSimStop(e dispatcher.Event) (any, error) {
	if len(m.quads) == 0 {
		return nil, ErrNoQuadcopterAttached
	}

	for _, q := range m.quads {
		q.Stop()
	}

	s := m.deps.SessionCtx.Get()
	s.EndTime = time.Now()
	m.deps.SessionCtx.End()

	if m.backend != nil {
		if err := m.backend.EndSession(); err != nil {
			return nil, fmt.Errorf("failed to end session: %w", err)
		}
	}

	return s.ID, nil
}

// handleCameraDump forces an immediate snapshot of the downward camera of
// the quadcopter named in Args[0].
func (m *Manager) handleCameraDump(e dispatcher.Event) (any, error) {
	if m.deps.Camera == nil {
		return nil, fmt.Errorf("camera dumps not configured")
	}
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("missing object id argument")
	}

	id, err := strconv.ParseInt(e.Args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid object id %q: %w", e.Args[0], err)
	}
	q, ok := m.quads[id]
	if !ok {
		return nil, fmt.Errorf("no quadcopter attached for object %d", id)
	}

	var simTime float64
	if len(e.Args) > 1 {
		simTime, _ = strconv.ParseFloat(e.Args[1], 64)
	}

	path, err := m.deps.Camera.DumpNow(q.CameraDown(), id, simTime)
	if err != nil {
		return nil, err
	}

	m.recordDump(&model.CameraDump{
		Camera:  "down",
		SimTime: float32(simTime),
		Path:    path,
	})

	return path, nil
}

// record sends a tick to storage and telemetry, logging failures instead of
// propagating them onto the control path.
func (m *Manager) record(rec *model.TickRecord) {
	if m.backend != nil {
		if err := m.backend.RecordTick(rec); err != nil {
			m.deps.LogManager.WriteLog(":SIM:STEP:", fmt.Sprintf("Failed to record tick: %v", err), "ERROR")
		}
	}
	if m.deps.Telemetry != nil {
		s := m.deps.SessionCtx.Get()
		if err := m.deps.Telemetry.WriteTickPoint(context.Background(), s.ID, rec); err != nil {
			m.deps.LogManager.WriteLog(":SIM:STEP:", fmt.Sprintf("Failed to write tick point: %v", err), "ERROR")
		}
	}
}

// dumpCamera writes a rate-limited snapshot of the downward camera.
func (m *Manager) dumpCamera(q *quadcopter.Quadcopter, simTime float64) {
	path, err := m.deps.Camera.MaybeDump(q.CameraDown(), q.Object().ID(), simTime)
	if err != nil {
		m.deps.LogManager.WriteLog(":SIM:STEP:", fmt.Sprintf("Camera dump failed: %v", err), "ERROR")
		return
	}
	if path == "" {
		return
	}
	m.recordDump(&model.CameraDump{
		Camera:  "down",
		SimTime: float32(simTime),
		Path:    path,
	})
}

func (m *Manager) recordDump(d *model.CameraDump) {
	if m.backend == nil {
		return
	}
	if err := m.backend.RecordCameraDump(d); err != nil {
		m.deps.LogManager.WriteLog(":CAM:DUMP:", fmt.Sprintf("Failed to record camera dump: %v", err), "ERROR")
	}
}

// bindingsJSON serializes the resolved role bindings for the session row.
func (m *Manager) bindingsJSON(q *quadcopter.Quadcopter) datatypes.JSON {
	b := q.Bindings()

	roles := []struct {
		role string
		obj  scene.Object
	}{
		{"quadcopter", b.Quadcopter},
		{"body", b.Body},
		{"target", b.Target},
		{"motor0", b.Motors[0]},
		{"motor1", b.Motors[1]},
		{"motor2", b.Motors[2]},
		{"motor3", b.Motors[3]},
		{"cameraDown", b.CameraDown},
		{"cameraFront", b.CameraFront},
	}

	records := make([]model.RoleBinding, 0, len(roles))
	for _, r := range roles {
		rec := model.RoleBinding{Role: r.role, Bound: r.obj.Valid()}
		if r.obj.Valid() {
			rec.ObjectID = r.obj.ID()
			if name, err := m.deps.Host.Name(r.obj); err == nil {
				rec.Name = name
			}
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
