package worker

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simflight/quadext/internal/camera"
	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/dispatcher"
	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/model"
	"github.com/simflight/quadext/internal/scene"
	scenemem "github.com/simflight/quadext/internal/scene/memory"
	"github.com/simflight/quadext/internal/session"
	storagemem "github.com/simflight/quadext/internal/storage/memory"
)

func tag(role uint32) []byte {
	return customdata.Encode(customdata.Record{role: nil})
}

// harness wires a tagged quadcopter scene, a memory storage backend and a
// dispatcher the way the extension entry point does.
type harness struct {
	sc      *scenemem.Scene
	quad    scene.Object
	backend *storagemem.Backend
	ctx     *session.Context
	mgr     *Manager
	d       *dispatcher.Dispatcher
}

// newHarness builds the fixture. A non-empty camDir enables camera dumps
// into that directory.
func newHarness(t *testing.T, camDir string) *harness {
	t.Helper()

	sc := scenemem.New()
	h := &harness{sc: sc}

	h.quad = sc.AddObject("Quadcopter", scene.None())
	sc.SetCustomData(h.quad, tag(customdata.RoleQuadcopter))
	sc.SetVelocity(h.quad, scene.Vector3{}, scene.Vector3{})

	body := sc.AddObject("Quadcopter_body", h.quad)
	sc.SetCustomData(body, tag(customdata.RoleBody))
	sc.SetPosition(body, scene.World(), scene.Vector3{Z: 0.2})

	motorRoles := [4]uint32{
		customdata.RoleMotor0,
		customdata.RoleMotor1,
		customdata.RoleMotor2,
		customdata.RoleMotor3,
	}
	for _, role := range motorRoles {
		m := sc.AddObject("Quadcopter_propeller", body)
		sc.SetCustomData(m, tag(role))
	}

	camDown := sc.AddObject("Quadcopter_floorCamera", body)
	sc.SetCustomData(camDown, tag(customdata.RoleCameraDown))
	sc.SetImage(camDown, scene.Image{
		Width:  2,
		Height: 2,
		Pixels: make([]float32, 12),
	})

	camFront := sc.AddObject("Quadcopter_frontCamera", body)
	sc.SetCustomData(camFront, tag(customdata.RoleCameraFront))

	target := sc.AddObject("Quadcopter_target", h.quad)
	sc.SetCustomData(target, tag(customdata.RoleTarget))
	sc.SetPosition(target, scene.World(), scene.Vector3{Z: 1.0})

	h.backend = storagemem.New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, h.backend.Init())

	h.ctx = session.NewContext()

	var cam *camera.Dumper
	if camDir != "" {
		cam = camera.NewDumper(sc, config.CameraConfig{Enabled: true, OutputDir: camDir},
			slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	h.mgr = NewManager(Dependencies{
		Host:       sc,
		LogManager: logging.NewSlogManager(),
		SessionCtx: h.ctx,
		Camera:     cam,
		Version:    "0.1.0-test",
	}, h.backend)

	var err error
	h.d, err = dispatcher.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	h.mgr.RegisterHandlers(h.d)

	return h
}

func (h *harness) dispatch(t *testing.T, command string, args ...string) any {
	t.Helper()
	result, err := h.d.Dispatch(dispatcher.Event{Command: command, Args: args})
	require.NoError(t, err, "command %s", command)
	return result
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t, "")

	result := h.dispatch(t, ":VERSION:")
	assert.Equal(t, "0.1.0-test", result)
}

func TestAttachRejectsBadInput(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.d.Dispatch(dispatcher.Event{Command: ":QUAD:ATTACH:"})
	assert.Error(t, err, "missing argument")

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":QUAD:ATTACH:", Args: []string{"abc"}})
	assert.Error(t, err, "non-numeric id")

	// An object without the quadcopter tag cannot be attached.
	plain := h.sc.AddObject("crate", scene.None())
	_, err = h.d.Dispatch(dispatcher.Event{
		Command: ":QUAD:ATTACH:",
		Args:    []string{strconv.FormatInt(plain.ID(), 10)},
	})
	assert.Error(t, err)
	assert.Equal(t, 0, h.mgr.AttachedCount())
}

func TestStepWithoutAttachFails(t *testing.T) {
	h := newHarness(t, "")

	_, err := h.d.Dispatch(dispatcher.Event{Command: ":SIM:STEP:"})
	assert.ErrorIs(t, err, ErrNoQuadcopterAttached)

	_, err = h.d.Dispatch(dispatcher.Event{Command: ":SIM:START:"})
	assert.ErrorIs(t, err, ErrNoQuadcopterAttached)
}

func TestLifecycle(t *testing.T) {
	h := newHarness(t, "")

	h.dispatch(t, ":QUAD:ATTACH:", "1")
	assert.Equal(t, 1, h.mgr.AttachedCount())
	assert.Equal(t, 0, h.mgr.RunningCount())

	h.dispatch(t, ":SIM:START:")
	assert.Equal(t, 1, h.mgr.RunningCount())
	assert.True(t, h.ctx.Active())

	for i := 0; i < 5; i++ {
		result := h.dispatch(t, ":SIM:STEP:", "0.05")
		assert.Equal(t, uint(i+1), result)
	}
	assert.Equal(t, 5, h.backend.TickCount())
	assert.Equal(t, uint(5), h.ctx.Frame())

	h.dispatch(t, ":SIM:STOP:")
	assert.Equal(t, 0, h.mgr.RunningCount())
	assert.False(t, h.ctx.Active())

	// The memory backend exports the flight log on session end.
	path := h.backend.GetExportedFilePath()
	require.NotEmpty(t, path)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestStartRecordsBindings(t *testing.T) {
	h := newHarness(t, "")

	h.dispatch(t, ":QUAD:ATTACH:", "1")
	h.dispatch(t, ":SIM:START:")

	s := h.ctx.Get()
	require.NotNil(t, s)
	assert.Equal(t, int64(1), s.QuadObjectID)
	assert.Equal(t, "0.1.0-test", s.ExtensionVersion)

	var bindings []model.RoleBinding
	require.NoError(t, json.Unmarshal(s.Bindings, &bindings))
	require.Len(t, bindings, 9)

	byRole := make(map[string]model.RoleBinding)
	for _, b := range bindings {
		byRole[b.Role] = b
	}

	assert.True(t, byRole["quadcopter"].Bound)
	assert.Equal(t, int64(1), byRole["quadcopter"].ObjectID)
	assert.Equal(t, "Quadcopter", byRole["quadcopter"].Name)
	assert.True(t, byRole["body"].Bound)
	assert.True(t, byRole["target"].Bound)
	assert.True(t, byRole["motor0"].Bound)
	assert.True(t, byRole["cameraDown"].Bound)
	assert.True(t, byRole["cameraFront"].Bound)
}

func TestStepReportsAbortedTick(t *testing.T) {
	h := newHarness(t, "")

	h.dispatch(t, ":QUAD:ATTACH:", "1")
	h.dispatch(t, ":SIM:START:")

	q, ok := h.mgr.Quadcopter(1)
	require.True(t, ok)
	h.sc.FailOp(q.Bindings().Body, "position", true)

	_, err := h.d.Dispatch(dispatcher.Event{Command: ":SIM:STEP:", Args: []string{"0.05"}})
	assert.Error(t, err)

	// The aborted tick is still recorded.
	assert.Equal(t, 1, h.backend.TickCount())

	// The controller keeps running and recovers next step.
	h.sc.FailOp(q.Bindings().Body, "position", false)
	h.dispatch(t, ":SIM:STEP:", "0.10")
	assert.Equal(t, 2, h.backend.TickCount())
}

func TestRestartResetsCameraRateLimit(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)

	h.dispatch(t, ":QUAD:ATTACH:", "1")
	h.dispatch(t, ":SIM:START:")

	// A dump late in the first run leaves the limiter at simTime 5.
	h.dispatch(t, ":SIM:STEP:", "5")
	_, err := os.Stat(filepath.Join(dir, "cam1_5.ppm"))
	require.NoError(t, err)

	h.dispatch(t, ":SIM:STOP:")
	h.dispatch(t, ":SIM:START:")

	// Simulated time rewinds on restart; the limiter must not carry the
	// previous run's timestamp and suppress early dumps.
	h.dispatch(t, ":SIM:STEP:", "2")
	_, err = os.Stat(filepath.Join(dir, "cam1_2.ppm"))
	assert.NoError(t, err, "dump early in the second run")
}

func TestCameraDumpCommand(t *testing.T) {
	dir := t.TempDir()
	h := newHarness(t, dir)

	h.dispatch(t, ":QUAD:ATTACH:", "1")
	h.dispatch(t, ":SIM:START:")

	// The dump command is buffered, so the dispatch only queues it.
	result := h.dispatch(t, ":CAM:DUMP:", "1", "2")
	assert.Equal(t, "queued", result)

	wantPath := filepath.Join(dir, "cam1_2.ppm")
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(wantPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("camera dump %s never appeared", wantPath)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
