// Command quad_extension is a standalone harness for the extension: it
// builds a synthetic scene with a tagged quadcopter, runs a fixed-step
// simulation loop through the dispatcher, and exercises the storage,
// telemetry and monitor services the same way a host simulation would.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/simflight/quadext/internal/api"
	"github.com/simflight/quadext/internal/camera"
	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/customdata"
	"github.com/simflight/quadext/internal/dispatcher"
	"github.com/simflight/quadext/internal/logging"
	"github.com/simflight/quadext/internal/monitor"
	intOtel "github.com/simflight/quadext/internal/otel"
	"github.com/simflight/quadext/internal/scene"
	scenememory "github.com/simflight/quadext/internal/scene/memory"
	"github.com/simflight/quadext/internal/session"
	"github.com/simflight/quadext/internal/storage"
	"github.com/simflight/quadext/internal/telemetry"
	"github.com/simflight/quadext/internal/worker"
	"github.com/simflight/quadext/pkg/simiface"
)

// CurrentExtensionVersion can be overridden at build time via ldflags.
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "quad_extension"
)

var (
	SlogManager *logging.SlogManager
	Logger      *slog.Logger

	OTelProvider *intOtel.Provider

	eventDispatcher *dispatcher.Dispatcher
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	telemetryMgr    *telemetry.Manager
	storageBackend  storage.Backend
	sessionCtx      *session.Context

	sessionStartTime time.Time = time.Now()
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "quad_extension: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logFile, err := setupLogging()
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	host := buildDemoScene()

	if err := startServices(host); err != nil {
		return err
	}
	defer shutdownServices()

	return runDemoLoop(host)
}

// setupLogging loads config and wires the slog manager, optionally with a
// GELF writer and the OTel log bridge.
func setupLogging() (*os.File, error) {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(os.Stderr, nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load("."); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	logFilePath := logging.LogFilePath(logsDir, ExtensionName, sessionStartTime)
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", logFilePath)
		return nil, err
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", logFilePath)
		}
	}

	var gelfWriter = logging.NewGelfWriter("")
	if viper.GetBool("graylog.enabled") {
		gelfWriter = logging.NewGelfWriter(viper.GetString("graylog.address"))
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logFile, gelfWriter, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", logFilePath, "version", CurrentExtensionVersion, "buildDate", BuildDate)

	return logFile, nil
}

// startServices wires the dispatcher, storage backend, telemetry, worker
// manager and monitor, and registers everything with the host surface.
func startServices(host scene.Host) error {
	simiface.SetVersion(CurrentExtensionVersion)

	dispatcherLogger := logging.NewDispatcherLogger(zerolog.New(os.Stderr).With().Timestamp().Logger())
	var err error
	eventDispatcher, err = dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	simiface.SetDispatcher(eventDispatcher)

	sessionCtx = session.NewContext()

	storageCfg := config.GetStorageConfig()
	storageBackend, err = storage.NewBackend(storageCfg, SlogManager)
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := storageBackend.Init(); err != nil {
		return fmt.Errorf("failed to init storage backend: %w", err)
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	if viper.GetBool("influx.enabled") {
		backupPath := filepath.Join(viper.GetString("logsDir"), "telemetry_backup.gz")
		telemetryMgr = telemetry.NewManager(
			zerolog.New(os.Stderr).With().Timestamp().Logger(),
			backupPath,
		)
		if err := telemetryMgr.Connect(); err != nil {
			Logger.Warn("Telemetry disabled", "error", err)
			telemetryMgr = nil
		}
	}

	var camDumper *camera.Dumper
	camCfg := config.GetCameraConfig()
	if camCfg.Enabled {
		camDumper = camera.NewDumper(host, camCfg, Logger)
	}

	workerManager = worker.NewManager(worker.Dependencies{
		Host:       host,
		LogManager: SlogManager,
		SessionCtx: sessionCtx,
		Telemetry:  telemetryMgr,
		Camera:     camDumper,
		Version:    CurrentExtensionVersion,
	}, storageBackend)
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Worker handlers registered with dispatcher")

	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager:    SlogManager,
		SessionCtx:    sessionCtx,
		WorkerManager: workerManager,
		Telemetry:     telemetryMgr,
		StatusDir:     viper.GetString("logsDir"),
	})
	if !monitorService.IsRunning() {
		monitorService.Start()
	}

	return nil
}

func shutdownServices() {
	if monitorService != nil {
		monitorService.Stop()
	}
	if storageBackend != nil {
		if err := storageBackend.Close(); err != nil {
			Logger.Error("Error closing storage backend", "error", err)
		}
	}
	if telemetryMgr != nil {
		telemetryMgr.Close()
	}
	if OTelProvider != nil {
		OTelProvider.Shutdown(context.Background())
	}
	SlogManager.Flush(context.Background())
}

// tag encodes a single role tag blob.
func tag(role uint32) []byte {
	return customdata.Encode(customdata.Record{role: nil})
}

// buildDemoScene constructs a hovering quadcopter 0.8m below its target so
// the controller has work to do from the first tick.
func buildDemoScene() *scenememory.Scene {
	sc := scenememory.New()

	quad := sc.AddObject("Quadcopter", scene.None())
	sc.SetCustomData(quad, tag(customdata.RoleQuadcopter))
	sc.SetPosition(quad, scene.World(), scene.Vector3{X: 0, Y: 0, Z: 0.2})

	body := sc.AddObject("Quadcopter_body", quad)
	sc.SetCustomData(body, tag(customdata.RoleBody))
	sc.SetPosition(body, scene.World(), scene.Vector3{X: 0, Y: 0, Z: 0.2})
	sc.SetVelocity(body, scene.Vector3{}, scene.Vector3{})

	motorRoles := []uint32{
		customdata.RoleMotor0,
		customdata.RoleMotor1,
		customdata.RoleMotor2,
		customdata.RoleMotor3,
	}
	for i, role := range motorRoles {
		m := sc.AddObject(fmt.Sprintf("Quadcopter_propeller%d", i), body)
		sc.SetCustomData(m, tag(role))
	}

	camDown := sc.AddObject("Quadcopter_floorCamera", body)
	sc.SetCustomData(camDown, tag(customdata.RoleCameraDown))
	sc.SetImage(camDown, scene.Image{
		Width:  4,
		Height: 4,
		Pixels: make([]float32, 4*4*3),
	})

	camFront := sc.AddObject("Quadcopter_frontCamera", body)
	sc.SetCustomData(camFront, tag(customdata.RoleCameraFront))

	target := sc.AddObject("Quadcopter_target", quad)
	sc.SetCustomData(target, tag(customdata.RoleTarget))
	sc.SetPosition(target, scene.World(), scene.Vector3{X: 0, Y: 0, Z: 1.0})

	return sc
}

// runDemoLoop drives the dispatcher the way a host plugin shim would:
// attach, start, fixed-step control, stop.
func runDemoLoop(host scene.Host) error {
	Logger.Info("Version handshake", "version", simiface.Version())

	// Object 1 is the quadcopter root in the demo scene.
	resp := simiface.CallArgs(":QUAD:ATTACH:", []string{"1"})
	Logger.Info("Attach", "response", resp)

	resp = simiface.Call(":SIM:START:")
	Logger.Info("Simulation started", "response", resp)

	const dt = 0.05
	const steps = 200

	for i := 0; i < steps; i++ {
		simTime := float64(i) * dt
		resp = simiface.CallArgs(":SIM:STEP:", []string{fmt.Sprintf("%f", simTime)})
	}
	Logger.Info("Simulation stepped", "steps", steps, "lastResponse", resp)

	resp = simiface.Call(":SIM:STOP:")
	Logger.Info("Simulation stopped", "response", resp)

	if exp, ok := storageBackend.(storage.Exportable); ok {
		path := exp.GetExportedFilePath()
		Logger.Info("Flight log exported", "path", path)
		uploadFlightLog(path)
	}

	return nil
}

// uploadFlightLog pushes the exported flight log to the collection server,
// when one is configured.
func uploadFlightLog(path string) {
	if !viper.GetBool("api.enabled") || path == "" {
		return
	}

	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		Logger.Warn("Collection server unreachable, skipping upload", "error", err)
		return
	}

	s := sessionCtx.Get()
	meta := api.UploadMetadata{
		Version: CurrentExtensionVersion,
		Tag:     viper.GetString("api.tag"),
	}
	if s != nil {
		meta.QuadObjectID = s.QuadObjectID
		meta.Duration = s.EndTime.Sub(s.StartTime).Seconds()
	}

	if err := client.Upload(path, meta); err != nil {
		Logger.Error("Flight log upload failed", "error", err, "path", path)
		return
	}
	Logger.Info("Flight log uploaded", "path", path)
}
