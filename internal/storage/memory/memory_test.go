package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/model"
)

func newTestSession() *model.FlightSession {
	return &model.FlightSession{
		QuadObjectID:     42,
		StartTime:        time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		ExtensionVersion: "0.1.0",
		Bindings:         datatypes.JSON(`[{"role":"quadcopter","bound":true,"objectId":42}]`),
	}
}

func TestStartSessionResetsData(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	if err := b.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if err := b.StartSession(newTestSession()); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	b.RecordTick(&model.TickRecord{Frame: 1})
	b.RecordTick(&model.TickRecord{Frame: 2})

	if b.TickCount() != 2 {
		t.Errorf("expected 2 ticks, got %d", b.TickCount())
	}

	// A new session discards data from the previous one.
	if err := b.StartSession(newTestSession()); err != nil {
		t.Fatalf("second StartSession failed: %v", err)
	}
	if b.TickCount() != 0 {
		t.Errorf("expected 0 ticks after restart, got %d", b.TickCount())
	}
}

func TestRecordTickStampsSessionID(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	b.StartSession(newTestSession())

	tick := &model.TickRecord{Frame: 7, Thrust: 6.1}
	if err := b.RecordTick(tick); err != nil {
		t.Fatalf("RecordTick failed: %v", err)
	}
	if tick.SessionID != 1 {
		t.Errorf("expected session ID 1, got %d", tick.SessionID)
	}
}

func TestEndSessionWithoutStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	if err := b.EndSession(); err == nil {
		t.Error("expected error ending a session that was never started")
	}
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: false})

	session := newTestSession()
	b.StartSession(session)
	b.RecordTick(&model.TickRecord{
		Frame:    1,
		Time:     session.StartTime,
		AltError: 0.8,
		Thrust:   6.135,
		Motor0:   6.135, Motor1: 6.135, Motor2: 6.135, Motor3: 6.135,
	})
	b.RecordTick(&model.TickRecord{Frame: 2, Aborted: true, Fault: "read failed"})
	b.RecordCameraDump(&model.CameraDump{Camera: "down", Path: "cam1_42.ppm", Width: 4, Height: 4})

	session.EndTime = session.StartTime.Add(10 * time.Second)
	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	if path == "" {
		t.Fatal("expected exported file path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}

	var export FlightLogExport
	if err := json.Unmarshal(data, &export); err != nil {
		t.Fatalf("failed to parse export: %v", err)
	}

	if export.QuadObjectID != 42 {
		t.Errorf("quadObjectId = %d, want 42", export.QuadObjectID)
	}
	if export.ExtensionVersion != "0.1.0" {
		t.Errorf("extensionVersion = %q", export.ExtensionVersion)
	}
	if len(export.Ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(export.Ticks))
	}
	if export.EndFrame != 2 {
		t.Errorf("endFrame = %d, want 2", export.EndFrame)
	}
	if len(export.CameraDumps) != 1 {
		t.Errorf("expected 1 camera dump, got %d", len(export.CameraDumps))
	}

	// Tick rows are compact arrays: frame first, aborted flag last.
	row := export.Ticks[1]
	if len(row) != 8 {
		t.Fatalf("expected 8 tick columns, got %d", len(row))
	}
	if frame, ok := row[0].(float64); !ok || frame != 2 {
		t.Errorf("frame column = %v, want 2", row[0])
	}
	if aborted, ok := row[7].(float64); !ok || aborted != 1 {
		t.Errorf("aborted column = %v, want 1", row[7])
	}
}

func TestExportGzip(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})

	session := newTestSession()
	b.StartSession(session)
	b.RecordTick(&model.TickRecord{Frame: 1})
	session.EndTime = session.StartTime.Add(time.Second)

	if err := b.EndSession(); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	path := b.GetExportedFilePath()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open export: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("export is not valid gzip: %v", err)
	}
	defer gz.Close()

	var export FlightLogExport
	if err := json.NewDecoder(gz).Decode(&export); err != nil {
		t.Fatalf("failed to decode gzipped export: %v", err)
	}
	if len(export.Ticks) != 1 {
		t.Errorf("expected 1 tick, got %d", len(export.Ticks))
	}
}
