package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simflight/quadext/internal/model"
)

// FlightLogExport is the root JSON structure of an exported flight log.
type FlightLogExport struct {
	ExtensionVersion string              `json:"extensionVersion"`
	QuadObjectID     int64               `json:"quadObjectId"`
	StartTime        string              `json:"startTime"`
	EndTime          string              `json:"endTime"`
	EndFrame         uint                `json:"endFrame"`
	Bindings         json.RawMessage     `json:"bindings,omitempty"`
	Ticks            [][]any             `json:"ticks"`
	CameraDumps      []model.CameraDump  `json:"cameraDumps,omitempty"`
}

// exportJSON writes the session data to a (optionally gzipped) JSON file.
// Caller must hold the lock.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := b.session.StartTime.Format("20060102_150405")
	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("flight_%d_%s.json.gz", b.session.QuadObjectID, timestamp)
	} else {
		filename = fmt.Sprintf("flight_%d_%s.json", b.session.QuadObjectID, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() FlightLogExport {
	export := FlightLogExport{
		ExtensionVersion: b.session.ExtensionVersion,
		QuadObjectID:     b.session.QuadObjectID,
		StartTime:        b.session.StartTime.Format("2006-01-02T15:04:05Z07:00"),
		EndTime:          b.session.EndTime.Format("2006-01-02T15:04:05Z07:00"),
		Bindings:         json.RawMessage(b.session.Bindings),
		Ticks:            make([][]any, 0, len(b.ticks)),
		CameraDumps:      b.dumps,
	}

	var maxFrame uint = 0

	// Ticks go out as arrays to keep the log compact at control rates.
	// Format: [frame, altError, thrust, alphaCorr, betaCorr, rotCorr,
	//          [m0, m1, m2, m3], aborted]
	for _, t := range b.ticks {
		row := []any{
			t.Frame,
			t.AltError,
			t.Thrust,
			t.AlphaCorr,
			t.BetaCorr,
			t.RotCorr,
			[]float32{t.Motor0, t.Motor1, t.Motor2, t.Motor3},
			boolToInt(t.Aborted),
		}
		export.Ticks = append(export.Ticks, row)
		if t.Frame > maxFrame {
			maxFrame = t.Frame
		}
	}

	export.EndFrame = maxFrame
	return export
}

func (b *Backend) writeJSON(path string, data FlightLogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func (b *Backend) writeGzipJSON(path string, data FlightLogExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
