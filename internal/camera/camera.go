// Package camera writes debug images from scene vision sensors as binary
// PPM files. Dumps are rate limited so they stay off the control hot path.
package camera

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/simflight/quadext/internal/config"
	"github.com/simflight/quadext/internal/scene"
)

// Dumper writes rate-limited PPM snapshots of a vision sensor.
type Dumper struct {
	sc           scene.Scene
	cfg          config.CameraConfig
	logger       *slog.Logger
	lastSaveTime float64
}

// NewDumper creates a camera dumper. The zero interval from config is
// treated as one dump per simulated second.
func NewDumper(sc scene.Scene, cfg config.CameraConfig, logger *slog.Logger) *Dumper {
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 1.0
	}
	return &Dumper{
		sc:     sc,
		cfg:    cfg,
		logger: logger,
	}
}

// Reset zeroes the rate-limit timestamp. Called at the start of every
// simulation run: simulated time rewinds to zero on restart, so a timestamp
// from a previous run would suppress dumps until it was caught up to.
func (d *Dumper) Reset() {
	d.lastSaveTime = 0
}

// MaybeDump writes a snapshot of cam if at least the configured interval of
// simulated time passed since the last dump. Returns the written path, or
// empty when skipped.
func (d *Dumper) MaybeDump(cam scene.Object, quadID int64, simTime float64) (string, error) {
	if !d.cfg.Enabled || !cam.Valid() {
		return "", nil
	}
	if simTime-d.lastSaveTime <= d.cfg.IntervalSeconds {
		return "", nil
	}
	d.lastSaveTime = simTime

	return d.DumpNow(cam, quadID, simTime)
}

// DumpNow writes a snapshot immediately, ignoring the rate limit and the
// enabled flag. Used by the explicit dump command.
func (d *Dumper) DumpNow(cam scene.Object, quadID int64, simTime float64) (string, error) {
	if !cam.Valid() {
		return "", fmt.Errorf("camera object not bound")
	}

	filename := fmt.Sprintf("cam%d_%d.ppm", quadID, int(simTime))
	path := filepath.Join(d.cfg.OutputDir, filename)

	if err := d.WritePPM(path, cam); err != nil {
		return "", err
	}

	d.logger.Debug("saved camera image", "path", path, "simTime", simTime)
	return path, nil
}

// WritePPM reads the sensor image and writes it as a binary P6 PPM file.
// Pixel component floats are scaled from [0, 1] to byte range.
func (d *Dumper) WritePPM(path string, cam scene.Object) error {
	img, err := d.sc.VisionSensorImage(cam)
	if err != nil {
		return fmt.Errorf("getting camera image: %w", err)
	}

	pixelSize := img.Width * img.Height * 3
	if len(img.Pixels) < pixelSize {
		return fmt.Errorf("camera image truncated: have %d floats, want %d", len(img.Pixels), pixelSize)
	}

	data := make([]byte, pixelSize)
	for i := 0; i < pixelSize; i++ {
		data[i] = uint8(img.Pixels[i] * 255.0)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "P6 %d %d 255\n", img.Width, img.Height)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing image data: %w", err)
	}
	return w.Flush()
}

// LastSaveTime returns the simulated time of the last dump.
func (d *Dumper) LastSaveTime() float64 {
	return d.lastSaveTime
}
