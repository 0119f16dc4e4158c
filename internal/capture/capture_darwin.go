//go:build darwin

package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

type darwinBackend struct{ tempDir string }

func (d *darwinBackend) captureScreen() (image.Image, error) {
	return d.grab("-x", "-t", "png", "-m")
}

func (d *darwinBackend) captureRect(r image.Rectangle) (image.Image, error) {
	region := fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	return d.grab("-x", "-t", "png", "-R", region)
}

func (d *darwinBackend) grab(args ...string) (image.Image, error) {
	tmpFile := filepath.Join(d.tempDir, "frame.png")
	cmd := exec.Command("screencapture", append(args, tmpFile)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w (%s)", err, stderr.String())
	}

	fh, err := os.Open(tmpFile)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	defer fh.Close()
	defer os.Remove(tmpFile)

	img, err := png.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	return img, nil
}

func (d *darwinBackend) cleanup() {
	if d.tempDir != "" {
		os.RemoveAll(d.tempDir)
	}
}

// New creates a platform-specific frame source.
func New() Source {
	tmpDir, err := os.MkdirTemp("", "percept-capture-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&darwinBackend{tempDir: tmpDir})
}
