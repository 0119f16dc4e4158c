//go:build windows

package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

type windowsBackend struct{}

func (w *windowsBackend) captureScreen() (image.Image, error) {
	return screenshot.CaptureScreen()
}

func (w *windowsBackend) captureRect(r image.Rectangle) (image.Image, error) {
	return screenshot.CaptureRect(r)
}

func (w *windowsBackend) cleanup() {}

// New creates a platform-specific frame source.
func New() Source {
	return newBase(&windowsBackend{})
}
