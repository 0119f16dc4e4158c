//go:build linux

package capture

import (
	"image"

	"github.com/vova616/screenshot"
)

type linuxBackend struct{}

func (l *linuxBackend) captureScreen() (image.Image, error) {
	return screenshot.CaptureScreen()
}

func (l *linuxBackend) captureRect(r image.Rectangle) (image.Image, error) {
	return screenshot.CaptureRect(r)
}

func (l *linuxBackend) cleanup() {}

// New creates a platform-specific frame source.
func New() Source {
	return newBase(&linuxBackend{})
}
