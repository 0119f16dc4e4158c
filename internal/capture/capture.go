// Package capture provides platform-specific acquisition of display
// pixels as frames, with cheap duplicate detection for polling loops.
package capture

import (
	"crypto/md5"
	"image"

	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
)

// Source yields pixel frames from the local display.
type Source interface {
	// Capture grabs the primary display.
	Capture() (*frame.Frame, error)
	// CaptureRegion grabs a sub-rectangle of the primary display.
	CaptureRegion(r frame.Rect) (*frame.Frame, error)
	// CaptureChanged grabs the primary display, reporting false when the
	// content is identical to the previous capture.
	CaptureChanged() (*frame.Frame, bool, error)
	Close()
}

// backend implements platform-specific raw capture.
type backend interface {
	captureScreen() (image.Image, error)
	captureRect(r image.Rectangle) (image.Image, error)
	cleanup()
}

// baseCapturer provides shared frame conversion and hash-based change
// detection over a platform backend.
type baseCapturer struct {
	backend
	lastHash [16]byte
}

func newBase(b backend) *baseCapturer {
	return &baseCapturer{backend: b}
}

func (c *baseCapturer) Capture() (*frame.Frame, error) {
	img, err := c.captureScreen()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "screen capture failed")
	}
	return frame.FromImage(img), nil
}

func (c *baseCapturer) CaptureRegion(r frame.Rect) (*frame.Frame, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	img, err := c.captureRect(r.ImageRect())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "region capture failed")
	}
	return frame.FromImage(img), nil
}

func (c *baseCapturer) CaptureChanged() (*frame.Frame, bool, error) {
	f, err := c.Capture()
	if err != nil {
		return nil, false, err
	}
	hash := md5.Sum(f.Pix)
	if hash == c.lastHash {
		return nil, false, nil
	}
	c.lastHash = hash
	return f, true, nil
}

func (c *baseCapturer) Close() {
	c.cleanup()
}
