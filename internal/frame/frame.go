// Package frame defines the pixel buffer model shared by detection, OCR, and
// suppression. A Frame is a read-only view over a rectangular RGBA capture.
package frame

import (
	"image"
	"image/draw"

	apperrors "github.com/agentsight/percept/internal/errors"
)

// Frame is an RGBA pixel buffer, row-major, top-left origin.
// Pix holds 4 bytes per pixel; len(Pix) must equal Width*Height*4.
// Frames are not mutated after construction.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// New creates a frame after validating the buffer shape.
func New(width, height int, pix []byte) (*Frame, error) {
	if width < 0 || height < 0 {
		return nil, apperrors.Newf(apperrors.CodeShapeMismatch, "negative dimensions %dx%d", width, height)
	}
	if expected := width * height * 4; len(pix) != expected {
		return nil, apperrors.Newf(apperrors.CodeShapeMismatch,
			"pixel buffer length %d does not match %dx%dx4=%d", len(pix), width, height, expected)
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FromImage converts an image into a frame. *image.RGBA with a packed stride
// is referenced directly; everything else is redrawn into RGBA.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == w*4 && b.Min.X == 0 && b.Min.Y == 0 {
		return &Frame{Width: w, Height: h, Pix: rgba.Pix}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Frame{Width: w, Height: h, Pix: dst.Pix}
}

// At returns the RGBA channels at (x, y). Caller must keep x,y in bounds.
func (f *Frame) At(x, y int) (r, g, b, a uint8) {
	i := (y*f.Width + x) * 4
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3]
}

// RGBA returns the frame as an image sharing the same pixel memory.
func (f *Frame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// PixelCount returns the number of pixels in the frame.
func (f *Frame) PixelCount() int {
	return f.Width * f.Height
}

// Validate re-checks the shape invariant. Frames built through New or
// FromImage always pass; this guards frames assembled field-by-field.
func (f *Frame) Validate() error {
	if f.Width < 0 || f.Height < 0 {
		return apperrors.Newf(apperrors.CodeShapeMismatch, "negative dimensions %dx%d", f.Width, f.Height)
	}
	if expected := f.Width * f.Height * 4; len(f.Pix) != expected {
		return apperrors.Newf(apperrors.CodeShapeMismatch,
			"pixel buffer length %d does not match %dx%dx4=%d", len(f.Pix), f.Width, f.Height, expected)
	}
	return nil
}

// Rect is a sub-region in frame coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ImageRect converts to the stdlib rectangle form.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Validate rejects empty or negative regions.
func (r Rect) Validate() error {
	if r.W <= 0 || r.H <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "region %dx%d must have positive size", r.W, r.H)
	}
	if r.X < 0 || r.Y < 0 {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "region origin (%d,%d) must be non-negative", r.X, r.Y)
	}
	return nil
}
