package ocr

import (
	"context"
	"image"
	"time"

	"github.com/disintegration/imaging"

	"github.com/agentsight/percept/internal/capture"
	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
	"github.com/agentsight/percept/internal/resilience"
	"github.com/agentsight/percept/internal/window"
)

// Reading is the text extracted from one window. Region is nil for
// whole-window reads.
type Reading struct {
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
	Region      *frame.Rect `json:"region,omitempty"`
	WindowTitle string      `json:"window_title"`
	CapturedAt  time.Time   `json:"captured_at"`
}

// BatchResult pairs one batched query with its reading or error.
type BatchResult struct {
	Query   []string `json:"query"`
	Reading *Reading `json:"reading,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Reader captures window pixels and runs them through the engine. A
// breaker sheds recognition attempts while the engine binary is missing.
type Reader struct {
	source  capture.Source
	windows window.Manager
	engine  Engine
	breaker *resilience.Breaker
	timeout time.Duration
}

// NewReader wires a reader over its capture, window, and engine backends.
func NewReader(src capture.Source, wm window.Manager, engine Engine, timeout time.Duration) *Reader {
	return &Reader{
		source:  src,
		windows: wm,
		engine:  engine,
		breaker: resilience.New(resilience.FastConfig()),
		timeout: timeout,
	}
}

// ReadWindow extracts text from the whole window matching the fragments.
func (r *Reader) ReadWindow(ctx context.Context, fragments []string) (*Reading, error) {
	reading, _, err := r.read(ctx, fragments, nil)
	return reading, err
}

// ReadWindowFrame is ReadWindow plus the captured frame, for callers that
// evaluate pixel rules against the same capture the text came from.
func (r *Reader) ReadWindowFrame(ctx context.Context, fragments []string) (*Reading, *frame.Frame, error) {
	return r.read(ctx, fragments, nil)
}

// ReadWindowRegion extracts text from one region of the matched window.
// The region is relative to the window's own pixels.
func (r *Reader) ReadWindowRegion(ctx context.Context, fragments []string, region frame.Rect) (*Reading, error) {
	reading, _, err := r.read(ctx, fragments, &region)
	return reading, err
}

func (r *Reader) read(ctx context.Context, fragments []string, region *frame.Rect) (*Reading, *frame.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	w, f, err := r.captureWindow(ctx, fragments)
	if err != nil {
		return nil, nil, err
	}

	img, err := prepare(f, region)
	if err != nil {
		return nil, nil, err
	}

	text, err := r.recognize(ctx, img)
	if err != nil {
		return nil, nil, err
	}

	reading := &Reading{
		Text:        text,
		Confidence:  estimateConfidence(text),
		Region:      region,
		WindowTitle: w.Title,
		CapturedAt:  time.Now(),
	}
	return reading, f, nil
}

// ReadWindowRegions extracts text from several regions of one window
// capture. Regions run against the engine sequentially in caller order;
// the first region error fails the whole read. One timeout budget covers
// the batch.
func (r *Reader) ReadWindowRegions(ctx context.Context, fragments []string, regions []frame.Rect) ([]Reading, error) {
	if len(regions) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "no regions given")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	w, f, err := r.captureWindow(ctx, fragments)
	if err != nil {
		return nil, err
	}

	readings := make([]Reading, 0, len(regions))
	for i := range regions {
		img, err := prepare(f, &regions[i])
		if err != nil {
			return nil, err
		}
		text, err := r.recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		readings = append(readings, Reading{
			Text:        text,
			Confidence:  estimateConfidence(text),
			Region:      &regions[i],
			WindowTitle: w.Title,
			CapturedAt:  time.Now(),
		})
	}
	return readings, nil
}

// ReadWindows reads several windows in sequence, one result per query.
// A failed query carries its error; the remaining queries still run.
func (r *Reader) ReadWindows(ctx context.Context, queries [][]string) []BatchResult {
	results := make([]BatchResult, len(queries))
	for i, q := range queries {
		results[i].Query = q
		reading, err := r.ReadWindow(ctx, q)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Reading = reading
	}
	return results
}

// captureWindow focuses the matched window just long enough to grab its
// pixels, then hands focus back.
func (r *Reader) captureWindow(ctx context.Context, fragments []string) (*window.Window, *frame.Frame, error) {
	w, err := window.Find(r.windows, fragments)
	if err != nil {
		return nil, nil, err
	}

	var f *frame.Frame
	err = window.WithFocus(ctx, r.windows, *w, func() error {
		var captureErr error
		f, captureErr = r.source.CaptureRegion(w.Rect())
		return captureErr
	})
	if err != nil {
		return nil, nil, err
	}
	return w, f, nil
}

func (r *Reader) recognize(ctx context.Context, img image.Image) (string, error) {
	if err := r.breaker.Allow(); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeOCRUnavailable, "ocr engine unavailable")
	}

	text, err := r.engine.Recognize(ctx, img)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeOCRUnavailable) {
			r.breaker.Failure()
		}
		return "", err
	}
	r.breaker.Success()
	return text, nil
}

// prepare crops the optional region and grayscales for recognition.
func prepare(f *frame.Frame, region *frame.Rect) (image.Image, error) {
	img := f.RGBA()
	if region == nil {
		return imaging.Grayscale(img), nil
	}
	if err := checkRegion(*region, f.Width, f.Height); err != nil {
		return nil, err
	}
	return imaging.Grayscale(imaging.Crop(img, region.ImageRect())), nil
}

func checkRegion(r frame.Rect, width, height int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.X+r.W > width || r.Y+r.H > height {
		return apperrors.Newf(apperrors.CodeInvalidArgument,
			"region %dx%d at (%d, %d) exceeds %dx%d frame", r.W, r.H, r.X, r.Y, width, height)
	}
	return nil
}
