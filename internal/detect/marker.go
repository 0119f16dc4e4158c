package detect

import (
	"math"
	"strings"

	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
)

// Marker kinds.
const (
	KindArrow     = "arrow"
	KindHighlight = "highlight"
)

// Marker is a named color signature with the pixel count a fully visible
// instance is expected to produce.
type Marker struct {
	Kind     string `json:"kind"`
	Target   Target `json:"target"`
	Expected int    `json:"expected"`
}

// ArrowMarker returns the preset for the pointer arrow overlay.
func ArrowMarker() Marker {
	return Marker{
		Kind:     KindArrow,
		Target:   Target{R: ArrowR, G: ArrowG, B: ArrowB, Tolerance: ArrowTolerance},
		Expected: ArrowExpected,
	}
}

// HighlightMarker returns the preset for the highlight overlay.
func HighlightMarker() Marker {
	return Marker{
		Kind:     KindHighlight,
		Target:   Target{R: HighlightR, G: HighlightG, B: HighlightB, Tolerance: HighlightTolerance},
		Expected: HighlightExpected,
	}
}

// MarkerByKind resolves a preset by name, case-insensitively.
func MarkerByKind(kind string) (Marker, error) {
	switch strings.ToLower(kind) {
	case KindArrow:
		return ArrowMarker(), nil
	case KindHighlight:
		return HighlightMarker(), nil
	default:
		return Marker{}, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown marker kind: %q", kind)
	}
}

// Estimate is a marker position with a confidence in [0, 1].
type Estimate struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
}

// DetectMarker estimates the marker position as the centroid of all matching
// pixels, with confidence proportional to match count against Expected.
// Returns nil with no error when nothing matches.
func DetectMarker(f *frame.Frame, m Marker) (*Estimate, error) {
	matches, err := Scan(f, m.Target)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	var sumX, sumY float64
	for _, p := range matches {
		sumX += float64(p.X)
		sumY += float64(p.Y)
	}
	n := float64(len(matches))

	confidence := 1.0
	if m.Expected > 0 {
		confidence = n / float64(m.Expected)
		if confidence > 1 {
			confidence = 1
		}
	}

	return &Estimate{
		X:          roundHalfTowardZero(sumX / n),
		Y:          roundHalfTowardZero(sumY / n),
		Confidence: confidence,
	}, nil
}

// roundHalfTowardZero rounds to the nearest integer with ties toward zero.
func roundHalfTowardZero(v float64) int {
	if v >= 0 {
		return int(math.Ceil(v - 0.5))
	}
	return int(math.Floor(v + 0.5))
}
