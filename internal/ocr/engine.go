// Package ocr extracts text from captured frames. Recognition runs
// through a pluggable engine; readings flow through window focus
// handling so the target window is frontmost while its pixels are read.
package ocr

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"unicode"

	apperrors "github.com/agentsight/percept/internal/errors"
)

// Engine turns an image into text.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// NewEngine builds the engine selected by name: "tesseract" shells out
// to the CLI binary, "gosseract" runs in-process.
func NewEngine(name, path, lang string) (Engine, error) {
	switch name {
	case "tesseract", "":
		return NewTesseract(path, lang)
	case "gosseract":
		return NewGosseract(lang), nil
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown ocr engine: %q", name)
	}
}

// Unavailable stands in when no engine could be initialized. Every
// recognition fails with the original cause, so the rest of the
// substrate keeps serving while OCR is down.
type Unavailable struct {
	Err error
}

func (u Unavailable) Recognize(ctx context.Context, img image.Image) (string, error) {
	return "", u.Err
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "png encode failed")
	}
	return buf.Bytes(), nil
}

// estimateConfidence scores recognized text by shape. The CLI engine
// reports no per-word confidence, so this heuristic stands in for it.
func estimateConfidence(text string) float64 {
	if text == "" {
		return 0
	}

	confidence := 0.5

	words := strings.Fields(text)
	if len(words) >= 3 {
		confidence += 0.1
	}
	if len(words) >= 10 {
		confidence += 0.1
	}

	readable := 0
	total := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			readable++
		}
	}
	if total > 0 && float64(readable)/float64(total) > 0.8 {
		confidence += 0.15
	}

	if confidence > 0.85 {
		confidence = 0.85
	}
	return confidence
}
