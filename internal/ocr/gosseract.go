package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/agentsight/percept/internal/errors"
)

// Gosseract runs tesseract in-process through its C API. Each call uses
// a fresh client; the library is not safe for concurrent reuse.
type Gosseract struct {
	lang string
}

// NewGosseract creates the in-process engine.
func NewGosseract(lang string) *Gosseract {
	if lang == "" {
		lang = DefaultLang
	}
	return &Gosseract{lang: lang}
}

func (g *Gosseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(g.lang); err != nil {
			done <- result{err: apperrors.Wrap(err, apperrors.CodeOCRUnavailable, "language data missing")}
			return
		}
		if err := client.SetImageFromBytes(data); err != nil {
			done <- result{err: apperrors.Wrap(err, apperrors.CodeInternal, "failed to set image")}
			return
		}
		text, err := client.Text()
		if err != nil {
			done <- result{err: apperrors.Wrap(err, apperrors.CodeInternal, "recognition failed")}
			return
		}
		done <- result{text: strings.TrimSpace(text)}
	}()

	select {
	case <-ctx.Done():
		return "", apperrors.Wrap(ctx.Err(), apperrors.CodeOCRTimeout, "ocr timed out")
	case r := <-done:
		return r.text, r.err
	}
}
