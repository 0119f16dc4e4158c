package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/agentsight/percept/internal/errors"
)

// TesseractCLI shells out to the tesseract binary for each recognition.
type TesseractCLI struct {
	path string
	lang string
}

// NewTesseract resolves the tesseract binary. An explicit path wins,
// then PATH lookup, then the standard Windows install location.
func NewTesseract(path, lang string) (*TesseractCLI, error) {
	resolved, err := resolveBinary(path)
	if err != nil {
		return nil, err
	}
	if lang == "" {
		lang = DefaultLang
	}
	return &TesseractCLI{path: resolved, lang: lang}, nil
}

func resolveBinary(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", apperrors.Newf(apperrors.CodeOCRUnavailable, "tesseract not found at %s", path)
		}
		return path, nil
	}
	if p, err := exec.LookPath(DefaultBinary); err == nil {
		return p, nil
	}
	if _, err := os.Stat(WindowsInstallPath); err == nil {
		return WindowsInstallPath, nil
	}
	return "", apperrors.New(apperrors.CodeOCRUnavailable, "tesseract not found, set TESSERACT_PATH")
}

func (t *TesseractCLI) Recognize(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	tmpFile := filepath.Join(os.TempDir(), TempFilePrefix+uuid.NewString()+".png")
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to stage ocr image")
	}
	defer os.Remove(tmpFile)

	cmd := exec.CommandContext(ctx, t.path, tmpFile, "stdout", "-l", t.lang)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Wrap(ctx.Err(), apperrors.CodeOCRTimeout, "ocr timed out")
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) || errors.Is(err, os.ErrNotExist) {
			return "", apperrors.Wrap(err, apperrors.CodeOCRUnavailable, "tesseract not runnable")
		}
		return "", apperrors.Newf(apperrors.CodeInternal, "tesseract: %s", strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
