//go:build !windows

package window

import (
	"log/slog"

	apperrors "github.com/agentsight/percept/internal/errors"
)

type manager struct{}

// New creates a stub manager on platforms without window control.
func New(excluded []string) Manager {
	slog.Warn("window enumeration and focus control require Windows")
	return &manager{}
}

func (m *manager) List() ([]Window, error) {
	return nil, errUnsupported()
}

func (m *manager) Foreground() (*Window, error) {
	return nil, errUnsupported()
}

func (m *manager) SetForeground(w Window) error {
	return errUnsupported()
}

func errUnsupported() error {
	return apperrors.New(apperrors.CodeUnavailable, "window management not supported on this platform")
}
