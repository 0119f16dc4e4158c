// Package window enumerates top-level OS windows and manages foreground
// focus for capture and OCR. Enumeration and focus control are only
// available on Windows; other platforms get a stub manager.
package window

import (
	"strings"

	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
)

// Window is a visible top-level window with its screen geometry.
type Window struct {
	Handle uintptr `json:"handle"`
	Title  string  `json:"title"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	W      int     `json:"w"`
	H      int     `json:"h"`
}

// Rect returns the window geometry as a capture rectangle.
func (w Window) Rect() frame.Rect {
	return frame.Rect{X: w.X, Y: w.Y, W: w.W, H: w.H}
}

// Manager provides platform window enumeration and focus control.
type Manager interface {
	// List returns all visible titled windows, minus excluded titles.
	List() ([]Window, error)
	// Foreground returns the currently focused window.
	Foreground() (*Window, error)
	// SetForeground focuses the window, restoring it if minimized.
	SetForeground(w Window) error
}

// Find returns the first listed window whose title contains every
// fragment, case-insensitively.
func Find(m Manager, fragments []string) (*Window, error) {
	if len(fragments) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "no title fragments given")
	}
	windows, err := m.List()
	if err != nil {
		return nil, err
	}
	for i := range windows {
		if matchesAll(windows[i].Title, fragments) {
			return &windows[i], nil
		}
	}
	return nil, apperrors.Newf(apperrors.CodeWindowNotFound, "window not found: %s", strings.Join(fragments, " "))
}

func matchesAll(title string, fragments []string) bool {
	t := strings.ToLower(title)
	for _, f := range fragments {
		if !strings.Contains(t, strings.ToLower(f)) {
			return false
		}
	}
	return true
}

func isExcluded(title string, excluded []string) bool {
	t := strings.ToLower(title)
	for _, e := range excluded {
		if e != "" && strings.Contains(t, strings.ToLower(e)) {
			return true
		}
	}
	return false
}
