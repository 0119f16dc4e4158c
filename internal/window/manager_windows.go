//go:build windows

package window

import (
	"syscall"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"

	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows          = user32.NewProc("EnumWindows")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procGetForegroundWindow  = user32.NewProc("GetForegroundWindow")
	procSetForegroundWindow  = user32.NewProc("SetForegroundWindow")
	procIsIconic             = user32.NewProc("IsIconic")
	procShowWindow           = user32.NewProc("ShowWindow")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
)

const swRestore = 9

type winRect struct {
	Left, Top, Right, Bottom int32
}

type manager struct {
	excluded []string
}

// New creates the Windows window manager. Windows whose titles contain
// any excluded string are hidden from List.
func New(excluded []string) Manager {
	return &manager{excluded: excluded}
}

func (m *manager) List() ([]Window, error) {
	var out []Window
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		if vis, _, _ := procIsWindowVisible.Call(hwnd); vis == 0 {
			return 1
		}
		title := windowTitle(hwnd)
		if title == "" || isExcluded(title, m.excluded) {
			return 1
		}
		w := Window{Handle: hwnd, Title: title}
		if r, ok := windowRect(hwnd); ok {
			w.X, w.Y, w.W, w.H = r.X, r.Y, r.W, r.H
		}
		out = append(out, w)
		return 1
	})

	if r, _, callErr := procEnumWindows.Call(cb, 0); r == 0 {
		return nil, apperrors.Wrap(callErr, apperrors.CodeInternal, "window enumeration failed")
	}
	return out, nil
}

func (m *manager) Foreground() (*Window, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, apperrors.New(apperrors.CodeWindowNotFound, "no foreground window")
	}
	w := Window{Handle: hwnd, Title: windowTitle(hwnd)}
	if r, ok := windowRect(hwnd); ok {
		w.X, w.Y, w.W, w.H = r.X, r.Y, r.W, r.H
	}
	return &w, nil
}

func (m *manager) SetForeground(w Window) error {
	if iconic, _, _ := procIsIconic.Call(w.Handle); iconic != 0 {
		procShowWindow.Call(w.Handle, swRestore)
	}
	if r, _, _ := procSetForegroundWindow.Call(w.Handle); r == 0 {
		return apperrors.Newf(apperrors.CodeUnavailable, "failed to focus window: %s", w.Title)
	}
	return nil
}

func windowTitle(hwnd uintptr) string {
	buf := make([]uint16, MaxTitleChars)
	r, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if r == 0 {
		return ""
	}
	return string(utf16.Decode(buf[:r]))
}

func windowRect(hwnd uintptr) (frame.Rect, bool) {
	var rc winRect
	if r, _, _ := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&rc))); r == 0 {
		return frame.Rect{}, false
	}
	return frame.Rect{
		X: int(rc.Left),
		Y: int(rc.Top),
		W: int(rc.Right - rc.Left),
		H: int(rc.Bottom - rc.Top),
	}, true
}
