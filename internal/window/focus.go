package window

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/resilience"
)

// focusMu serializes foreground ownership so concurrent readers cannot
// steal focus from each other mid-read.
var focusMu sync.Mutex

// WithFocus brings target to the foreground, waits for it to settle,
// runs fn, and restores the previously focused window afterward. The
// restore happens whether fn succeeds or fails.
func WithFocus(ctx context.Context, m Manager, target Window, fn func() error) error {
	focusMu.Lock()
	defer focusMu.Unlock()

	prev, err := m.Foreground()
	if err != nil {
		slog.Debug("no foreground window to restore", "error", err)
	}

	if err := resilience.Retry(ctx, resilience.FocusRetryConfig(), func() error {
		return m.SetForeground(target)
	}); err != nil {
		return err
	}

	if prev != nil && prev.Handle != target.Handle {
		defer func() {
			if err := m.SetForeground(*prev); err != nil {
				slog.Warn("failed to restore focus", "title", prev.Title, "error", err)
			}
		}()
	}

	select {
	case <-time.After(FocusSettleDelay):
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.CodeTimeout, "interrupted while waiting for window to settle")
	}

	return fn()
}
