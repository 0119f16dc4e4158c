package window

import "time"

const (
	// FocusSettleDelay is how long a freshly focused window gets to
	// finish its redraw before capture reads its pixels.
	FocusSettleDelay = 300 * time.Millisecond

	// MaxTitleChars bounds window title reads.
	MaxTitleChars = 256
)
