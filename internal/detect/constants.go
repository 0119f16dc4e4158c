package detect

const (
	// SmallBufferPixels is the size below which a scan runs on a single
	// worker; the fan-out overhead dominates for tiny buffers.
	SmallBufferPixels = 4096

	// Arrow marker preset.
	ArrowR         = 255
	ArrowG         = 255
	ArrowB         = 0
	ArrowTolerance = 55
	ArrowExpected  = 500

	// Highlight marker preset.
	HighlightR         = 0
	HighlightG         = 255
	HighlightB         = 255
	HighlightTolerance = 75
	HighlightExpected  = 1000
)
