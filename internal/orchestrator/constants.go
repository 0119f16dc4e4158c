// Package orchestrator coordinates capture, detection, OCR, and recording
package orchestrator

// Orchestration constants
const (
	// Hamming distance between perception hashes at or below which two
	// frames count as the same scene and re-detection is skipped
	MaxHashDistance = 3

	// Buffered snapshots awaiting push before new ones are dropped
	SnapshotBuffer = 16

	// Capture rate fallback when the configured rate is unusable
	FallbackCaptureRate = 1.0
)
