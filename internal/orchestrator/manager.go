// Package orchestrator coordinates capture, detection, OCR, and recording
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"

	"github.com/agentsight/percept/internal/capture"
	"github.com/agentsight/percept/internal/config"
	"github.com/agentsight/percept/internal/detect"
	"github.com/agentsight/percept/internal/frame"
	"github.com/agentsight/percept/internal/ocr"
	"github.com/agentsight/percept/internal/record"
	"github.com/agentsight/percept/internal/suppress"
	"github.com/agentsight/percept/internal/syncx"
	"github.com/agentsight/percept/internal/trace"
	"github.com/agentsight/percept/internal/window"
)

// Snapshot is one perception cycle over a full-screen frame. Arrow and
// Highlight are nil when the marker is absent.
type Snapshot struct {
	CycleID     string           `json:"cycle_id"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	YellowCount int              `json:"yellow_count"`
	RedCount    int              `json:"red_count"`
	Arrow       *detect.Estimate `json:"arrow"`
	Highlight   *detect.Estimate `json:"highlight"`
	Timestamp   int64            `json:"timestamp"`
}

// Report describes one run of the record pipeline: what was read, whether
// it was kept, and which suppression rules fired.
type Report struct {
	Text        string   `json:"text"`
	Recorded    bool     `json:"recorded"`
	Suppressed  bool     `json:"suppressed"`
	Reasons     []string `json:"reasons"`
	KeywordHits int      `json:"keyword_hits"`
	ColorHits   int      `json:"color_hits"`
	WindowTitle string   `json:"window_title"`
}

// Manager coordinates all perception services
type Manager struct {
	cfg      *config.Config
	source   capture.Source
	windows  window.Manager
	reader   *ocr.Reader
	recorder *record.Recorder

	latest    *syncx.RWGuard[*Snapshot]
	observing *syncx.RWGuard[bool]

	mu       sync.Mutex
	lastHash *goimagehash.ImageHash

	snapshotCh chan Snapshot
	stopCh     chan struct{}
}

// New creates a new manager
func New(cfg *config.Config, source capture.Source, windows window.Manager, reader *ocr.Reader, recorder *record.Recorder) *Manager {
	return &Manager{
		cfg:        cfg,
		source:     source,
		windows:    windows,
		reader:     reader,
		recorder:   recorder,
		latest:     syncx.NewGuard[*Snapshot](nil),
		observing:  syncx.NewGuard(cfg.AutoObserve),
		snapshotCh: make(chan Snapshot, SnapshotBuffer),
		stopCh:     make(chan struct{}),
	}
}

// Snapshots returns the channel of published observation snapshots
func (m *Manager) Snapshots() <-chan Snapshot {
	return m.snapshotCh
}

// RecordEvents returns the channel of newly recorded history entries
func (m *Manager) RecordEvents() <-chan record.Entry {
	return m.recorder.Events()
}

// Start begins the background observation loop
func (m *Manager) Start(ctx context.Context) error {
	go m.observeLoop(ctx)
	return nil
}

// Stop stops background work
func (m *Manager) Stop() {
	close(m.stopCh)
}

func (m *Manager) observeLoop(ctx context.Context) {
	rate := m.cfg.CaptureRate
	if rate <= 0 {
		rate = FallbackCaptureRate
	}
	interval := time.Duration(float64(time.Second) / rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !m.Observing() {
				continue
			}
			f, changed, err := m.source.CaptureChanged()
			if err != nil {
				slog.Debug("observe capture failed", "error", err)
				continue
			}
			if !changed {
				continue
			}
			if m.shouldSkipDetection(f) {
				continue
			}
			snap, err := m.cycle(f)
			if err != nil {
				slog.Debug("observation cycle failed", "error", err)
				continue
			}
			m.publish(snap)
		}
	}
}

// shouldSkipDetection computes a pHash and returns true when the frame is
// perceptually close to the previous one.
func (m *Manager) shouldSkipDetection(f *frame.Frame) bool {
	hash, err := goimagehash.PerceptionHash(f.RGBA())
	if err != nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastHash == nil {
		m.lastHash = hash
		return false
	}

	dist, err := m.lastHash.Distance(hash)
	if err != nil {
		m.lastHash = hash
		return false
	}

	if dist <= MaxHashDistance {
		slog.Debug("skipping detection for similar frame", "distance", dist)
		return true
	}

	m.lastHash = hash
	return false
}

// cycle runs the full detection pass over one frame.
func (m *Manager) cycle(f *frame.Frame) (*Snapshot, error) {
	yellow, err := detect.Scan(f, m.cfg.TrackedYellow)
	if err != nil {
		return nil, err
	}
	red, err := detect.Scan(f, m.cfg.TrackedRed)
	if err != nil {
		return nil, err
	}
	arrow, err := detect.DetectMarker(f, detect.ArrowMarker())
	if err != nil {
		return nil, err
	}
	highlight, err := detect.DetectMarker(f, detect.HighlightMarker())
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		CycleID:     uuid.NewString(),
		Width:       f.Width,
		Height:      f.Height,
		YellowCount: len(yellow),
		RedCount:    len(red),
		Arrow:       arrow,
		Highlight:   highlight,
		Timestamp:   time.Now().UnixMilli(),
	}, nil
}

// publish stores the snapshot and offers it to the push channel without
// blocking the producer.
func (m *Manager) publish(snap *Snapshot) {
	m.latest.Set(snap)
	select {
	case m.snapshotCh <- *snap:
	default:
	}
}

// Observe captures a fresh frame, runs a detection cycle, and publishes
// the result.
func (m *Manager) Observe(ctx context.Context) (*Snapshot, error) {
	_, span := trace.StartSpan(ctx, "observe")
	defer span.End()

	f, err := m.source.Capture()
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, err
	}
	snap, err := m.cycle(f)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, err
	}
	span.SetAttr("yellow", snap.YellowCount)
	span.SetAttr("red", snap.RedCount)

	m.publish(snap)
	return snap, nil
}

// Latest returns the most recent snapshot, or nil before the first cycle
func (m *Manager) Latest() *Snapshot {
	return m.latest.Get()
}

// DetectColor captures the screen and returns the pixels matching target
func (m *Manager) DetectColor(target detect.Target) ([]detect.Point, error) {
	f, err := m.source.Capture()
	if err != nil {
		return nil, err
	}
	return detect.Scan(f, target)
}

// DetectMarker captures the screen and locates the named marker kind. A
// nil estimate means the marker is absent.
func (m *Manager) DetectMarker(kind string) (*detect.Estimate, error) {
	marker, err := detect.MarkerByKind(kind)
	if err != nil {
		return nil, err
	}
	f, err := m.source.Capture()
	if err != nil {
		return nil, err
	}
	return detect.DetectMarker(f, marker)
}

// Record reads a window, evaluates suppression rules against the text and
// the captured pixels, and appends to history unless a rule fired.
func (m *Manager) Record(ctx context.Context, fragments []string, rules []suppress.Rule) (*Report, error) {
	ctx, span := trace.StartSpan(ctx, "record_pipeline")
	defer span.End()

	// A nil rule list falls back to configured defaults; an explicitly
	// empty list disables suppression for this request
	if rules == nil {
		rules = m.cfg.DefaultSuppressRules
	}

	reading, f, err := m.reader.ReadWindowFrame(ctx, fragments)
	if err != nil {
		span.SetAttr("error", err.Error())
		return nil, err
	}

	decision := suppress.Evaluate(reading.Text, f, rules)
	span.SetAttr("suppressed", decision.Suppressed)

	trimmed := strings.TrimSpace(reading.Text)
	recorded := false
	if !decision.Suppressed && trimmed != "" {
		m.recorder.Record(trimmed, reading.WindowTitle)
		recorded = true
		trace.Logger(ctx).Info("recorded window text",
			"window", reading.WindowTitle, "chars", len(trimmed))
	}

	return &Report{
		Text:        reading.Text,
		Recorded:    recorded,
		Suppressed:  decision.Suppressed,
		Reasons:     decision.Reasons,
		KeywordHits: decision.KeywordHits,
		ColorHits:   decision.ColorHits,
		WindowTitle: reading.WindowTitle,
	}, nil
}

// ReadWindow extracts text from the window matching the fragments
func (m *Manager) ReadWindow(ctx context.Context, fragments []string) (*ocr.Reading, error) {
	return m.reader.ReadWindow(ctx, fragments)
}

// ReadWindowRegion extracts text from one region of the matched window
func (m *Manager) ReadWindowRegion(ctx context.Context, fragments []string, region frame.Rect) (*ocr.Reading, error) {
	return m.reader.ReadWindowRegion(ctx, fragments, region)
}

// ReadWindowRegions extracts text from several regions of one capture
func (m *Manager) ReadWindowRegions(ctx context.Context, fragments []string, regions []frame.Rect) ([]ocr.Reading, error) {
	return m.reader.ReadWindowRegions(ctx, fragments, regions)
}

// ReadWindows reads several windows in sequence, one result per query
func (m *Manager) ReadWindows(ctx context.Context, queries [][]string) []ocr.BatchResult {
	return m.reader.ReadWindows(ctx, queries)
}

// History returns up to limit recorded entries, oldest first
func (m *Manager) History(limit int) []record.Entry {
	return m.recorder.History(limit)
}

// ClearHistory drops all recorded entries
func (m *Manager) ClearHistory() {
	m.recorder.Clear()
}

// Windows lists visible top-level windows for target discovery
func (m *Manager) Windows() ([]window.Window, error) {
	return m.windows.List()
}

// Observing reports whether the background loop publishes snapshots
func (m *Manager) Observing() bool {
	return m.observing.Get()
}

// SetObserving toggles background snapshot publishing
func (m *Manager) SetObserving(enabled bool) {
	m.observing.Set(enabled)
	slog.Info("observation state changed", "enabled", enabled)
}
