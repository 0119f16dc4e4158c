package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentsight/percept/internal/config"
	"github.com/agentsight/percept/internal/detect"
	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
	"github.com/agentsight/percept/internal/ocr"
	"github.com/agentsight/percept/internal/orchestrator"
	"github.com/agentsight/percept/internal/record"
	"github.com/agentsight/percept/internal/suppress"
	"github.com/agentsight/percept/internal/validate"
	"github.com/agentsight/percept/internal/window"
)

func newFrame(t *testing.T, w, h int) *frame.Frame {
	t.Helper()
	f, err := frame.New(w, h, make([]byte, w*h*4))
	if err != nil {
		t.Fatalf("frame.New failed: %v", err)
	}
	return f
}

func paint(f *frame.Frame, x, y int, r, g, b uint8) {
	base := (y*f.Width + x) * 4
	f.Pix[base] = r
	f.Pix[base+1] = g
	f.Pix[base+2] = b
	f.Pix[base+3] = 255
}

type fakeSource struct {
	mu    sync.Mutex
	frame *frame.Frame
	err   error
}

func (s *fakeSource) Capture() (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *fakeSource) CaptureRegion(r frame.Rect) (*frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return frame.New(r.W, r.H, make([]byte, r.W*r.H*4))
}

func (s *fakeSource) CaptureChanged() (*frame.Frame, bool, error) {
	f, err := s.Capture()
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

func (s *fakeSource) Close() {}

type fakeWindows struct {
	windows []window.Window
}

func (f *fakeWindows) List() ([]window.Window, error) {
	return f.windows, nil
}

func (f *fakeWindows) Foreground() (*window.Window, error) {
	if len(f.windows) == 0 {
		return nil, apperrors.New(apperrors.CodeWindowNotFound, "no foreground window")
	}
	return &f.windows[0], nil
}

func (f *fakeWindows) SetForeground(w window.Window) error { return nil }

type fakeEngine struct {
	text string
	err  error
}

func (e *fakeEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	return e.text, e.err
}

func newTestServer(t *testing.T, src *fakeSource, wm *fakeWindows, engine *fakeEngine) *Server {
	t.Helper()
	cfg := &config.Config{
		CaptureRate:   2,
		TrackedYellow: detect.Target{R: 248, G: 208, B: 48, Tolerance: 40},
		TrackedRed:    detect.Target{R: 248, G: 56, B: 32, Tolerance: 30},
	}
	reader := ocr.NewReader(src, wm, engine, time.Second)
	return New(orchestrator.New(cfg, src, wm, reader, record.NewRecorder(10)))
}

func questWindow() window.Window {
	return window.Window{Handle: 7, Title: "Quest Tracker", X: 0, Y: 0, W: 8, H: 6}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Test OPTIONS request
	req := httptest.NewRequest("OPTIONS", "/test", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, DELETE, OPTIONS" {
		t.Errorf("CORS methods = %q, want %q", v, "GET, POST, DELETE, OPTIONS")
	}

	// Test regular request
	req = httptest.NewRequest("GET", "/test", http.NoBody)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d, want %d", rec.Code, http.StatusOK)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("CORS origin on GET = %q, want %q", v, "*")
	}
}

func TestMessageTypes(t *testing.T) {
	tests := []struct {
		name    string
		msg     interface{}
		typeVal string
	}{
		{
			"observation",
			ObservationMessage{Type: "observation", Snapshot: &orchestrator.Snapshot{Width: 10}},
			"observation",
		},
		{
			"record",
			RecordMessage{Type: "record", Entry: record.Entry{Text: "hello"}},
			"record",
		},
		{
			"error",
			ErrorMessage{Type: "error", Message: "rate limit exceeded"},
			"error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("json.Marshal error: %v", err)
			}

			var base Message
			if err := json.Unmarshal(data, &base); err != nil {
				t.Fatalf("json.Unmarshal error: %v", err)
			}

			if base.Type != tt.typeVal {
				t.Errorf("type = %q, want %q", base.Type, tt.typeVal)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := &rateLimiter{}

	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("Message %d should be allowed", i)
		}
	}
	if rl.allow() {
		t.Error("Message over the limit should be denied")
	}
}

func TestHandleDetect(t *testing.T) {
	f := newFrame(t, 8, 8)
	paint(f, 1, 1, 10, 20, 30)
	paint(f, 2, 5, 10, 20, 30)
	paint(f, 7, 7, 12, 22, 28)
	s := newTestServer(t, &fakeSource{frame: f}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/detect", detectRequest{R: 10, G: 20, B: 30, Tolerance: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp detectResponse
	decodeBody(t, rec, &resp)
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
	if len(resp.Points) != 3 {
		t.Errorf("points has %d entries, want 3", len(resp.Points))
	}
}

func TestHandleDetectInvalidBody(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	req := httptest.NewRequest("POST", "/api/detect", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleMarker(t *testing.T) {
	f := newFrame(t, 16, 16)
	for x := 4; x <= 5; x++ {
		for y := 2; y <= 3; y++ {
			paint(f, x, y, 0, 255, 255)
		}
	}
	s := newTestServer(t, &fakeSource{frame: f}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/marker", markerRequest{Kind: "highlight"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp markerResponse
	decodeBody(t, rec, &resp)
	if !resp.Found || resp.Estimate == nil {
		t.Fatalf("resp = %+v, want found highlight", resp)
	}
	if resp.Estimate.X != 4 || resp.Estimate.Y != 2 {
		t.Errorf("estimate at (%d, %d), want (4, 2)", resp.Estimate.X, resp.Estimate.Y)
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/marker", markerRequest{Kind: "arrow"})
	decodeBody(t, rec, &resp)
	if resp.Found || resp.Estimate != nil {
		t.Errorf("resp = %+v, want absent arrow", resp)
	}
}

func TestHandleMarkerUnknownKind(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/marker", markerRequest{Kind: "circle"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleObservation(t *testing.T) {
	f := newFrame(t, 12, 10)
	// A tracked-yellow shade outside the arrow marker's band
	paint(f, 1, 1, 248, 190, 80)
	s := newTestServer(t, &fakeSource{frame: f}, &fakeWindows{}, &fakeEngine{})

	// No cycle has run yet, the handler observes on demand
	rec := doJSON(t, s.Handler(), "GET", "/api/observation", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var snap orchestrator.Snapshot
	decodeBody(t, rec, &snap)
	if snap.Width != 12 || snap.Height != 10 {
		t.Errorf("snapshot is %dx%d, want 12x10", snap.Width, snap.Height)
	}
	if snap.YellowCount != 1 {
		t.Errorf("yellow_count = %d, want 1", snap.YellowCount)
	}
	if snap.CycleID == "" {
		t.Error("cycle_id should be set")
	}
}

func TestHandleObserve(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 6, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/observe", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var snap orchestrator.Snapshot
	decodeBody(t, rec, &snap)
	if snap.Width != 6 || snap.Height != 4 {
		t.Errorf("snapshot is %dx%d, want 6x4", snap.Width, snap.Height)
	}
	if snap.Timestamp <= 0 {
		t.Errorf("timestamp = %d, want positive unix millis", snap.Timestamp)
	}
}

func TestHandleObserveCaptureError(t *testing.T) {
	src := &fakeSource{err: apperrors.New(apperrors.CodeCaptureFailed, "no display")}
	s := newTestServer(t, src, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/observe", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleObserveStartStop(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/observe/stop", nil)
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "observing_stopped" {
		t.Errorf("status = %q, want %q", resp["status"], "observing_stopped")
	}
	if s.manager.Observing() {
		t.Error("manager should not be observing after stop")
	}

	rec = doJSON(t, s.Handler(), "POST", "/api/observe/start", nil)
	decodeBody(t, rec, &resp)
	if resp["status"] != "observing_started" {
		t.Errorf("status = %q, want %q", resp["status"], "observing_started")
	}
	if !s.manager.Observing() {
		t.Error("manager should be observing after start")
	}
}

func TestHandleOCRWindow(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "LOOT"})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/window", ocrWindowRequest{Titles: []string{"quest"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var reading ocr.Reading
	decodeBody(t, rec, &reading)
	if reading.Text != "LOOT" {
		t.Errorf("text = %q, want %q", reading.Text, "LOOT")
	}
	if reading.WindowTitle != "Quest Tracker" {
		t.Errorf("window_title = %q, want %q", reading.WindowTitle, "Quest Tracker")
	}
	if reading.Region != nil {
		t.Errorf("region = %+v, want none for a whole-window read", reading.Region)
	}
}

func TestHandleOCRWindowRegion(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "HP 42"})

	region := frame.Rect{X: 1, Y: 2, W: 4, H: 3}
	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/window", ocrWindowRequest{
		Titles: []string{"quest"},
		Region: &region,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var reading ocr.Reading
	decodeBody(t, rec, &reading)
	if reading.Region == nil || *reading.Region != region {
		t.Errorf("region = %+v, want %+v", reading.Region, region)
	}
}

func TestHandleOCRWindowNotFound(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/window", ocrWindowRequest{Titles: []string{"quest"}})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleOCRRegions(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "X"})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/regions", ocrRegionsRequest{
		Titles:  []string{"quest"},
		Regions: []frame.Rect{{X: 0, Y: 0, W: 2, H: 2}, {X: 2, Y: 2, W: 4, H: 4}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp ocrRegionsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(resp.Readings))
	}
	if resp.Readings[0].Region == nil || resp.Readings[0].Region.W != 2 {
		t.Errorf("first reading region = %+v, want the 2x2 rect", resp.Readings[0].Region)
	}
	if resp.Readings[1].Region == nil || resp.Readings[1].Region.W != 4 {
		t.Errorf("second reading region = %+v, want the 4x4 rect", resp.Readings[1].Region)
	}
}

func TestHandleOCRWindows(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "GOLD"})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/windows", ocrWindowsRequest{
		Queries: [][]string{{"quest"}, {"missing"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp ocrWindowsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Reading == nil || resp.Results[0].Reading.Text != "GOLD" {
		t.Errorf("first result = %+v, want a GOLD reading", resp.Results[0])
	}
	if resp.Results[1].Error == "" {
		t.Error("second result should carry the lookup error")
	}
}

func TestHandleOCRWindowsEmpty(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/windows", ocrWindowsRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleRecordsFlow(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "LOOT ACQUIRED"})
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/ocr/record", recordRequest{Titles: []string{"quest"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("record status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var report orchestrator.Report
	decodeBody(t, rec, &report)
	if !report.Recorded {
		t.Fatalf("report = %+v, want recorded text", report)
	}

	rec = doJSON(t, h, "GET", "/api/records", nil)
	var resp recordsResponse
	decodeBody(t, rec, &resp)
	if resp.Count != 1 || len(resp.Records) != 1 {
		t.Fatalf("records = %+v, want one entry", resp)
	}
	if resp.Records[0].Text != "LOOT ACQUIRED" {
		t.Errorf("recorded text = %q, want %q", resp.Records[0].Text, "LOOT ACQUIRED")
	}

	rec = doJSON(t, h, "DELETE", "/api/records", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = doJSON(t, h, "GET", "/api/records", nil)
	decodeBody(t, rec, &resp)
	if resp.Count != 0 {
		t.Errorf("count after clear = %d, want 0", resp.Count)
	}
}

func TestHandleRecordsLimit(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "ENTRY"})
	h := s.Handler()

	for i := 0; i < 3; i++ {
		doJSON(t, h, "POST", "/api/ocr/record", recordRequest{Titles: []string{"quest"}})
	}

	rec := doJSON(t, h, "GET", "/api/records?limit=2", nil)
	var resp recordsResponse
	decodeBody(t, rec, &resp)
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestHandleRecordsInvalidLimit(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "GET", "/api/records?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleOCRRecordInvalidRule(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "TEXT"})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/record", recordRequest{
		Titles: []string{"quest"},
		Rules:  []suppress.Rule{{Kind: "bogus"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleOCRRecordSuppressed(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 8, 6)}, wm, &fakeEngine{text: "BATTLE START"})

	rec := doJSON(t, s.Handler(), "POST", "/api/ocr/record", recordRequest{
		Titles: []string{"quest"},
		Rules:  []suppress.Rule{{Kind: suppress.KindKeyword, Phrases: []string{"battle"}}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var report orchestrator.Report
	decodeBody(t, rec, &report)
	if !report.Suppressed || report.Recorded {
		t.Errorf("report = %+v, want suppressed and not recorded", report)
	}
	if report.KeywordHits != 1 {
		t.Errorf("keyword_hits = %d, want 1", report.KeywordHits)
	}
}

func TestHandleWindows(t *testing.T) {
	wm := &fakeWindows{windows: []window.Window{questWindow()}}
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, wm, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "GET", "/api/windows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp windowsResponse
	decodeBody(t, rec, &resp)
	if len(resp.Windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(resp.Windows))
	}
	if resp.Windows[0].Title != "Quest Tracker" {
		t.Errorf("title = %q, want %q", resp.Windows[0].Title, "Quest Tracker")
	}
}

func TestHandleMap(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/map", mapRequest{
		X: 5, Y: 5, SrcW: 10, SrcH: 10, DstW: 20, DstH: 20,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp mapResponse
	decodeBody(t, rec, &resp)
	if resp.X != 10 || resp.Y != 10 {
		t.Errorf("mapped to (%d, %d), want (10, 10)", resp.X, resp.Y)
	}
}

func TestHandleMapInvalidDims(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})

	rec := doJSON(t, s.Handler(), "POST", "/api/map", mapRequest{
		X: 5, Y: 5, SrcW: 0, SrcH: 10, DstW: 20, DstH: 20,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleValidateAction(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/validate/action", map[string]any{
		"action": "move_mouse", "x": 3, "y": 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var result validate.Result
	decodeBody(t, rec, &result)
	if !result.Valid {
		t.Errorf("result = %+v, want valid", result)
	}

	// Invalid payloads still answer 200 with a verdict
	rec = doJSON(t, h, "POST", "/api/validate/action", map[string]any{
		"action": "move_mouse", "y": 4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	decodeBody(t, rec, &result)
	if result.Valid {
		t.Error("missing x should fail validation")
	}
	if !strings.Contains(result.Error, "'x'") {
		t.Errorf("error = %q, want mention of 'x'", result.Error)
	}
}

func TestHandleValidateSnapshot(t *testing.T) {
	s := newTestServer(t, &fakeSource{frame: newFrame(t, 4, 4)}, &fakeWindows{}, &fakeEngine{})
	h := s.Handler()

	rec := doJSON(t, h, "POST", "/api/validate/snapshot", map[string]any{
		"width": 1920, "height": 1080, "timestamp": 1700000000000,
	})
	var result validate.Result
	decodeBody(t, rec, &result)
	if !result.Valid {
		t.Errorf("result = %+v, want valid", result)
	}

	rec = doJSON(t, h, "POST", "/api/validate/snapshot", map[string]any{
		"height": 1080, "timestamp": 1700000000000,
	})
	decodeBody(t, rec, &result)
	if result.Valid {
		t.Error("missing width should fail validation")
	}
}
