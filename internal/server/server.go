// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/agentsight/percept/internal/detect"
	apperrors "github.com/agentsight/percept/internal/errors"
	"github.com/agentsight/percept/internal/frame"
	"github.com/agentsight/percept/internal/ocr"
	"github.com/agentsight/percept/internal/orchestrator"
	"github.com/agentsight/percept/internal/record"
	"github.com/agentsight/percept/internal/scale"
	"github.com/agentsight/percept/internal/suppress"
	"github.com/agentsight/percept/internal/trace"
	"github.com/agentsight/percept/internal/validate"
	"github.com/agentsight/percept/internal/window"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type ObservationMessage struct {
	Type     string                 `json:"type"`
	Snapshot *orchestrator.Snapshot `json:"snapshot"`
}

type RecordMessage struct {
	Type  string       `json:"type"`
	Entry record.Entry `json:"entry"`
	Line  string       `json:"line"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Request and response shapes.
type detectRequest struct {
	R         uint8 `json:"r"`
	G         uint8 `json:"g"`
	B         uint8 `json:"b"`
	Tolerance uint8 `json:"tolerance"`
}

type detectResponse struct {
	Count  int            `json:"count"`
	Points []detect.Point `json:"points"`
}

type markerRequest struct {
	Kind string `json:"kind"`
}

type markerResponse struct {
	Kind     string           `json:"kind"`
	Found    bool             `json:"found"`
	Estimate *detect.Estimate `json:"estimate"`
}

type ocrWindowRequest struct {
	Titles []string    `json:"titles"`
	Region *frame.Rect `json:"region,omitempty"`
}

type ocrRegionsRequest struct {
	Titles  []string     `json:"titles"`
	Regions []frame.Rect `json:"regions"`
}

type ocrRegionsResponse struct {
	Readings []ocr.Reading `json:"readings"`
}

type ocrWindowsRequest struct {
	Queries [][]string `json:"queries"`
}

type ocrWindowsResponse struct {
	Results []ocr.BatchResult `json:"results"`
}

type recordRequest struct {
	Titles []string        `json:"titles"`
	Rules  []suppress.Rule `json:"rules,omitempty"`
}

type recordsResponse struct {
	Records []record.Entry `json:"records"`
	Count   int            `json:"count"`
}

type windowsResponse struct {
	Windows []window.Window `json:"windows"`
}

type mapRequest struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	SrcW int `json:"src_w"`
	SrcH int `json:"src_h"`
	DstW int `json:"dst_w"`
	DstH int `json:"dst_h"`
}

type mapResponse struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	manager    *orchestrator.Manager
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server.
func New(m *orchestrator.Manager) *Server {
	s := &Server{
		manager:    m,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	// Start broadcasters
	go s.broadcastSnapshots()
	go s.broadcastRecords()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("POST /api/detect", s.handleDetect)
	mux.HandleFunc("POST /api/marker", s.handleMarker)
	mux.HandleFunc("GET /api/observation", s.handleObservation)
	mux.HandleFunc("POST /api/observe", s.handleObserve)
	mux.HandleFunc("POST /api/observe/start", s.handleObserveStart)
	mux.HandleFunc("POST /api/observe/stop", s.handleObserveStop)
	mux.HandleFunc("POST /api/ocr/window", s.handleOCRWindow)
	mux.HandleFunc("POST /api/ocr/regions", s.handleOCRRegions)
	mux.HandleFunc("POST /api/ocr/windows", s.handleOCRWindows)
	mux.HandleFunc("POST /api/ocr/record", s.handleOCRRecord)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("DELETE /api/records", s.handleRecordsClear)
	mux.HandleFunc("GET /api/windows", s.handleWindows)
	mux.HandleFunc("POST /api/map", s.handleMap)
	mux.HandleFunc("POST /api/validate/action", s.handleValidateAction)
	mux.HandleFunc("POST /api/validate/snapshot", s.handleValidateSnapshot)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid request body")
	}
	return nil
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	target := detect.Target{R: req.R, G: req.G, B: req.B, Tolerance: req.Tolerance}
	points, err := s.manager.DetectColor(target)
	if err != nil {
		writeError(w, err)
		return
	}
	if points == nil {
		points = []detect.Point{}
	}
	writeJSON(w, detectResponse{Count: len(points), Points: points})
}

func (s *Server) handleMarker(w http.ResponseWriter, r *http.Request) {
	var req markerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	est, err := s.manager.DetectMarker(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, markerResponse{Kind: req.Kind, Found: est != nil, Estimate: est})
}

// handleObservation serves the latest snapshot, running a fresh cycle
// when none has been published yet.
func (s *Server) handleObservation(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.Latest()
	if snap == nil {
		var err error
		snap, err = s.manager.Observe(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, snap)
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	snap, err := s.manager.Observe(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleObserveStart(w http.ResponseWriter, r *http.Request) {
	s.manager.SetObserving(true)
	writeJSON(w, map[string]string{"status": "observing_started"})
}

func (s *Server) handleObserveStop(w http.ResponseWriter, r *http.Request) {
	s.manager.SetObserving(false)
	writeJSON(w, map[string]string{"status": "observing_stopped"})
}

func (s *Server) handleOCRWindow(w http.ResponseWriter, r *http.Request) {
	var req ocrWindowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var reading *ocr.Reading
	var err error
	if req.Region != nil {
		reading, err = s.manager.ReadWindowRegion(r.Context(), req.Titles, *req.Region)
	} else {
		reading, err = s.manager.ReadWindow(r.Context(), req.Titles)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, reading)
}

func (s *Server) handleOCRRegions(w http.ResponseWriter, r *http.Request) {
	var req ocrRegionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	readings, err := s.manager.ReadWindowRegions(r.Context(), req.Titles, req.Regions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, ocrRegionsResponse{Readings: readings})
}

func (s *Server) handleOCRWindows(w http.ResponseWriter, r *http.Request) {
	var req ocrWindowsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Queries) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "no queries given"))
		return
	}

	results := s.manager.ReadWindows(r.Context(), req.Queries)
	writeJSON(w, ocrWindowsResponse{Results: results})
}

func (s *Server) handleOCRRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	for i := range req.Rules {
		if err := req.Rules[i].Validate(); err != nil {
			writeError(w, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "rule %d", i))
			return
		}
	}

	report, err := s.manager.Record(r.Context(), req.Titles, req.Rules)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit: %q", v))
			return
		}
		limit = n
	}

	entries := s.manager.History(limit)
	writeJSON(w, recordsResponse{Records: entries, Count: len(entries)})
}

func (s *Server) handleRecordsClear(w http.ResponseWriter, r *http.Request) {
	s.manager.ClearHistory()
	writeJSON(w, map[string]string{"status": "records_cleared"})
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	wins, err := s.manager.Windows()
	if err != nil {
		writeError(w, err)
		return
	}
	if wins == nil {
		wins = []window.Window{}
	}
	writeJSON(w, windowsResponse{Windows: wins})
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	x, y, err := scale.Map(req.X, req.Y, req.SrcW, req.SrcH, req.DstW, req.DstH)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mapResponse{X: x, Y: y})
}

// Validation endpoints always answer 200 with a verdict; only transport
// problems produce an error status.
func (s *Server) handleValidateAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxValidateBody))
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "unreadable body"))
		return
	}
	writeJSON(w, validate.ActionIntent(body))
}

func (s *Server) handleValidateSnapshot(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxValidateBody))
	if err != nil {
		writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "unreadable body"))
		return
	}
	writeJSON(w, validate.Snapshot(body))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		// Check rate limit
		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "observe":
			// Commands may carry their own trace_id; fall back to the
			// connection's trace otherwise
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			}
			s.handleObserveCommand(ctx, conn)
		}
	}
}

// handleObserveCommand runs a fresh perception cycle for one connection.
func (s *Server) handleObserveCommand(ctx context.Context, conn *websocket.Conn) {
	ctx, span := trace.StartSpan(ctx, "ws_observe")
	defer span.End()

	snap, err := s.manager.Observe(ctx)
	if err != nil {
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Error("observe error", "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: err.Error()})
		return
	}
	_ = wsjson.Write(ctx, conn, ObservationMessage{Type: "observation", Snapshot: snap})
}

func (s *Server) broadcastSnapshots() {
	for snap := range s.manager.Snapshots() {
		s.broadcast(ObservationMessage{Type: "observation", Snapshot: &snap})
	}
}

func (s *Server) broadcastRecords() {
	for entry := range s.manager.RecordEvents() {
		s.broadcast(RecordMessage{Type: "record", Entry: entry, Line: entry.Line()})
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = wsjson.Write(context.Background(), c, msg)
		}(conn)
	}
	s.mu.RUnlock()
}
