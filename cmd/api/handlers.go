package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/faultscope/faultscope/engine/analyze"
	"github.com/faultscope/faultscope/engine/canvas"
	"github.com/faultscope/faultscope/engine/domain"
	"github.com/faultscope/faultscope/engine/iplog"
	"github.com/faultscope/faultscope/pkg/mid"
	"github.com/faultscope/faultscope/pkg/natsutil"
)

// Analyzer is the slice of *analyze.Service the handlers need.
type Analyzer interface {
	Analyze(ctx context.Context, equipment, code string) (analyze.Analysis, error)
	TableSize() int
}

// PixelRecorder counts canvas writes. *metrics.Metrics satisfies it.
type PixelRecorder interface {
	PixelPlaced()
	Handler() http.Handler
}

type server struct {
	cfg      Config
	analyzer Analyzer
	canvas   *canvas.Store
	ipLog    *iplog.Log
	metrics  PixelRecorder
	events   *natsutil.Publisher
	log      *slog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/pixels", s.handleGetPixels)
	mux.HandleFunc("POST /api/pixels", s.handlePostPixel)

	mux.HandleFunc("POST /admin/login", s.admin(s.handleLogin))
	mux.HandleFunc("POST /admin/ip-logs", s.admin(s.handleIPLogs))
	mux.HandleFunc("POST /admin/stats", s.admin(s.handleStats))
	mux.HandleFunc("POST /admin/recent-activity", s.admin(s.handleRecentActivity))
	mux.HandleFunc("POST /admin/ban-ip", s.admin(s.handleBanIP))

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mid.Chain(mux,
		mid.Recover(s.log),
		mid.RequestID(),
		mid.Logger(s.log),
		mid.Track(func(r *http.Request) { s.ipLog.Record(iplog.FromRequest(r)) }),
		mid.CORS(s.cfg.CORSOrigin),
		mid.OTel("faultscope-api"),
	)
}

// --- Handlers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "localDatabase": true})
}

const msgMissingInput = "Equipment and fault code are required"

// AnalyzeResponse is the JSON body for a successful POST /api/analyze.
type AnalyzeResponse struct {
	Analysis string `json:"analysis"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingInput, Details: "invalid request body"})
		return
	}

	a, err := s.analyze(r.Context(), req)
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingInput})
	case err != nil:
		s.log.Error("analysis failed", "code", req.Code, "err", err, "request_id", mid.RequestIDFrom(r.Context()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to analyze fault code", Details: err.Error()})
	default:
		writeJSON(w, http.StatusOK, AnalyzeResponse{Analysis: a.Text})
	}
}

// analyze converts a panic in the pipeline into an ordinary error so the
// caller still gets the analyze-specific 500 body.
func (s *server) analyze(ctx context.Context, req domain.AnalyzeRequest) (a analyze.Analysis, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("internal error: %v", p)
		}
	}()
	return s.analyzer.Analyze(ctx, req.Equipment, req.Code)
}

func (s *server) handleGetPixels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.canvas.All())
}

type pixelRequest struct {
	X     *int   `json:"x"`
	Y     *int   `json:"y"`
	Color string `json:"color"`
}

func (s *server) handlePostPixel(w http.ResponseWriter, r *http.Request) {
	var req pixelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.X == nil || req.Y == nil || req.Color == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing required fields"})
		return
	}

	p, err := s.canvas.Put(canvas.Pixel{X: *req.X, Y: *req.Y, Color: req.Color, IP: mid.ClientIP(r)})
	switch {
	case errors.Is(err, canvas.ErrCooldown):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Please wait before placing another pixel"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid pixel", Details: err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.PixelPlaced()
	}
	s.events.Emit(r.Context(), natsutil.SubjectCanvas, p)
	writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
}
