package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ogulcanaydogan/energy-advisor/pkg/budget"
	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/metrics"
	"github.com/ogulcanaydogan/energy-advisor/pkg/model"
	"github.com/ogulcanaydogan/energy-advisor/pkg/orchestrator"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

const maxRequestBody = 64 << 10

// HistoryStore lists persisted battery snapshots.
type HistoryStore interface {
	ListSnapshots(ctx context.Context, since time.Time, limit int) ([]model.BatterySnapshot, error)
}

// Deps are the components the API exposes. History, Guard and Metrics may
// be nil.
type Deps struct {
	Monitor      *energy.Monitor
	Orchestrator *orchestrator.Orchestrator
	Gate         *budget.Gate
	Usage        *budget.UsageTracker
	History      HistoryStore
	Guard        *reliability.Guard
	Metrics      *metrics.Metrics
	Location     *time.Location
}

// Server provides the battery, analysis, budget and usage API.
type Server struct {
	deps   Deps
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates an API server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	s := &Server{
		deps:   deps,
		mux:    http.NewServeMux(),
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/battery", s.handleBattery)
	s.mux.HandleFunc("POST /api/v1/battery/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/v1/battery/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/v1/analysis", s.handleAnalysis)
	s.mux.HandleFunc("GET /api/v1/budget/{user}", s.handleBudget)
	s.mux.HandleFunc("GET /api/v1/usage", s.handleUsage)
	s.mux.HandleFunc("GET /api/v1/usage/summary", s.handleSummary)
	s.mux.HandleFunc("GET /api/v1/circuits", s.handleCircuits)
	s.mux.Handle("GET /metrics", s.deps.Metrics.Handler())
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBattery(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.deps.Monitor.Model().Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no battery snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	snap, err := s.deps.Monitor.Refresh(ctx)
	if err != nil {
		// the snapshot is still current in memory; persistence failed
		s.logger.Error("refresh battery", "error", err)
	}
	s.deps.Metrics.SetBattery(snap.CurrentLevel)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is not enabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = t
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	snaps, err := s.deps.History.ListSnapshots(ctx, since, limit)
	if err != nil {
		s.logger.Error("list battery history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if snaps == nil {
		snaps = []model.BatterySnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

type analysisRequest struct {
	UserID      string                   `json:"user_id"`
	Tags        []model.Tag              `json:"tags"`
	TimeBucket  model.TimeBucket         `json:"time_bucket,omitempty"`
	Environment model.EnvironmentFactors `json:"environment"`
}

func (req analysisRequest) validate() error {
	if req.UserID == "" {
		return errors.New("user_id is required")
	}
	for _, t := range req.Tags {
		if !t.Valid() {
			return fmt.Errorf("unknown tag %q", t)
		}
	}
	switch req.TimeBucket {
	case "", model.BucketMorning, model.BucketAfternoon, model.BucketEvening, model.BucketNight:
	default:
		return fmt.Errorf("unknown time_bucket %q", req.TimeBucket)
	}
	return nil
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// an analysis requested before the first tick gets the generic baseline
	snap, _ := s.deps.Monitor.Model().Current()

	result := s.deps.Orchestrator.RequestAnalysis(r.Context(), model.AnalysisContext{
		UserID:      req.UserID,
		Battery:     snap,
		Tags:        req.Tags,
		TimeBucket:  req.TimeBucket,
		Environment: req.Environment,
	})
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gate == nil {
		writeError(w, http.StatusNotFound, "budget is not enabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ledger, err := s.deps.Gate.Ledger(ctx, r.PathValue("user"))
	if err != nil {
		s.logger.Error("load ledger", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ledger":    ledger,
		"remaining": ledger.Remaining(),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := model.ReportFilter{
		UserID:   r.URL.Query().Get("user"),
		Provider: r.URL.Query().Get("provider"),
		Model:    r.URL.Query().Get("model"),
	}

	records, err := s.deps.Usage.Query(ctx, filter)
	if err != nil {
		s.logger.Error("query usage", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []model.UsageRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := model.ReportFilter{
		UserID:   r.URL.Query().Get("user"),
		Provider: r.URL.Query().Get("provider"),
	}
	if r.URL.Query().Get("period") != "all" {
		filter.StartTime, filter.EndTime = model.DayBounds(time.Now(), s.deps.Location)
	}

	summary, err := s.deps.Usage.Report(ctx, filter)
	if err != nil {
		s.logger.Error("aggregate usage", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCircuits(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Guard == nil {
		writeJSON(w, http.StatusOK, map[string]reliability.CircuitSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Guard.Breakers().Snapshots())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
