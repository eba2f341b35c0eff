// Package server exposes the backtest engine as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/config"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/metrics"
	"github.com/contactkeval/option-wheel/internal/report"
	"github.com/contactkeval/option-wheel/internal/store"
)

// Runner executes one backtest. *engine.Engine implements it.
type Runner interface {
	Run(ctx context.Context, cfg engine.SimulationConfig) (*engine.Result, error)
}

// Server handles backtest requests. Runs are independent, so requests
// execute concurrently without shared locking.
type Server struct {
	runner  Runner
	store   store.Store
	timeout time.Duration
}

func New(runner Runner, st store.Store) *Server {
	return &Server{runner: runner, store: st, timeout: 60 * time.Second}
}

// --- Request/Response types ---

// BacktestRequest is the JSON body for POST /api/v1/backtests.
type BacktestRequest struct {
	Ticker          string          `json:"ticker"`
	StrikePct       float64         `json:"strike_pct"`       // fraction in (0,1]
	Start           string          `json:"start"`            // YYYY-MM-DD
	End             string          `json:"end"`              // YYYY-MM-DD, after start
	StartingCapital decimal.Decimal `json:"starting_capital"` // number or decimal string
}

// RunListItem is one entry of GET /api/v1/backtests.
type RunListItem struct {
	ID        string         `json:"id"`
	Ticker    string         `json:"ticker"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   engine.Summary `json:"summary"`
}

// Routes builds the router with the standard middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"option-wheel"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/backtests", s.CreateBacktest)
		r.Get("/backtests", s.ListBacktests)
		r.Get("/backtests/{runID}", s.GetBacktest)
	})
	return r
}

// --- HTTP Handlers ---

// CreateBacktest handles POST /api/v1/backtests
func (s *Server) CreateBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := config.BacktestConfig{
		Ticker:          req.Ticker,
		StrikePct:       req.StrikePct,
		Start:           req.Start,
		End:             req.End,
		StartingCapital: req.StartingCapital.String(),
	}.Simulation()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	res, err := s.runner.Run(ctx, cfg)
	switch {
	case errors.Is(err, engine.ErrInvalidConfig):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, engine.ErrDataUnavailable):
		writeError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		logger.Errorf("event=backtest_failed request_id=%s ticker=%s err=%+v", middleware.GetReqID(ctx), cfg.Ticker, err)
		writeError(w, "backtest failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	run := store.NewRun(cfg, res)
	if err := s.store.Save(ctx, run); err != nil {
		logger.Errorf("event=run_save_failed id=%s err=%v", run.ID, err)
		writeError(w, "failed to store run", http.StatusInternalServerError)
		return
	}

	logger.Infof("event=run_created id=%s ticker=%s actions=%d", run.ID, cfg.Ticker, len(res.Ledger))
	writeJSON(w, http.StatusCreated, report.NewDocument(run.ID, &run.Config, res))
}

// ListBacktests handles GET /api/v1/backtests
func (s *Server) ListBacktests(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.List(r.Context())
	if err != nil {
		logger.Errorf("event=run_list_failed err=%v", err)
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	items := make([]RunListItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, RunListItem{
			ID:        run.ID,
			Ticker:    run.Config.Ticker,
			CreatedAt: run.CreatedAt,
			Summary:   run.Summary,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// GetBacktest handles GET /api/v1/backtests/{runID}
func (s *Server) GetBacktest(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.Get(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("event=run_get_failed id=%s err=%v", runID, err)
		writeError(w, "failed to load run", http.StatusInternalServerError)
		return
	}

	res := &engine.Result{Ledger: run.Ledger, Summary: run.Summary}
	if res.Ledger == nil {
		res.Ledger = []engine.Action{}
	}
	writeJSON(w, http.StatusOK, report.NewDocument(run.ID, &run.Config, res))
}

// requestLogger logs one structured line per request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			log := logger.Get()
			log.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
