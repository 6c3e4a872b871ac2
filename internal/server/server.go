// Package server exposes the pipeline's artifacts as a read-only JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/aggregate"
	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/logging"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
	"github.com/TobiSchelling/hypetrack/internal/validate"
)

// Server is the HTTP server for the read-only API.
type Server struct {
	cfg    *config.Config
	db     *database.DB
	paths  config.Paths
	router *chi.Mux
	logger *zap.Logger
}

// New creates a new Server.
func New(cfg *config.Config, db *database.DB, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		db:     db,
		paths:  cfg.Paths(),
		router: chi.NewRouter(),
		logger: logging.OrNop(logger).Named("server"),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("Listening", zap.String("addr", srv.Addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/seasons", s.handleSeasons)
		r.Get("/seasons/{season}", s.handleSeason)
		r.Get("/collections", s.handleCollections)
		r.Get("/validation", s.handleValidation)
		r.Get("/runs", s.handleRuns)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SeasonView is one season's label distribution.
type SeasonView struct {
	Season string       `json:"season"`
	Total  int          `json:"total"`
	Labels []LabelShare `json:"labels"`
}

// LabelShare is a label's percentage and absolute count.
type LabelShare struct {
	Label      string  `json:"label"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

func (s *Server) seasonViews() ([]SeasonView, error) {
	stats, err := dataset.ReadSeasonStats(s.paths.SeasonStats)
	if err != nil {
		return nil, err
	}

	counts := make(map[[2]string]int)
	if preds, err := dataset.ReadPredictions(s.paths.Predictions); err == nil {
		for _, c := range aggregate.Counts(preds, s.cfg.SeasonIDs()) {
			counts[[2]string{c.Season, string(c.Label)}] = c.Count
		}
	}

	var views []SeasonView
	index := make(map[string]int)
	for _, st := range stats {
		i, ok := index[st.Season]
		if !ok {
			i = len(views)
			index[st.Season] = i
			views = append(views, SeasonView{Season: st.Season})
		}
		n := counts[[2]string{st.Season, st.Label}]
		views[i].Labels = append(views[i].Labels, LabelShare{Label: st.Label, Percentage: st.Percentage, Count: n})
		views[i].Total += n
	}
	return views, nil
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	views, err := s.seasonViews()
	if err != nil {
		s.artifactError(w, err)
		return
	}
	if views == nil {
		views = []SeasonView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSeason(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "season")
	views, err := s.seasonViews()
	if err != nil {
		s.artifactError(w, err)
		return
	}
	for _, v := range views {
		if v.Season == id {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	writeError(w, http.StatusNotFound, "no classified records for season "+id)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := s.db.GetCollections()
	if err != nil {
		s.logger.Error("Listing collections failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	type view struct {
		Season      string  `json:"season"`
		Status      string  `json:"status"`
		Records     int     `json:"records"`
		Read        int     `json:"read"`
		CompletedAt *string `json:"completed_at"`
	}
	out := make([]view, 0, len(cols))
	for _, c := range cols {
		out = append(out, view{c.SeasonID, c.Status, c.RecordCount, c.TotalRead, c.CompletedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// ValidationView is the metrics plus the matrix in report order.
type ValidationView struct {
	validate.Metrics
	Matrix validate.ConfusionMatrix `json:"matrix"`
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	m, err := validate.LoadMetrics(s.paths.ValidationPredictions)
	if err != nil {
		s.artifactError(w, err)
		return
	}
	axis := make([]string, len(sentiment.Labels))
	for i, l := range sentiment.Labels {
		axis[i] = string(l)
	}
	writeJSON(w, http.StatusOK, ValidationView{Metrics: *m, Matrix: m.Confusion.WithAxis(axis)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 500)
	}

	runs, err := s.db.GetRecentRuns(limit)
	if err != nil {
		s.logger.Error("Listing runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	type view struct {
		ID              string   `json:"id"`
		StartedAt       string   `json:"started_at"`
		FinishedAt      string   `json:"finished_at"`
		AcceptedCount   int      `json:"accepted_count"`
		PredictionCount int      `json:"prediction_count"`
		SeasonCount     int      `json:"season_count"`
		Accuracy        *float64 `json:"accuracy"`
	}
	out := make([]view, 0, len(runs))
	for _, rr := range runs {
		out = append(out, view(rr))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) artifactError(w http.ResponseWriter, err error) {
	if errors.Is(err, dataset.ErrArtifactMissing) {
		writeError(w, http.StatusNotFound, "artifact not found; run the pipeline first")
		return
	}
	s.logger.Error("Reading artifact failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "artifact unreadable")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
