package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/liamcoop/greenscore/config"
	"github.com/liamcoop/greenscore/failure"
	"github.com/liamcoop/greenscore/features"
	"github.com/liamcoop/greenscore/internal/logger"
	"github.com/liamcoop/greenscore/modelstore"
	"github.com/liamcoop/greenscore/recommend"
	"github.com/liamcoop/greenscore/scoring"
)

const (
	maxBodyBytes  = 1 << 20
	slowThreshold = time.Second
)

type Server struct {
	db          *sql.DB
	scorer      *scoring.Engine
	recommender *recommend.Engine
	router      *chi.Mux
	closers     []io.Closer
}

// NewServer wires the model store, rule store and engines selected by cfg.
// A model that cannot be loaded yet is not fatal: assessments return 503
// until training has run and the model is reloaded.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	models, err := modelstore.Open(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to open model store: %w", err)
	}

	var db *sql.DB
	var ruleStore recommend.RuleStore
	switch cfg.Rules.Backend {
	case config.BackendPostgres:
		db, err = openDB(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		ruleStore = recommend.NewPostgresRuleStore(db)
	default:
		ruleStore = recommend.NewInMemoryRuleStore()
	}

	cache := recommend.NewInMemoryRulesCache(recommend.CacheConfig{TTL: cfg.Rules.CacheTTL})
	recommender, err := recommend.NewEngineWithCache(ruleStore, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to compile recommendation rules: %w", err)
	}
	if err := recommender.SeedDefaults(); err != nil {
		return nil, fmt.Errorf("failed to seed recommendation rules: %w", err)
	}

	scorer := scoring.NewEngine(models)
	if err := scorer.Reload(ctx); err != nil {
		logger.Warn("model not loaded at startup", "backend", cfg.Model.Backend, "error", err)
	}

	s := newServer(scorer, recommender, db)
	if c, ok := models.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	return s, nil
}

func newServer(scorer *scoring.Engine, recommender *recommend.Engine, db *sql.DB) *Server {
	s := &Server{
		db:          db,
		scorer:      scorer,
		recommender: recommender,
	}
	if db != nil {
		s.closers = append(s.closers, db)
	}
	s.setupRoutes()
	return s
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", s.handleHome)
	r.Post("/assess_credit", s.handleAssess)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Post("/assess", s.handleAssess)
		r.Post("/explain", s.handleExplain)
		r.Post("/model/reload", s.handleReload)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleId}", s.handleGetRule)
			r.Put("/{ruleId}", s.handleUpdateRule)
			r.Delete("/{ruleId}", s.handleDeleteRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the database and any store connections.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// requestLogger logs each request and feeds the status counters.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.HTTPStatus(status)
		if elapsed > slowThreshold {
			logger.SlowRequest()
		}
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "greenscore operational"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.scorer.Status()
	resp := HealthResponse{
		Status:      "healthy",
		ModelLoaded: st.Loaded,
		ArtifactID:  st.ArtifactID,
		LoadedAt:    st.LoadedAt,
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Database = "ok"
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rules, err := s.recommender.ListRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, StatsResponse{Counters: logger.Snapshot(), Rules: len(rules)})
}

// decodeRecord reads an applicant record. Numbers stay json.Number until
// features.FromMap converts them.
func decodeRecord(w http.ResponseWriter, r *http.Request) (features.Record, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return features.Record{}, failure.MalformedInput("decode request", err)
	}
	return features.FromMap(raw)
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		logger.RejectedInput()
		respondFailure(w, "invalid applicant record", err)
		return
	}

	result, err := s.scorer.Predict(r.Context(), record)
	if err != nil {
		respondFailure(w, "assessment failed", err)
		return
	}

	recs, err := s.recommender.Recommend(recommend.Assessment{
		CreditScore:        result.CreditScore,
		SDGScore:           result.SDGScore,
		DefaultProbability: result.DefaultProbability,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "recommendation failed", err)
		return
	}
	if recs == nil {
		recs = []string{}
	}

	respondJSON(w, http.StatusOK, AssessResponse{
		Analysis:        result,
		Recommendations: recs,
		Status:          "success",
	})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	record, err := decodeRecord(w, r)
	if err != nil {
		logger.RejectedInput()
		respondFailure(w, "invalid applicant record", err)
		return
	}

	factors, err := s.scorer.Explain(r.Context(), record)
	if err != nil {
		respondFailure(w, "explanation failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"risk_factors": factors})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.scorer.Reload(r.Context()); err != nil {
		respondFailure(w, "model reload failed", err)
		return
	}
	logger.ModelReloaded()

	st := s.scorer.Status()
	logger.Info("model reloaded", "artifact_id", st.ArtifactID)
	respondJSON(w, http.StatusOK, ReloadResponse{
		Status:     "reloaded",
		ArtifactID: st.ArtifactID,
		LoadedAt:   st.LoadedAt,
	})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.recommender.ListRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if rules == nil {
		rules = []*recommend.Rule{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: rules})
}

func decodeRule(w http.ResponseWriter, r *http.Request) (*recommend.Rule, error) {
	var req RuleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body: %w", recommend.ErrInvalidRule, err)
	}

	var missing []string
	if strings.TrimSpace(req.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(req.Expression) == "" {
		missing = append(missing, "expression")
	}
	if strings.TrimSpace(req.Recommendation) == "" {
		missing = append(missing, "recommendation")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", recommend.ErrInvalidRule, strings.Join(missing, ", "))
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &recommend.Rule{
		Name:           req.Name,
		Expression:     req.Expression,
		Recommendation: req.Recommendation,
		Priority:       req.Priority,
		Active:         active,
	}, nil
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeRule(w, r)
	if err != nil {
		respondFailure(w, "invalid rule", err)
		return
	}
	rule.ID = uuid.NewString()

	if err := s.recommender.AddRule(rule); err != nil {
		respondFailure(w, "failed to add rule", err)
		return
	}

	created, err := s.recommender.GetRule(rule.ID)
	if err != nil {
		respondFailure(w, "failed to read rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.recommender.GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondFailure(w, "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeRule(w, r)
	if err != nil {
		respondFailure(w, "invalid rule", err)
		return
	}
	rule.ID = chi.URLParam(r, "ruleId")

	if err := s.recommender.UpdateRule(rule); err != nil {
		respondFailure(w, "failed to update rule", err)
		return
	}

	updated, err := s.recommender.GetRule(rule.ID)
	if err != nil {
		respondFailure(w, "failed to read rule", err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.recommender.DeleteRule(chi.URLParam(r, "ruleId")); err != nil {
		respondFailure(w, "failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, failure.ErrMalformedInput), errors.Is(err, recommend.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, recommend.ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, recommend.ErrRuleExists):
		return http.StatusConflict
	case errors.Is(err, failure.ErrConfiguration):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondFailure(w http.ResponseWriter, message string, err error) {
	respondError(w, statusFor(err), message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		logger.Error(message, "status", status, "error", err)
	}
	respondJSON(w, status, resp)
}

func main() {
	configPath := flag.String("config", os.Getenv("GREENSCORE_CONFIG"), "path to YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Init(ctx, logger.FromEnv("greenscore-api"))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port,
			"model_store", cfg.Model.Backend, "rules_store", cfg.Rules.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
	_ = logger.Shutdown(shutdownCtx)
}
