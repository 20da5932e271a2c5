// Package api serves evaluations and the standalone scorers over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/creator-credit/internal/metrics"
	"github.com/sells-group/creator-credit/internal/model"
	"github.com/sells-group/creator-credit/internal/scorer"
	"github.com/sells-group/creator-credit/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// Evaluator runs one loan request.
type Evaluator interface {
	Evaluate(ctx context.Context, req *model.LoanRequest) (*model.Evaluation, error)
}

// Deps are the handlers' collaborators. Store and Metrics may be nil.
type Deps struct {
	Evaluator Evaluator
	Store     store.Store
	Credit    *scorer.CreditScorer
	Channel   *scorer.ChannelScorer
	Metrics   *metrics.Recorder
}

// Options tune the router.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
	opts Options
}

// New creates a Server.
func New(deps Deps, opts Options) *Server {
	return &Server{deps: deps, opts: opts}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if s.opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.opts.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluations", s.createEvaluation)
		r.Get("/evaluations", s.listEvaluations)
		r.Get("/evaluations/{id}", s.getEvaluation)
		r.Post("/scores/credit", s.scoreCredit)
		r.Post("/scores/channel", s.scoreChannel)
	})
	return r
}

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req model.LoanRequest
	if !decode(w, r, &req) {
		return
	}

	ev, err := s.deps.Evaluator.Evaluate(r.Context(), &req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ev)
	case model.IsValidation(err):
		writeError(w, http.StatusBadRequest, err)
	case ev != nil && ev.Status == model.StatusInvalidDecision:
		writeJSON(w, http.StatusUnprocessableEntity, ev)
	case ev != nil && ev.Status == model.StatusFailed && model.IsScoringUnavailable(err):
		writeJSON(w, http.StatusBadGateway, ev)
	default:
		zap.L().Error("api: evaluation error", zap.String("channel_id", req.ChannelID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}
	ev, err := s.deps.Store.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	q := r.URL.Query()
	filter := model.EvaluationFilter{ChannelID: q.Get("channel_id")}
	if status := q.Get("status"); status != "" {
		filter.Status = model.EvaluationStatus(status)
		if !filter.Status.Valid() {
			writeError(w, http.StatusBadRequest, &model.ValidationError{Field: "status", Reason: "unknown status " + status})
			return
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, &model.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		filter.Limit = n
	}

	evs, err := s.deps.Store.ListEvaluations(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if evs == nil {
		evs = []model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evs)
}

type creditScoreResponse struct {
	Score   int                 `json:"score"`
	Metrics model.CreditMetrics `json:"metrics"`
}

func (s *Server) scoreCredit(w http.ResponseWriter, r *http.Request) {
	var bd model.BankingData
	if !decode(w, r, &bd) {
		return
	}
	if err := bd.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := s.deps.Credit.Evaluate(bd.ScoringAccount())
	s.deps.Metrics.CreditScore(res.Score)
	writeJSON(w, http.StatusOK, creditScoreResponse{Score: res.Score, Metrics: res.Metrics})
}

type channelScoreResponse struct {
	Score   float64              `json:"score"`
	Metrics model.ChannelMetrics `json:"metrics"`
}

func (s *Server) scoreChannel(w http.ResponseWriter, r *http.Request) {
	var in model.ChannelMetricsInput
	if !decode(w, r, &in) {
		return
	}
	m, err := in.Metrics()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	score := s.deps.Channel.Evaluate(m)
	s.deps.Metrics.ChannelScore(score)
	writeJSON(w, http.StatusOK, channelScoreResponse{Score: score, Metrics: m})
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if !model.IsValidation(err) {
			err = &model.ValidationError{Field: "body", Reason: err.Error()}
		}
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
