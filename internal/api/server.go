package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/leolhan1425/bc-tracker/internal/metrics"
	"github.com/leolhan1425/bc-tracker/internal/models"
	"github.com/leolhan1425/bc-tracker/internal/monitoring"
	"github.com/leolhan1425/bc-tracker/internal/scheduler"
	"github.com/leolhan1425/bc-tracker/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Querier is the read side of the tracker store.
type Querier interface {
	CategoryCounts(ctx context.Context, f store.Filter) ([]models.CategoryCount, error)
	DailySeries(ctx context.Context, f store.Filter) (models.DailySeries, error)
	SentimentByCategory(ctx context.Context, f store.Filter) ([]models.CategorySentiment, error)
	SideEffectCounts(ctx context.Context, f store.Filter, category string) ([]models.CategoryCount, error)
	EffectMatrix(ctx context.Context, f store.Filter) (models.EffectMatrix, error)
	TopPosts(ctx context.Context, category string, f store.Filter, limit int) ([]models.PostSummary, error)
	CommentsForPost(ctx context.Context, postID string) ([]models.CommentSummary, error)
	PostSideEffects(ctx context.Context, postID string) ([]string, error)
	RecentErrors(ctx context.Context, limit int) ([]models.IngestionError, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Ingestor triggers and explains ingestion passes.
type Ingestor interface {
	StartIngestion(ctx context.Context, opts monitoring.RunOptions) error
	Status() monitoring.Status
	Explain(text string) *models.Explanation
	ValidationExamples(ctx context.Context, section string, limit int) ([]models.ValidationExample, error)
}

// Schedule reports the periodic trigger state.
type Schedule interface {
	Status() scheduler.Status
}

// Server serves the dashboard API
type Server struct {
	store    Querier
	ingestor Ingestor
	schedule Schedule
	// baseCtx outlives requests; passes started over HTTP run with it.
	baseCtx context.Context
	router  *mux.Router
}

// NewServer builds the router. schedule may be nil.
func NewServer(baseCtx context.Context, q Querier, ing Ingestor, schedule Schedule) *Server {
	s := &Server{
		store:    q,
		ingestor: ing,
		schedule: schedule,
		baseCtx:  baseCtx,
		router:   mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(instrument)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/data", s.handleData).Methods(http.MethodGet)
	api.HandleFunc("/sentiment", s.handleSentiment).Methods(http.MethodGet)
	api.HandleFunc("/side-effects", s.handleSideEffects).Methods(http.MethodGet)
	api.HandleFunc("/side-effects-heatmap", s.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/posts", s.handlePosts).Methods(http.MethodGet)
	api.HandleFunc("/comments", s.handleComments).Methods(http.MethodGet)
	api.HandleFunc("/post-effects", s.handlePostEffects).Methods(http.MethodGet)
	api.HandleFunc("/explain", s.handleExplain).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/validate", s.handleValidate).Methods(http.MethodGet)
	api.HandleFunc("/errors", s.handleErrors).Methods(http.MethodGet)
	api.HandleFunc("/scrape", s.handleScrape).Methods(http.MethodPost)
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		logrus.Debugf("%s %s %d", r.Method, r.URL.Path, rec.code)
	})
}
