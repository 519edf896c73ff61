package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/pipeline"
)

// ServiceName is reported by the root endpoint
const ServiceName = "provenance-radar-api"

// shutdownTimeout bounds how long in-flight requests may finish on shutdown
const shutdownTimeout = 10 * time.Second

// Service is everything the HTTP layer asks of the pipeline
type Service interface {
	Health(ctx context.Context) (*pipeline.Health, error)
	Windows() []model.PolicyWindow
	Leads(ctx context.Context, q pipeline.LeadsQuery) ([]map[string]any, error)
	ObjectDetail(ctx context.Context, objectID int64) (*pipeline.ObjectDetail, error)
	Graph(ctx context.Context, objectID int64) (model.Graph, error)
	Places(ctx context.Context, objectID int64) ([]model.PlaceInfo, error)
	Timeline(ctx context.Context, objectID int64) ([]model.TimelineItem, error)
	Keyword(ctx context.Context, q string, limit int) ([]model.KeywordHit, error)
	Similar(ctx context.Context, q pipeline.SimilarQuery) (*pipeline.SimilarResult, error)
	Vocab(ctx context.Context, field string, limit int) ([]model.VocabEntry, error)
	ExplainObject(ctx context.Context, objectID int64) (*pipeline.Explanation, error)
	ExplainText(ctx context.Context, text string) (*pipeline.Explanation, error)
}

// Server is the provenance HTTP API
type Server struct {
	service  Service
	config   model.ServerConfig
	logger   *zap.Logger
	metrics  *Metrics
	validate *validator.Validate
}

// NewServer creates a server around service
func NewServer(service Service, config model.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	// Report JSON field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Server{
		service:  service,
		config:   config,
		logger:   logger,
		metrics:  NewMetrics("provradar"),
		validate: v,
	}
}

// Handler configures all routes and middleware
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(instrument(s.metrics))

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", s.root)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/policy/windows", s.policyWindows)
		r.With(noStore).Get("/leads", s.leads)
		r.With(noStore).Get("/object/{id}", s.object)
		r.Get("/graph/{id}", s.graph)
		r.Get("/places/{id}", s.places)
		r.Get("/timeline/{id}", s.timeline)
		r.Get("/keyword", s.keyword)
		r.Post("/similar", s.similar)
		r.Get("/vocab", s.vocab)
		r.Get("/explain/object/{id}", s.explainObject)
		r.Post("/explain/text", s.explainText)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
