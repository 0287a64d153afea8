// Package api exposes the capture flow and device status over HTTP for a
// browser front end on the same device.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/model"
	"github.com/sells-group/leadscan/internal/monitoring"
	"github.com/sells-group/leadscan/internal/queue"
)

// Capturer is the capture flow the API drives.
type Capturer interface {
	Begin(src capture.ImageSource) error
	Extract(ctx context.Context) (capture.Extraction, error)
	Review(fields model.Fields) error
	Submit(ctx context.Context) (capture.SubmitResult, error)
	Cancel()
}

// Drainer retries queued leads.
type Drainer interface {
	Drain(ctx context.Context) (queue.DrainResult, error)
}

// Records is the store view the API reads and writes directly.
type Records interface {
	LoadIdentity(ctx context.Context) (string, error)
	SaveIdentity(ctx context.Context, name string) error
	LoadHistory(ctx context.Context) ([]model.HistoryEntry, error)
}

// Snapshotter reports device status.
type Snapshotter interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Deps are the components behind the routes.
type Deps struct {
	Capture        Capturer
	Queue          Drainer
	Records        Records
	Status         Snapshotter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// Server holds the route handlers. The capture flow holds one lead at a
// time, so lead and scan requests are serialized.
type Server struct {
	deps      Deps
	captureMu sync.Mutex
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	s := &Server{deps: d}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/history", s.history)
		r.Get("/history.xlsx", s.historyXLSX)
		r.Put("/identity", s.putIdentity)
		r.Post("/leads", s.postLead)
		r.Post("/scan", s.postScan)
		r.Post("/queue/retry", s.retryQueue)
	})

	return r
}

type ctxKey int

const requestIDKey ctxKey = iota

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestIDFrom returns the request ID set by the router, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("component", "api"),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
