// Package metrics holds the prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestCounter counts HTTP requests by method, route and status.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration observes HTTP request latency by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"method", "endpoint"},
	)

	// QuizLookups counts quiz requests served from the store or generated.
	QuizLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_lookups_total",
			Help: "Quiz requests by cache result (hit, miss)",
		},
		[]string{"result"},
	)

	// QuizGenerations counts generated quizzes by generation path.
	QuizGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_generations_total",
			Help: "Generated quizzes by generation path (llm, fallback)",
		},
		[]string{"source"},
	)

	// AttemptsGraded counts stored attempts.
	AttemptsGraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_attempts_graded_total",
			Help: "Attempts graded and stored",
		},
	)

	// GradingDuration observes the time spent grading one submission.
	GradingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quiz_grading_duration_seconds",
			Help:    "Time spent grading a submission, embeddings included",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Reports counts learning reports by generation path.
	Reports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_reports_total",
			Help: "Learning reports by generation path (llm, fallback)",
		},
		[]string{"source"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestCounter,
		RequestDuration,
		QuizLookups,
		QuizGenerations,
		AttemptsGraded,
		GradingDuration,
		Reports,
	)
}

// Middleware records request counts and latencies by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}
