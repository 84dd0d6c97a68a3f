// Package http exposes the tracker as a JSON API. Identity arrives on the
// X-User-ID header set by the fronting proxy.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
	"spendtrack/internal/store"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	plans       *services.PlanService
	categories  *services.CategoryService
	reports     *services.ReportsService
	ready       func(context.Context) error
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// The ready probe reports whether the backing store is reachable.
func NewServer(addr string, ledger *services.LedgerService, plans *services.PlanService, categories *services.CategoryService, reports *services.ReportsService, ready func(context.Context) error) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ledger:      ledger,
		plans:       plans,
		categories:  categories,
		reports:     reports,
		ready:       ready,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.wrap(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.wrap(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.wrap(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.wrap(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.wrap(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/plans", s.wrap(s.handleListPlans))
	mux.HandleFunc("POST /api/plans", s.wrap(s.handleCreatePlan))
	mux.HandleFunc("GET /api/plans/{id}", s.wrap(s.handleGetPlan))
	mux.HandleFunc("PUT /api/plans/{id}", s.wrap(s.handleUpdatePlan))
	mux.HandleFunc("DELETE /api/plans/{id}", s.wrap(s.handleDeletePlan))

	mux.HandleFunc("GET /api/categories", s.wrap(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.wrap(s.handleAddCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.wrap(s.handleRenameCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.wrap(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/reports/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/reports/charts", s.wrap(s.handleCharts))
	mux.HandleFunc("GET /api/reports/overview", s.wrap(s.handleOverview))
	mux.HandleFunc("GET /api/reports/months/{year}/{month}", s.wrap(s.handleMonthlySummary))

	return s
}

// wrap is the standard middleware chain for API routes: tracing and
// request logging, rate limiting on writes, then identity.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	handler := withIdentity(next)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)

		requestID := newRequestID()
		w.Header().Set("X-Request-ID", requestID)
		logger := slog.Default().With("request_id", requestID)
		ctx := r.Context()

		if r.Method != http.MethodGet && !s.rateLimiter.allow(ip) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", ip, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}

		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(rw, r)

		logger.InfoContext(ctx, "Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ip)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the background goroutines and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// filterFromQuery builds the shared transaction filter from query
// parameters. Bad dates are a validation error; an absent pair means no
// date filtering.
func filterFromQuery(r *http.Request) (store.TransactionFilter, error) {
	var f store.TransactionFilter
	q := r.URL.Query()

	startRaw, endRaw := q.Get("start_date"), q.Get("end_date")
	if (startRaw == "") != (endRaw == "") {
		return f, &core.ValidationError{Field: "start_date", Reason: "start_date and end_date must be provided together"}
	}
	if startRaw != "" {
		start, err := core.ParseDate(startRaw)
		if err != nil {
			return f, &core.ValidationError{Field: "start_date", Reason: "expected YYYY-MM-DD"}
		}
		end, err := core.ParseDate(endRaw)
		if err != nil {
			return f, &core.ValidationError{Field: "end_date", Reason: "expected YYYY-MM-DD"}
		}
		f.StartDate, f.EndDate = start, end
	}

	f.Status = core.TransactionStatus(q.Get("status"))
	f.Category = q.Get("category")
	return f, nil
}
