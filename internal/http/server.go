package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"finsight/internal/config"
	"finsight/internal/log"
	"finsight/internal/middleware/ratelimit"
	"finsight/internal/middleware/security"
	"finsight/internal/middleware/trace"
	"finsight/internal/services"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services behind the API.
type Services struct {
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Dashboard    *services.DashboardService
	Insights     *services.InsightService
	Store        Pinger
}

// Options tune the HTTP layer.
type Options struct {
	MaxUploadBytes     int64
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
	Logger             *log.Logger
}

// OptionsFromConfig copies the HTTP settings out of cfg.
func OptionsFromConfig(cfg *config.Config, logger *log.Logger) Options {
	return Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	}
}

const defaultMaxUploadBytes = 5 * 1024 * 1024

type Server struct {
	http.Server
	svc      Services
	opts     Options
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	s := &Server{
		svc:  svc,
		opts: opts,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: opts.RateLimitRPS,
			Burst:             opts.RateLimitBurst,
		}),
		detector: security.NewDetector(),
		started:  time.Now(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Addr = addr
	s.Handler = s.middleware(mux)
	s.ReadHeaderTimeout = 10 * time.Second
	s.ReadTimeout = time.Minute
	s.WriteTimeout = 2 * time.Minute
	s.IdleTimeout = 2 * time.Minute
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/transactions/upload", withOwner(s.handleUploadTransactions))
	mux.HandleFunc("POST /api/transactions", withOwner(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", withOwner(s.handleListTransactions))
	mux.HandleFunc("PUT /api/transactions/{id}", withOwner(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", withOwner(s.handleDeleteTransaction))

	mux.HandleFunc("POST /api/budgets", withOwner(s.handleUpsertBudget))
	mux.HandleFunc("GET /api/budgets", withOwner(s.handleGetBudget))
	mux.HandleFunc("GET /api/budgets/all", withOwner(s.handleListBudgets))

	mux.HandleFunc("GET /api/dashboard/summary", withOwner(s.handleDashboardSummary))
	mux.HandleFunc("GET /api/dashboard/yearly", withOwner(s.handleDashboardYearly))

	mux.HandleFunc("POST /api/ai/analyze", withOwner(s.handleAnalyze))
	mux.HandleFunc("POST /api/ai/analyze/async", withOwner(s.handleAnalyzeAsync))
	mux.HandleFunc("GET /api/ai/summaries", withOwner(s.handleSummaries))
}

// middleware wraps the mux, outermost first: tracing, panic recovery,
// security headers, probe detection, CORS, then rate limiting of writes.
func (s *Server) middleware(mux http.Handler) http.Handler {
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, s.onRateLimited)(h)
	if len(s.opts.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: s.opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", HeaderOwner, trace.HeaderRequestID},
			ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
			MaxAge:         600,
		}).Handler(h)
	}
	h = s.withProbeDetection(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.withRecovery(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// withProbeDetection logs requests that look like scans. They are served
// normally.
func (s *Server) withProbeDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.FromContext(r.Context()).ErrorContext(r.Context(), "Handler panic",
					log.FieldError, fmt.Sprint(rec),
					log.FieldPath, r.URL.Path)
				InternalServerError("Internal server error.").Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.limiter.ActiveClients()},
	}

	switch {
	case s.svc.Store == nil:
		checks["store"] = "not_configured"
		status = "not_ready"
	default:
		if err := s.svc.Store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed"
			status = "not_ready"
		} else {
			checks["store"] = "ok"
		}
	}

	data := map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if status != "ready" {
		b := ErrorResponse(http.StatusServiceUnavailable, "Service not ready.")
		b.Data(data).Write(w)
		return
	}
	NewJSONResponse().Data(data).Write(w)
}
