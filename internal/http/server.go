package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"peppermint/internal/backend"
	applog "peppermint/internal/log"
	"peppermint/internal/middleware/ratelimit"
	"peppermint/internal/middleware/security"
	"peppermint/internal/middleware/trace"
	"peppermint/internal/services"
	appweb "peppermint/web"
)

type Server struct {
	http.Server
	templates *template.Template
	agg       *services.Aggregator
	accounts  backend.AccountLister

	limiter      *ratelimit.Limiter
	detector     *security.Detector
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
// The aggregator drives every page; the account lister feeds the create form.
func NewServer(addr string, agg *services.Aggregator, accounts backend.AccountLister) *Server {
	mux := http.NewServeMux()

	s := &Server{
		agg:      agg,
		accounts: accounts,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector: security.NewDetector(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/transactions/", s.handleTransactions)
	// UI partials
	mux.HandleFunc("/ui/transactions", s.handleTransactionsPartial)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	traceMW := trace.NewMiddleware(s.detector.ExtractClientIP)
	limitMW := s.limiter.Middleware(s.detector.ExtractClientIP, nil)

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)

	var handler http.Handler = mux
	handler = s.rateLimitPosts(limitMW, handler)
	handler = headers.Middleware(handler)
	handler = s.flagSuspicious(handler)
	handler = applog.Middleware(logger)(handler)
	handler = traceMW.Middleware(handler)

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// flagSuspicious logs requests matching known probe patterns. They are
// served normally; the log line is for operators, not a block.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request",
				"path", r.URL.Path, "client_ip", s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitPosts applies the limiter to mutating requests only; reads and
// static assets stay unthrottled.
func (s *Server) rateLimitPosts(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodDelete {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
