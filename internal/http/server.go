package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
	appweb "expensetracker/web"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "sessionid"

// Options configures routing and cookies.
type Options struct {
	Addr                string
	LoginURL            string
	AccessDeniedURL     string
	SessionCookieSecure bool
	RateLimitPerMinute  int
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers call.
type Deps struct {
	Auth     *auth.Service
	Expenses *services.ExpenseService
	Reports  *services.ReportService
	DB       Pinger
	Logger   *applog.Logger
}

type Server struct {
	http.Server
	pages    map[string]*template.Template
	auth     *auth.Service
	expenses *services.ExpenseService
	reports  *services.ReportService
	db       Pinger
	opts     Options
	logger   *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if opts.LoginURL == "" {
		opts.LoginURL = "/login"
	}
	if opts.AccessDeniedURL == "" {
		opts.AccessDeniedURL = opts.LoginURL
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.ForComponent(applog.ComponentHTTP)
	}

	pages, err := parsePages(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	limiterCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		pages:    pages,
		auth:     deps.Auth,
		expenses: deps.Expenses,
		reports:  deps.Reports,
		db:       deps.DB,
		opts:     opts,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(limiterCfg),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		s.limiter.Stop()
		return nil, err
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, nil, http.MethodPost)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.HandleFunc("POST /login", s.handleLogin)
	for _, path := range []string{"/sign-up", "/login/sign-up"} {
		mux.HandleFunc("GET "+path, s.handleSignUpForm)
		mux.HandleFunc("POST "+path, s.handleSignUp)
	}
	mux.HandleFunc("/logout/{$}", s.handleLogout)

	manager := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.authenticated(s.requireManager(h)))
	}

	mux.Handle("GET /{$}", manager(s.handleDashboard))
	mux.Handle("GET /dashboard", manager(s.handleDashboard))

	mux.Handle("GET /expenses", security.NoStore(s.authenticated(http.HandlerFunc(s.handleListExpenses))))
	mux.Handle("GET /expenses/add/{$}", manager(s.handleAddExpenseForm))
	mux.Handle("POST /expenses/add/{$}", manager(s.handleAddExpense))
	mux.Handle("GET /expenses/update/{id}", manager(s.handleUpdateExpenseForm))
	mux.Handle("POST /expenses/update/{id}", manager(s.handleUpdateExpense))
	mux.Handle("GET /expenses/delete/{id}", manager(s.handleDeleteExpenseConfirm))
	mux.Handle("POST /expenses/delete/{id}", manager(s.handleDeleteExpense))
	mux.Handle("GET /expenses/export_pdf/{$}", manager(s.handleExportPDF))
	mux.Handle("GET /expenses/generate_pdf/{$}", manager(s.handleGeneratePDF))
	mux.Handle("GET /expenses/send_report/{$}", manager(s.handleSendReport))

	return nil
}

// Shutdown stops background cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe runs the server until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(r *http.Request) *applog.Logger {
	return applog.FromContext(r.Context())
}

// serverError logs err and answers with a plain 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.requestLogger(r).ErrorContext(r.Context(), msg,
		applog.FieldError, err,
		applog.FieldPath, r.URL.Path)
	InternalServerError("Internal server error").Write(w)
}

// landingPath is where a user goes after logging in.
func landingPath(u core.User) string {
	if u.CanManageExpenses() {
		return "/"
	}
	return "/expenses"
}
