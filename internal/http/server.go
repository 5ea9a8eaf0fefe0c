package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"banklink/internal/aggregator"
	"banklink/internal/aggregator/plaid"
	"banklink/internal/core"
	"banklink/internal/linking"
	"banklink/internal/log"
	"banklink/internal/middleware/ratelimit"
	"banklink/internal/middleware/security"
	"banklink/internal/middleware/trace"
	appweb "banklink/web"
)

// Spending is what the dashboard needs from the spending service.
type Spending interface {
	Provider() core.Provider
	IsLinked(ctx context.Context) (bool, error)
	View(ctx context.Context) (core.SpendingView, error)
	StoreTokens(ctx context.Context, t core.AuthTokens) error
	Unlink(ctx context.Context) error
	Refresh()
}

// ReadinessCheck is a named dependency check for /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	Addr        string
	LinkMode    linking.Mode
	LinkTimeout time.Duration
	// SummaryTimeout bounds a dashboard fetch. It must cover the data
	// source's whole retry schedule or PRODUCT_NOT_READY never surfaces.
	SummaryTimeout time.Duration
	RateLimit      ratelimit.Config
	Logger         *log.Logger
}

type Deps struct {
	Spending  Spending
	Initiator *linking.Initiator
	Callback  *linking.CallbackHandler
	// Linker is set when the provider is Plaid.
	Linker plaid.Linker
	Checks []ReadinessCheck
}

type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	spending  Spending
	initiator *linking.Initiator
	callback  *linking.CallbackHandler
	linker    plaid.Linker
	checks    []ReadinessCheck

	linkMode       linking.Mode
	linkTimeout    time.Duration
	summaryTimeout time.Duration
	pending        *pendingRegistry

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.LinkMode == "" {
		cfg.LinkMode = linking.ModePopup
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = 5 * time.Minute
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = aggregator.DefaultRetryPolicy().Budget(30*time.Second) + 5*time.Second
	}
	logger := cfg.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:         logger,
		spending:       deps.Spending,
		initiator:      deps.Initiator,
		callback:       deps.Callback,
		linker:         deps.Linker,
		checks:         deps.Checks,
		linkMode:       cfg.LinkMode,
		linkTimeout:    cfg.LinkTimeout,
		summaryTimeout: cfg.SummaryTimeout,
		// An attempt nobody waits on is dropped once the user could no longer finish it.
		pending: newPendingRegistry(cfg.LinkTimeout),
		limiter: ratelimit.NewLimiter(cfg.RateLimit),
		tracer:  trace.NewMiddleware(logger, security.ClientIP),
		started: time.Now(),
	}

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	}
	s.templates = t

	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Get("/ui/summary", s.handleSummary)

	r.With(security.NoStore).Group(func(r chi.Router) {
		r.Get("/callback", s.handleCallback)
		r.Get("/link/wait", s.handleLinkWait)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(security.ClientIP))
			r.Post("/link", s.handleLink)
			r.Post("/link/cancel", s.handleLinkCancel)
			r.Post("/unlink", s.handleUnlink)

			if s.linker != nil {
				r.Get("/plaid/link-token", s.handlePlaidLinkToken)
				r.Post("/plaid/exchange", s.handlePlaidExchange)
			}
		})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.pending.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
