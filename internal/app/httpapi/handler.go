package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	app "github.com/Aromatic05/CurioBox-sub000/internal/app"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/domain/page"
	"github.com/Aromatic05/CurioBox-sub000/internal/app/metrics"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/httputil"
	"github.com/Aromatic05/CurioBox-sub000/internal/middleware"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	// Limiter throttles API, upload and websocket requests per user, or per
	// client IP for anonymous callers; nil disables rate limiting.
	Limiter *middleware.RateLimiter
	// Audit records admin writes; nil keeps an in-memory ring only.
	Audit   *AuditLog
	Version string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	log      *logger.Logger
	audit    *AuditLog
	validate *validator.Validate
	started  time.Time
	version  string
	limit    func(http.Handler) http.Handler
}

// NewHandler returns the full API: routes, middleware chain and static files.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	if opts.Audit == nil {
		opts.Audit = NewAuditLog(0, nil)
	}
	h := &handler{
		app:      application,
		log:      log,
		audit:    opts.Audit,
		validate: newValidator(),
		started:  time.Now(),
		version:  opts.Version,
		limit:    func(next http.Handler) http.Handler { return next },
	}
	if opts.Limiter != nil {
		h.limit = opts.Limiter.Handler
	}
	authn := middleware.NewAuthMiddleware(application.Accounts, log.Named("auth"))

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, apperrors.NotFound("route", r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorBody{Error: &apperrors.ServiceError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: r.Method + " not allowed",
		}})
	})
	router.Use(metrics.InstrumentHandler)

	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.Handle("/ws", authn.RequiredWithQuery(h.limit(http.HandlerFunc(h.websocket)))).Methods(http.MethodGet)

	prefix := application.Uploads.Prefix() + "/"
	router.PathPrefix(prefix).Handler(h.limit(http.StripPrefix(prefix, noDirListing(http.FileServer(http.Dir(application.Uploads.Dir())))))).
		Methods(http.MethodGet, http.MethodHead)

	api := router.PathPrefix("/api").Subrouter()
	// Auth runs before the limiter so signed-in callers are keyed by user.
	public := func(fn http.HandlerFunc) http.Handler { return authn.Optional(h.limit(fn)) }
	private := func(fn http.HandlerFunc) http.Handler { return authn.Required(h.limit(fn)) }

	h.registerAccountRoutes(api, public, private)
	h.registerCatalogRoutes(api, public)
	h.registerOrderRoutes(api, private)
	h.registerShowcaseRoutes(api, public, private)
	api.Handle("/uploads", private(h.upload)).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authn.Required, h.limit, middleware.RequireAdmin, h.audit.middleware)
	h.registerAdminRoutes(admin)

	var root http.Handler = router
	root = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(root)
	root = middleware.Recovery(log)(root)
	root = middleware.NewTracingMiddleware(log).Handler(root)
	return root
}

type wrap func(http.HandlerFunc) http.Handler

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
		"services": h.app.Services(),
	})
}

func (h *handler) websocket(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Notify.Serve(w, r, middleware.GetUserID(r.Context())); err != nil {
		h.log.WithError(err).WithField("trace_id", middleware.GetTraceID(r.Context())).Debug("websocket closed")
	}
}

// noDirListing hides directory indexes from the upload file server.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			httputil.WriteError(w, apperrors.NotFound("file", r.URL.Path))
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// decode reads and validates a JSON body.
func (h *handler) decode(r *http.Request, dst interface{}) error {
	if err := httputil.DecodeJSON(r, dst, httputil.DefaultBodyLimit); err != nil {
		return err
	}
	return h.check(dst)
}

func pageRequest(r *http.Request) page.Request {
	q := r.URL.Query()
	p, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return page.Request{Page: p, Size: size}.Normalize()
}

func queryBool(r *http.Request, key string) (bool, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) { httputil.WriteJSON(w, status, v) }

func writeError(w http.ResponseWriter, err error) { httputil.WriteError(w, err) }
