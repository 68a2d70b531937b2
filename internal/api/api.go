package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jbweber/homelab/shelf/internal/datastore"
	"github.com/jbweber/homelab/shelf/internal/logging"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// API wires the book handlers and service endpoints to a datastore
type API struct {
	books  *Books
	pinger Pinger
	logger *zap.Logger
}

// NewAPI creates a new API instance serving books from ds
func NewAPI(ds *datastore.Datastore, logger *zap.Logger) *API {
	return newAPI(DatastoreSessions(ds), ds, logger)
}

func newAPI(open SessionOpener, pinger Pinger, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	controller := NewBooksController(open, logger)
	return &API{
		books:  NewBooks(controller, logger),
		pinger: pinger,
		logger: logger,
	}
}

// RegisterRoutes registers all API endpoints to the given chi router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/", a.bannerHandler)
	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)

	a.books.RegisterRoutes(r)
}

// NewRouter builds the chi router with request ids, request logging, panic
// recovery and a per request deadline of requestTimeout.
func NewRouter(a *API, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(a.logger))
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	a.RegisterRoutes(r)
	return r
}

func (a *API) bannerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprintln(w, "Shelf book catalog is running!"); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}

// healthzHandler reports liveness; it never touches the store
func (a *API) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprintln(w, "ok"); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}

// readyzHandler reports 503 until the store answers a ping
func (a *API) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.pinger != nil {
		if err := a.pinger.Ping(r.Context()); err != nil {
			writeError(w, r, a.logger, http.StatusServiceUnavailable, "Datastore unavailable", err)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	if _, err := fmt.Fprintln(w, "ready"); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}
