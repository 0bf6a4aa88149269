// Package api serves quotes, composite rates, broadcast controls and
// power configs over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"ratefeed/internal/broadcast"
	"ratefeed/internal/composite"
	"ratefeed/internal/power"
	"ratefeed/internal/provider"
)

type RateComputer interface {
	Compute(ctx context.Context, sel power.Selector) (*composite.Rate, error)
}

type BroadcastRunner interface {
	Run(ctx context.Context) (*composite.Rate, error)
}

type TemplateStore interface {
	Get(id string) (broadcast.Template, error)
	Update(id string, p broadcast.TemplatePatch) (broadcast.Template, error)
}

// IntervalScheduler is satisfied by *broadcast.Scheduler.
type IntervalScheduler interface {
	Interval(id string) (time.Duration, bool)
	Reschedule(id string, every time.Duration) error
}

type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// Deps are the collaborators behind the routes. All are required.
type Deps struct {
	Providers provider.Registry
	Calc      RateComputer
	Broadcast BroadcastRunner
	Templates TemplateStore
	Scheduler IntervalScheduler
	Powers    power.Store
	Logger    *slog.Logger
}

type handlers struct {
	Deps
	log *slog.Logger
}

// NewHandler builds the router and wraps it in the middleware chain.
// Routes are served both at the root and under /api/v1.
func NewHandler(d Deps, o Options) http.Handler {
	h := &handlers{Deps: d, log: d.Logger}
	if h.log == nil {
		h.log = slog.Default()
	}

	r := mux.NewRouter()
	h.routes(r)
	h.routes(r.PathPrefix("/api/v1").Subrouter())
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var handler http.Handler = r
	for _, mw := range []func(http.Handler) http.Handler{
		limitBody(o.MaxBodyBytes),
		withTimeout(o.RequestTimeout),
		recoverPanic(h.log),
		withGzip,
		withJSONHeaders(o.AllowedOrigins),
		withAccessLog(h.log),
		withRequestID,
	} {
		handler = mw(handler)
	}
	return handler
}

func (h *handlers) routes(r *mux.Router) {
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	c := r.PathPrefix("/crypto").Subrouter()
	c.HandleFunc("/price", h.getPrice).Methods(http.MethodGet)
	c.HandleFunc("/compose", h.getCompose).Methods(http.MethodGet)
	c.HandleFunc("/broadcast", h.triggerBroadcast).Methods(http.MethodGet, http.MethodPost)
	c.HandleFunc("/template/{id}", h.getTemplate).Methods(http.MethodGet)
	c.HandleFunc("/template/{id}", h.updateTemplate).Methods(http.MethodPut)
	c.HandleFunc("/broadcast-interval", h.getInterval).Methods(http.MethodGet)
	c.HandleFunc("/broadcast-interval", h.updateInterval).Methods(http.MethodPut)

	p := r.PathPrefix("/power").Subrouter()
	p.HandleFunc("/configs/power/batch", h.setAllPowers).Methods(http.MethodPut)
	p.HandleFunc("/configs", h.listPowers).Methods(http.MethodGet)
	p.HandleFunc("/configs", h.createPower).Methods(http.MethodPost)
	p.HandleFunc("/configs/{group}", h.getPower).Methods(http.MethodGet)
	p.HandleFunc("/configs/{group}", h.updatePower).Methods(http.MethodPut)
	p.HandleFunc("/configs/{group}", h.deletePower).Methods(http.MethodDelete)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
