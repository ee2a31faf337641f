package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/assist"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/observability"
	"github.com/sitebooks/sitebooks/internal/platform/httpx"
	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AccountingHandler  *accounting.Handler
	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	AssistHandler      *assist.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with SiteBooks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AccountingHandler != nil {
		params.AccountingHandler.MountRoutes(r)
	}
	if params.InventoryHandler != nil {
		params.InventoryHandler.MountRoutes(r)
	}
	if params.ProcurementHandler != nil {
		params.ProcurementHandler.MountRoutes(r)
	}
	if params.AssistHandler != nil {
		params.AssistHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})
	return r
}

// NewHandlers builds the HTTP handlers for c. enqueuer may be nil.
func NewHandlers(c *Container, enqueuer procurement.CompletionEnqueuer, jobHandler *jobs.Handler) RouterParams {
	return RouterParams{
		Logger:             c.Logger,
		Config:             c.Config,
		AccountingHandler:  accounting.NewHandler(c.Logger, c.Accounting),
		InventoryHandler:   inventory.NewHandler(c.Logger, c.Inventory),
		ProcurementHandler: procurement.NewHandler(c.Logger, c.Procurement, enqueuer),
		AssistHandler:      assist.NewHandler(c.Logger, c.Assist),
		JobHandler:         jobHandler,
		Metrics:            c.Metrics,
	}
}
