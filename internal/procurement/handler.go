package procurement

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
	"github.com/sitebooks/sitebooks/internal/shared"
)

// CompletionEnqueuer schedules completion on a background worker.
type CompletionEnqueuer interface {
	EnqueueCompletion(ctx context.Context, orderID int64) (string, error)
}

// Handler manages procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer CompletionEnqueuer
	validate *validator.Validate
}

// NewHandler builds Handler instance. enqueuer may be nil, in which case
// asynchronous completion answers 503.
func NewHandler(logger *slog.Logger, service *Service, enqueuer CompletionEnqueuer) *Handler {
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/procurement/orders", func(r chi.Router) {
		r.Get("/", h.listPOs)
		r.Post("/", h.createPO)
		r.Get("/{id}", h.getPO)
		r.Put("/{id}", h.updatePO)
		r.Post("/{id}/submit", h.submitPO)
		r.Post("/{id}/approve", h.approvePO)
		r.Post("/{id}/cancel", h.cancelPO)
		r.Post("/{id}/complete", h.completePO)
		r.Post("/{id}/complete-async", h.completePOAsync)
	})
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status:   POStatus(q.Get("status")),
		Supplier: q.Get("supplier"),
		Search:   q.Get("search"),
	}
	if filters.Status != "" && !filters.Status.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status "+string(filters.Status))
		return
	}
	pos, err := h.service.ListPurchaseOrders(r.Context(), filters)
	if err != nil {
		h.fail(w, "list POs", err)
		return
	}
	page, perPage := shared.PageFromQuery(q)
	start, end := shared.Window(len(pos), page, perPage)
	items := pos[start:end]
	if items == nil {
		items = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"pagination": shared.NewPagination(page, perPage, len(pos)),
	})
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var input CreatePOInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.fail(w, "create PO", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.fail(w, "get PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) updatePO(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input CreatePOInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	po, err := h.service.UpdatePurchaseOrder(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update PO", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) submitPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "submit PO", h.service.SubmitPurchaseOrder)
}

func (h *Handler) approvePO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve PO", h.service.ApprovePurchaseOrder)
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel PO", h.service.CancelPurchaseOrder)
}

func (h *Handler) completePO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete PO", h.service.CompletePurchaseOrder)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) (PurchaseOrder, error)) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) completePOAsync(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background worker not configured")
		return
	}
	if _, err := h.service.GetPurchaseOrder(r.Context(), id); err != nil {
		h.fail(w, "complete PO async", err)
		return
	}
	taskID, err := h.enqueuer.EnqueueCompletion(r.Context(), id)
	if err != nil {
		h.fail(w, "enqueue completion", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "order_id": id})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.Expected(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
