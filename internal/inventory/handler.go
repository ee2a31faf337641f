package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/items", h.listItems)
		r.Post("/items", h.createItem)
		r.Get("/items/{id}", h.getItem)
		r.Put("/items/{id}", h.updateItem)
		r.Delete("/items/{id}", h.deleteItem)
		r.Get("/items/{id}/movements", h.listMovements)
		r.Post("/receipts", h.receive)
		r.Post("/issues", h.issue)
		r.Get("/valuation.xlsx", h.exportValuation)
	})
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.service.ListItems(r.Context(), ItemFilter{Category: q.Get("category"), Search: q.Get("search")})
	if err != nil {
		h.fail(w, "list items", err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var input ItemInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), input)
	if err != nil {
		h.fail(w, "create item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input ItemInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		h.fail(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	movements, err := h.service.ListMovements(r.Context(), id)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	if movements == nil {
		movements = []Movement{}
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var input ReceiptInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	item, movement, err := h.service.Receive(r.Context(), input)
	if err != nil {
		h.fail(w, "receive stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item": item, "movement": movement})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var input IssueInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	item, movement, err := h.service.Issue(r.Context(), input)
	if err != nil {
		h.fail(w, "issue stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"item": item, "movement": movement})
}

func (h *Handler) exportValuation(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), ItemFilter{})
	if err != nil {
		h.fail(w, "export valuation", err)
		return
	}
	f, err := buildValuation(items)
	if err != nil {
		h.fail(w, "export valuation", err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=valuation.xlsx")
	if err := f.Write(w); err != nil {
		h.logger.Error("write valuation", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.Expected(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
