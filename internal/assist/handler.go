package assist

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
)

// Handler exposes assist endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers assist routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/assist/orders", func(r chi.Router) {
		r.Post("/{id}/summary", h.summarize)
		r.Post("/draft", h.draft)
	})
}

type draftRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	summary, err := h.service.Summarize(r.Context(), id)
	if err != nil {
		h.fail(w, "assist summarize", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order_id": id, "summary": summary})
}

func (h *Handler) draft(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		httpx.RespondError(w, ErrDisabled)
		return
	}
	var req draftRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	input, err := h.service.DraftOrder(r.Context(), req.Text)
	if err != nil {
		h.fail(w, "assist draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, input)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.Expected(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
