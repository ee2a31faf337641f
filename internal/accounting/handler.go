package accounting

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
	"github.com/sitebooks/sitebooks/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.createAccount)
		r.Get("/vouchers", h.listVouchers)
		r.Post("/vouchers", h.createVoucher)
		r.Get("/vouchers/{id}", h.getVoucher)
		r.Post("/vouchers/{id}/post", h.postVoucher)
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/overview", h.overview)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var input CreateAccountInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), input)
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := VoucherFilter{Status: VoucherStatus(q.Get("status"))}
	var err error
	if filter.From, err = parseDate(q.Get("from")); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	if filter.To, err = parseDate(q.Get("to")); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	vouchers, err := h.service.ListVouchers(r.Context(), filter)
	if err != nil {
		h.fail(w, "list vouchers", err)
		return
	}
	page, perPage := shared.PageFromQuery(q)
	start, end := shared.Window(len(vouchers), page, perPage)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      vouchers[start:end],
		"pagination": shared.NewPagination(page, perPage, len(vouchers)),
	})
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var input CreateVoucherInput
	if err := httpx.DecodeAndValidate(r, h.validate, &input); err != nil {
		httpx.RespondInvalid(w, err)
		return
	}
	voucher, err := h.service.CreateVoucher(r.Context(), input)
	if err != nil {
		h.fail(w, "create voucher", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, voucher)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	voucher, err := h.service.GetVoucher(r.Context(), id)
	if err != nil {
		h.fail(w, "get voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) postVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	voucher, err := h.service.PostVoucher(r.Context(), id)
	if err != nil {
		h.fail(w, "post voucher", err)
		return
	}
	httpx.JSON(w, http.StatusOK, voucher)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.TrialBalance(r.Context())
	if err != nil {
		h.fail(w, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

// overview fetches the trial balance and integrity report concurrently.
func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	var (
		rows   []TrialBalanceRow
		broken []int64
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		rows, err = h.service.TrialBalance(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		broken, err = h.service.CheckIntegrity(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, "ledger overview", err)
		return
	}
	if broken == nil {
		broken = []int64{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"trial_balance":       rows,
		"unbalanced_vouchers": broken,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.Expected(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Classify(shared.ErrValidation, "invalid date "+raw)
	}
	return t, nil
}
