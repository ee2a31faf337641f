package procurement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/shared"
)

// TxRepository exposes purchase order persistence inside a unit of work.
type TxRepository interface {
	InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	UpdatePO(ctx context.Context, po PurchaseOrder) error
	UpdatePOStatus(ctx context.Context, id int64, status POStatus, at time.Time) error
	MarkPOCompleted(ctx context.Context, id int64, voucherID int64, at time.Time) error
	ListPOs(ctx context.Context, filter ListFilters) ([]PurchaseOrder, error)
}

// Stores binds every repository the procurement flows touch to one unit of
// work, so completion commits or rolls back as a whole.
type Stores struct {
	Orders    TxRepository
	Accounts  accounting.AccountRepository
	Vouchers  accounting.VoucherRepository
	Inventory inventory.TxRepository
}

// RepositoryPort describes the unit of work used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Stores) error) error
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Locker guards completion across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Config carries completion settings.
type Config struct {
	Codes    accounting.ControlCodes
	Defaults inventory.Defaults
	LockTTL  time.Duration
}

// Service orchestrates procurement flows.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	locker   Locker
	observer CompletionObserver
	codes    accounting.ControlCodes
	defaults inventory.Defaults
	lockTTL  time.Duration
	now      func() time.Time
}

// NewService constructs procurement service.
func NewService(repo RepositoryPort, audit AuditPort, cfg Config) *Service {
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		codes:    cfg.Codes.WithDefaults(),
		defaults: cfg.Defaults.WithFallback(),
		lockTTL:  ttl,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithLocker enables the cross-process completion lock.
func (s *Service) WithLocker(locker Locker) {
	s.locker = locker
}

// WithObserver registers a completion outcome observer.
func (s *Service) WithObserver(observer CompletionObserver) {
	s.observer = observer
}

// POLineInput describes one ordered line.
type POLineInput struct {
	Description string          `json:"description" validate:"required,max=200"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreatePOInput defines data to create or replace a PO.
type CreatePOInput struct {
	Number       string        `json:"number,omitempty" validate:"max=64"`
	SupplierName string        `json:"supplier_name" validate:"required,max=200"`
	ProjectName  string        `json:"project_name,omitempty" validate:"max=200"`
	Date         time.Time     `json:"date"`
	Note         string        `json:"note,omitempty"`
	Lines        []POLineInput `json:"lines" validate:"min=1,dive"`
}

// Validate checks the business rules struct tags cannot express.
func (in CreatePOInput) Validate() error {
	if strings.TrimSpace(in.SupplierName) == "" {
		return fmt.Errorf("supplier required: %w", ErrValidation)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("minimal 1 line: %w", ErrValidation)
	}
	for i, line := range in.Lines {
		if strings.TrimSpace(line.Description) == "" {
			return fmt.Errorf("line %d description required: %w", i+1, ErrValidation)
		}
		if !line.Qty.IsPositive() {
			return fmt.Errorf("line %d qty must be positive: %w", i+1, ErrValidation)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d unit price must be >= 0: %w", i+1, ErrValidation)
		}
		if !shared.FitsScale(line.Qty, shared.QtyPlaces) {
			return fmt.Errorf("line %d qty has more than %d decimal places: %w", i+1, shared.QtyPlaces, ErrValidation)
		}
		if !shared.FitsScale(line.UnitPrice, shared.PricePlaces) {
			return fmt.Errorf("line %d unit price has more than %d decimal places: %w", i+1, shared.PricePlaces, ErrValidation)
		}
	}
	return nil
}

func (in CreatePOInput) lines() []POLine {
	lines := make([]POLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, POLine{
			Description: strings.TrimSpace(l.Description),
			Qty:         l.Qty,
			UnitPrice:   l.UnitPrice,
		})
	}
	return lines
}

// CreatePurchaseOrder persists a DRAFT order with its lines.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if err := input.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now()
	if input.Number == "" {
		input.Number = shared.DocumentNumber("PO", now)
	}
	date := input.Date
	if date.IsZero() {
		date = now
	}
	po := PurchaseOrder{
		Number:       input.Number,
		SupplierName: strings.TrimSpace(input.SupplierName),
		ProjectName:  strings.TrimSpace(input.ProjectName),
		Date:         date,
		Status:       POStatusDraft,
		Note:         input.Note,
		Lines:        input.lines(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		created, err = st.Orders.InsertPO(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", created.ID, map[string]any{"number": created.Number, "total": created.Total().String()})
	return created, nil
}

// UpdatePurchaseOrder replaces header and lines of a DRAFT order.
func (s *Service) UpdatePurchaseOrder(ctx context.Context, id int64, input CreatePOInput) (PurchaseOrder, error) {
	if err := input.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		po, err := st.Orders.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if po.Status != POStatusDraft {
			return fmt.Errorf("edit %s order: %w", po.Status, ErrInvalidState)
		}
		if input.Number != "" {
			po.Number = input.Number
		}
		po.SupplierName = strings.TrimSpace(input.SupplierName)
		po.ProjectName = strings.TrimSpace(input.ProjectName)
		if !input.Date.IsZero() {
			po.Date = input.Date
		}
		po.Note = input.Note
		po.Lines = input.lines()
		po.UpdatedAt = s.now()
		if err := st.Orders.UpdatePO(ctx, po); err != nil {
			return err
		}
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_UPDATE", id, map[string]any{"number": updated.Number})
	return updated, nil
}

// SubmitPurchaseOrder requests approval.
func (s *Service) SubmitPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusSubmitted, "PO_SUBMIT")
}

// ApprovePurchaseOrder marks PO as approved.
func (s *Service) ApprovePurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusApproved, "PO_APPROVE")
}

// CancelPurchaseOrder cancels an order that has not been completed.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.transition(ctx, id, POStatusCancelled, "PO_CANCEL")
}

func (s *Service) transition(ctx context.Context, id int64, next POStatus, action string) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		po, err = st.Orders.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !po.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", po.Status, next, ErrInvalidState)
		}
		now := s.now()
		if err := st.Orders.UpdatePOStatus(ctx, id, next, now); err != nil {
			return err
		}
		po.Status = next
		po.UpdatedAt = now
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, action, id, map[string]any{"number": po.Number, "status": po.Status})
	return po, nil
}

// GetPurchaseOrder returns an order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		po, err = st.Orders.GetPO(ctx, id)
		return err
	})
	return po, err
}

// ListPurchaseOrders returns orders matching filters, newest first.
func (s *Service) ListPurchaseOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	var pos []PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		var err error
		pos, err = st.Orders.ListPOs(ctx, filters)
		return err
	})
	return pos, err
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "procurement",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
