package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// ItemRepository reads and writes stock items.
type ItemRepository interface {
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	GetItemByName(ctx context.Context, name string) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id int64) error
}

// MovementRepository appends and lists stock movements.
type MovementRepository interface {
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
	ListMovements(ctx context.Context, itemID int64) ([]Movement, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	ItemRepository
	MovementRepository
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	defaults Defaults
	allowNeg bool
	now      func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Defaults           Defaults
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		defaults: cfg.Defaults.WithFallback(),
		allowNeg: cfg.AllowNegativeStock,
		now:      time.Now,
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Defaults returns the category and unit applied to implicit items.
func (s *Service) Defaults() Defaults {
	return s.defaults
}

// ListItems returns items matching filter ordered by name.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var items []Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		items, err = tx.ListItems(ctx, filter)
		return err
	})
	return items, err
}

// GetItem loads one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItem(ctx, id)
		return err
	})
	return item, err
}

// CreateItem registers an item with an optional opening balance.
func (s *Service) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	name := MatchKey(input.Name)
	if name == "" {
		return Item{}, ErrInvalidItem
	}
	if input.Qty.IsNegative() || !shared.FitsScale(input.Qty, shared.QtyPlaces) {
		return Item{}, ErrInvalidQuantity
	}
	if input.AvgCost.IsNegative() || !shared.FitsScale(input.AvgCost, shared.CostPlaces) {
		return Item{}, ErrInvalidUnitCost
	}
	now := s.now().UTC()
	item := Item{
		Name:      name,
		Category:  strings.TrimSpace(input.Category),
		Unit:      strings.TrimSpace(input.Unit),
		Qty:       input.Qty,
		AvgCost:   input.AvgCost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if item.Category == "" {
		item.Category = s.defaults.Category
	}
	if item.Unit == "" {
		item.Unit = s.defaults.Unit
	}
	if !item.Qty.IsPositive() {
		item.AvgCost = decimal.Zero
	}
	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, found, err := FindByName(ctx, tx, name); err != nil {
			return err
		} else if found {
			return ErrDuplicateName
		}
		var err error
		created, err = tx.InsertItem(ctx, item)
		if err != nil {
			return err
		}
		if created.Qty.IsPositive() {
			_, err = tx.InsertMovement(ctx, Movement{
				ItemID:      created.ID,
				Type:        MovementTypeIn,
				Qty:         created.Qty,
				UnitCost:    created.AvgCost,
				BalanceQty:  created.Qty,
				BalanceCost: created.AvgCost,
				RefModule:   "OPENING",
				PostedAt:    now,
			})
		}
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "item.create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdateItem changes name, category and unit. Quantity and cost only move
// through receipts and issues.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	name := MatchKey(input.Name)
	if name == "" {
		return Item{}, ErrInvalidItem
	}
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if name != current.Name {
			if other, found, err := FindByName(ctx, tx, name); err != nil {
				return err
			} else if found && other.ID != id {
				return ErrDuplicateName
			}
		}
		current.Name = name
		if c := strings.TrimSpace(input.Category); c != "" {
			current.Category = c
		}
		if u := strings.TrimSpace(input.Unit); u != "" {
			current.Unit = u
		}
		current.UpdatedAt = s.now().UTC()
		if err := tx.UpdateItem(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, "item.update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// DeleteItem removes an item that has never moved. Items with movements
// are refused with ErrItemHasMovements.
func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetItem(ctx, id); err != nil {
			return err
		}
		movements, err := tx.ListMovements(ctx, id)
		if err != nil {
			return err
		}
		if len(movements) > 0 {
			return ErrItemHasMovements
		}
		return tx.DeleteItem(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "item.delete", id, nil)
	return nil
}

// ListMovements returns the stock card of an item, oldest first.
func (s *Service) ListMovements(ctx context.Context, itemID int64) ([]Movement, error) {
	var movements []Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetItem(ctx, itemID); err != nil {
			return err
		}
		var err error
		movements, err = tx.ListMovements(ctx, itemID)
		return err
	})
	return movements, err
}

// Receive posts a standalone receipt, matching or creating the item by name.
func (s *Service) Receive(ctx context.Context, input ReceiptInput) (Item, Movement, error) {
	if input.RefModule == "" {
		input.RefModule = "RECEIPT"
	}
	if input.RefID == "" {
		input.RefID = uuid.NewString()
	} else if _, err := uuid.Parse(input.RefID); err != nil {
		return Item{}, Movement{}, shared.Classify(shared.ErrValidation, "inventory: invalid ref id")
	}
	var (
		item     Item
		movement Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, movement, err = ReceiveInto(ctx, tx, input, s.defaults, s.now().UTC())
		return err
	})
	if err != nil {
		return Item{}, Movement{}, err
	}
	s.recordAudit(ctx, "inventory:IN", item.ID, map[string]any{
		"qty":       input.Qty.String(),
		"unit_cost": input.UnitCost.String(),
		"ref":       input.RefID,
	})
	return item, movement, nil
}

// Issue posts stock leaving the store at the current average cost.
func (s *Service) Issue(ctx context.Context, input IssueInput) (Item, Movement, error) {
	if !input.Qty.IsPositive() || !shared.FitsScale(input.Qty, shared.QtyPlaces) {
		return Item{}, Movement{}, ErrInvalidQuantity
	}
	var (
		item     Item
		movement Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItem(ctx, input.ItemID)
		if err != nil {
			return err
		}
		newQty := item.Qty.Sub(input.Qty)
		if newQty.IsNegative() && !s.allowNeg {
			return ErrNegativeStock
		}
		unitCost := item.AvgCost
		item.Qty = newQty
		if !newQty.IsPositive() {
			item.AvgCost = decimal.Zero
		}
		item.UpdatedAt = s.now().UTC()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		movement, err = tx.InsertMovement(ctx, Movement{
			ItemID:      item.ID,
			Type:        MovementTypeOut,
			Qty:         input.Qty.Neg(),
			UnitCost:    unitCost,
			BalanceQty:  item.Qty,
			BalanceCost: item.AvgCost,
			RefModule:   "ISSUE",
			RefID:       uuid.NewString(),
			Note:        input.Note,
			PostedAt:    item.UpdatedAt,
		})
		return err
	})
	if err != nil {
		return Item{}, Movement{}, err
	}
	s.recordAudit(ctx, "inventory:OUT", item.ID, map[string]any{"qty": input.Qty.String(), "note": input.Note})
	return item, movement, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "inventory_item",
		EntityID: fmt.Sprintf("%d", itemID),
		Meta:     meta,
		At:       s.now(),
	})
}
