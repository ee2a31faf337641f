package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementTypeIn represents an inbound receipt.
	MovementTypeIn MovementType = "IN"
	// MovementTypeOut represents stock issued to a site.
	MovementTypeOut MovementType = "OUT"
)

// Item is a stocked material with a quantity-weighted average cost.
type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Qty       decimal.Decimal `json:"qty"`
	Unit      string          `json:"unit"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Value is qty times average cost.
func (i Item) Value() decimal.Decimal {
	return i.Qty.Mul(i.AvgCost)
}

// Movement records one change to an item's balance.
type Movement struct {
	ID          int64           `json:"id"`
	ItemID      int64           `json:"item_id"`
	Type        MovementType    `json:"type"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	BalanceQty  decimal.Decimal `json:"balance_qty"`
	BalanceCost decimal.Decimal `json:"balance_cost"`
	RefModule   string          `json:"ref_module,omitempty"`
	RefID       string          `json:"ref_id,omitempty"`
	Note        string          `json:"note,omitempty"`
	PostedAt    time.Time       `json:"posted_at"`
}

// Defaults are applied to items created implicitly by a receipt.
type Defaults struct {
	Category string
	Unit     string
}

// Default category and unit for implicitly created items.
const (
	DefaultCategory = "General Materials"
	DefaultUnit     = "unit"
)

// WithFallback fills blank fields with the package defaults.
func (d Defaults) WithFallback() Defaults {
	if d.Category == "" {
		d.Category = DefaultCategory
	}
	if d.Unit == "" {
		d.Unit = DefaultUnit
	}
	return d
}

// ReceiptInput describes an inbound receipt matched to an item by name.
type ReceiptInput struct {
	Name      string          `json:"name" validate:"required"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	RefModule string          `json:"ref_module,omitempty"`
	RefID     string          `json:"ref_id,omitempty"`
	Note      string          `json:"note,omitempty"`
}

// IssueInput describes stock leaving the store for a site.
type IssueInput struct {
	ItemID int64           `json:"item_id" validate:"required"`
	Qty    decimal.Decimal `json:"qty"`
	Note   string          `json:"note,omitempty"`
}

// ItemInput carries editable item fields.
type ItemInput struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"max=100"`
	Unit     string          `json:"unit" validate:"max=32"`
	Qty      decimal.Decimal `json:"qty"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Category string
	Search   string
}

var (
	// ErrItemNotFound indicates a missing item.
	ErrItemNotFound = shared.Classify(shared.ErrNotFound, "inventory: item not found")
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = shared.Classify(shared.ErrInvalidState, "inventory: negative stock not allowed")
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = shared.Classify(shared.ErrValidation, "inventory: quantity must be positive with at most 4 decimal places")
	// ErrInvalidUnitCost indicates invalid cost value.
	ErrInvalidUnitCost = shared.Classify(shared.ErrValidation, "inventory: unit cost must be >= 0 with at most 6 decimal places")
	// ErrInvalidItem indicates malformed item input.
	ErrInvalidItem = shared.Classify(shared.ErrValidation, "inventory: item name required")
	// ErrItemHasMovements blocks deleting an item with a stock history.
	ErrItemHasMovements = shared.Classify(shared.ErrInvalidState, "inventory: item has stock movements")
	// ErrDuplicateName indicates another item already uses the name.
	ErrDuplicateName = shared.Classify(shared.ErrConflict, "inventory: item name already exists")
)
