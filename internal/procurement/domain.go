package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// POStatus enumerates purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "DRAFT"
	POStatusSubmitted POStatus = "SUBMITTED"
	POStatusApproved  POStatus = "APPROVED"
	POStatusCompleted POStatus = "COMPLETED"
	POStatusCancelled POStatus = "CANCELLED"
)

var transitions = map[POStatus][]POStatus{
	POStatusDraft:     {POStatusSubmitted, POStatusCancelled},
	POStatusSubmitted: {POStatusApproved, POStatusCancelled},
	POStatusApproved:  {POStatusCompleted, POStatusCancelled},
}

// Valid reports whether s is a known status.
func (s POStatus) Valid() bool {
	switch s {
	case POStatusDraft, POStatusSubmitted, POStatusApproved, POStatusCompleted, POStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows s -> next.
// COMPLETED and CANCELLED are terminal.
func (s POStatus) CanTransitionTo(next POStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID               int64      `json:"id"`
	Number           string     `json:"number"`
	SupplierName     string     `json:"supplier_name"`
	ProjectName      string     `json:"project_name,omitempty"`
	Date             time.Time  `json:"date"`
	Status           POStatus   `json:"status"`
	Note             string     `json:"note,omitempty"`
	Lines            []POLine   `json:"lines"`
	JournalVoucherID *int64     `json:"journal_voucher_id,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Total sums qty times unit price over all lines.
func (po PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range po.Lines {
		total = total.Add(line.Amount())
	}
	return total
}

// POLine represents PO lines. Description doubles as the inventory match key.
type POLine struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Amount is qty times unit price.
func (l POLine) Amount() decimal.Decimal {
	return l.Qty.Mul(l.UnitPrice)
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status   POStatus
	Supplier string
	Search   string
}

var (
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = shared.Classify(shared.ErrInvalidState, "procurement: invalid state transition")
	// ErrNotFound indicates record missing.
	ErrNotFound = shared.Classify(shared.ErrNotFound, "procurement: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = shared.Classify(shared.ErrValidation, "procurement: invalid input")
	// ErrMissingConfiguration indicates required ledger accounts are absent.
	ErrMissingConfiguration = shared.Classify(shared.ErrMissingConfiguration, "procurement: missing configuration")
	// ErrBusy indicates another caller is completing the same order.
	ErrBusy = shared.Classify(shared.ErrConflict, "procurement: order is being completed")
)
