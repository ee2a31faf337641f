package accounting

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// VoucherStatus enumerates journal voucher lifecycle values.
type VoucherStatus string

const (
	VoucherStatusDraft  VoucherStatus = "DRAFT"
	VoucherStatusPosted VoucherStatus = "POSTED"
)

// Control account codes consumed by purchase-order completion.
const (
	DefaultInventoryCode = "112"
	DefaultPayableCode   = "211"
)

// Account models a chart of accounts node.
type Account struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	ParentID  *int64      `json:"parent_id,omitempty"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
}

// JournalVoucher is a double-entry record; its lines must balance.
type JournalVoucher struct {
	ID           int64         `json:"id"`
	Number       string        `json:"number"`
	Date         time.Time     `json:"date"`
	Description  string        `json:"description"`
	Status       VoucherStatus `json:"status"`
	SourceModule string        `json:"source_module,omitempty"`
	SourceRef    string        `json:"source_ref,omitempty"`
	Lines        []VoucherLine `json:"lines"`
	CreatedAt    time.Time     `json:"created_at"`
}

// VoucherLine stores debit or credit amount for an account.
type VoucherLine struct {
	ID          int64           `json:"id"`
	VoucherID   int64           `json:"voucher_id"`
	AccountID   int64           `json:"account_id"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// Totals sums debit and credit across the lines.
func (v JournalVoucher) Totals() (debit, credit decimal.Decimal) {
	for _, line := range v.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Balanced reports whether total debit equals total credit.
func (v JournalVoucher) Balanced() bool {
	debit, credit := v.Totals()
	return debit.Equal(credit)
}

// Validate ensures the voucher meets minimum posting criteria.
func (v JournalVoucher) Validate() error {
	if len(v.Lines) < 2 {
		return ErrTooFewLines
	}
	for idx, line := range v.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("accounting: line %d missing account: %w", idx, ErrInvalidVoucher)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("accounting: line %d negative amount: %w", idx, ErrInvalidVoucher)
		}
		if !shared.FitsScale(line.Debit, shared.AmountPlaces) || !shared.FitsScale(line.Credit, shared.AmountPlaces) {
			return fmt.Errorf("accounting: line %d has more than %d decimal places: %w", idx, shared.AmountPlaces, ErrInvalidVoucher)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("accounting: line %d cannot be both debit and credit: %w", idx, ErrInvalidVoucher)
		}
	}
	if !v.Balanced() {
		return ErrUnbalanced
	}
	return nil
}

// ControlAccounts holds the ledger accounts purchase completion posts to.
type ControlAccounts struct {
	Inventory Account
	Payable   Account
}

// ControlCodes names the codes to resolve.
type ControlCodes struct {
	Inventory string
	Payable   string
}

// WithDefaults fills blank codes with 112 and 211.
func (c ControlCodes) WithDefaults() ControlCodes {
	if strings.TrimSpace(c.Inventory) == "" {
		c.Inventory = DefaultInventoryCode
	}
	if strings.TrimSpace(c.Payable) == "" {
		c.Payable = DefaultPayableCode
	}
	return c
}

// VoucherFilter narrows voucher listings.
type VoucherFilter struct {
	Status VoucherStatus
	From   time.Time
	To     time.Time
}

// TrialBalanceRow aggregates posted amounts for one account.
type TrialBalanceRow struct {
	AccountID int64           `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = shared.Classify(shared.ErrValidation, "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = shared.Classify(shared.ErrValidation, "accounting: journal requires at least two lines")
	// ErrInvalidVoucher indicates a malformed voucher line.
	ErrInvalidVoucher = shared.Classify(shared.ErrValidation, "accounting: invalid voucher line")
	// ErrInvalidAccount indicates malformed account input.
	ErrInvalidAccount = shared.Classify(shared.ErrValidation, "accounting: invalid account")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = shared.Classify(shared.ErrNotFound, "accounting: account not found")
	// ErrDuplicateCode indicates the account code is taken.
	ErrDuplicateCode = shared.Classify(shared.ErrConflict, "accounting: account code already exists")
	// ErrVoucherNotFound indicates missing voucher.
	ErrVoucherNotFound = shared.Classify(shared.ErrNotFound, "accounting: journal voucher not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = shared.Classify(shared.ErrInvalidState, "accounting: invalid status transition")
	// ErrMissingConfiguration indicates a required control account is absent.
	ErrMissingConfiguration = shared.Classify(shared.ErrMissingConfiguration, "accounting: control account missing")
)
