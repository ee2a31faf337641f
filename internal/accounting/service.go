package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// AccountRepository reads and writes the chart of accounts.
type AccountRepository interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	GetAccountByCode(ctx context.Context, code string) (Account, error)
	InsertAccount(ctx context.Context, account Account) (Account, error)
}

// VoucherRepository persists journal vouchers and their lines.
type VoucherRepository interface {
	InsertVoucher(ctx context.Context, voucher JournalVoucher) (JournalVoucher, error)
	GetVoucher(ctx context.Context, id int64) (JournalVoucher, error)
	ListVouchers(ctx context.Context, filter VoucherFilter) ([]JournalVoucher, error)
	UpdateVoucherStatus(ctx context.Context, id int64, status VoucherStatus) error
}

// TxRepository exposes both repositories bound to one transaction.
type TxRepository interface {
	AccountRepository
	VoucherRepository
}

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the chart of accounts and journal vouchers.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateAccountInput describes a new chart of accounts node.
type CreateAccountInput struct {
	Code       string      `json:"code" validate:"required,max=32"`
	Name       string      `json:"name" validate:"required,max=200"`
	Type       AccountType `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentCode string      `json:"parent_code,omitempty"`
}

// VoucherLineInput describes one line of a manual voucher.
type VoucherLineInput struct {
	AccountCode string          `json:"account_code" validate:"required"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// CreateVoucherInput describes a manual journal voucher.
type CreateVoucherInput struct {
	Date        time.Time          `json:"date"`
	Description string             `json:"description" validate:"required"`
	Post        bool               `json:"post"`
	Lines       []VoucherLineInput `json:"lines" validate:"min=2,dive"`
}

// ListAccounts retrieves all chart of accounts entries ordered by code.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx)
		return err
	})
	return accounts, err
}

// CreateAccount adds a node to the chart of accounts.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = insertAccount(ctx, tx, input)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, "account.create", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

func insertAccount(ctx context.Context, tx AccountRepository, input CreateAccountInput) (Account, error) {
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" || !input.Type.Valid() {
		return Account{}, ErrInvalidAccount
	}
	if _, err := tx.GetAccountByCode(ctx, code); err == nil {
		return Account{}, ErrDuplicateCode
	} else if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}
	account := Account{Code: code, Name: name, Type: input.Type, IsActive: true}
	if parent := strings.TrimSpace(input.ParentCode); parent != "" {
		p, err := tx.GetAccountByCode(ctx, parent)
		if err != nil {
			return Account{}, fmt.Errorf("accounting: parent %s: %w", parent, err)
		}
		account.ParentID = &p.ID
	}
	return tx.InsertAccount(ctx, account)
}

// CreateVoucher validates and stores a manual journal voucher, posting it
// immediately when requested.
func (s *Service) CreateVoucher(ctx context.Context, input CreateVoucherInput) (JournalVoucher, error) {
	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	status := VoucherStatusDraft
	if input.Post {
		status = VoucherStatusPosted
	}
	var created JournalVoucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		voucher := JournalVoucher{
			Date:         date,
			Description:  input.Description,
			Status:       status,
			SourceModule: "MANUAL",
		}
		for _, line := range input.Lines {
			account, err := tx.GetAccountByCode(ctx, strings.TrimSpace(line.AccountCode))
			if err != nil {
				return fmt.Errorf("accounting: line account %s: %w", line.AccountCode, err)
			}
			voucher.Lines = append(voucher.Lines, VoucherLine{
				AccountID:   account.ID,
				Description: line.Description,
				Debit:       line.Debit,
				Credit:      line.Credit,
			})
		}
		var err error
		created, err = RecordVoucher(ctx, tx, voucher)
		return err
	})
	if err != nil {
		return JournalVoucher{}, err
	}
	s.recordAudit(ctx, "voucher.create", created.ID, map[string]any{"number": created.Number, "status": created.Status})
	return created, nil
}

// RecordVoucher validates v and inserts it through repo. A number dated by
// v.Date is assigned when v has none.
func RecordVoucher(ctx context.Context, repo VoucherRepository, v JournalVoucher) (JournalVoucher, error) {
	if err := v.Validate(); err != nil {
		return JournalVoucher{}, err
	}
	if v.Status == "" {
		v.Status = VoucherStatusDraft
	}
	if v.Number == "" {
		v.Number = shared.DocumentNumber("JV", v.Date)
	}
	return repo.InsertVoucher(ctx, v)
}

// PostVoucher moves a draft voucher to POSTED.
func (s *Service) PostVoucher(ctx context.Context, id int64) (JournalVoucher, error) {
	var posted JournalVoucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetVoucher(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != VoucherStatusDraft {
			return ErrInvalidStatus
		}
		if err := current.Validate(); err != nil {
			return err
		}
		if err := tx.UpdateVoucherStatus(ctx, id, VoucherStatusPosted); err != nil {
			return err
		}
		current.Status = VoucherStatusPosted
		posted = current
		return nil
	})
	if err != nil {
		return JournalVoucher{}, err
	}
	s.recordAudit(ctx, "voucher.post", id, map[string]any{"number": posted.Number})
	return posted, nil
}

// GetVoucher loads a voucher with its lines.
func (s *Service) GetVoucher(ctx context.Context, id int64) (JournalVoucher, error) {
	var voucher JournalVoucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		voucher, err = tx.GetVoucher(ctx, id)
		return err
	})
	return voucher, err
}

// ListVouchers returns vouchers matching filter, newest first.
func (s *Service) ListVouchers(ctx context.Context, filter VoucherFilter) ([]JournalVoucher, error) {
	var vouchers []JournalVoucher
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		vouchers, err = tx.ListVouchers(ctx, filter)
		return err
	})
	return vouchers, err
}

// TrialBalance sums posted lines per account. Accounts without activity are
// omitted.
func (s *Service) TrialBalance(ctx context.Context) ([]TrialBalanceRow, error) {
	var rows []TrialBalanceRow
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return err
		}
		vouchers, err := tx.ListVouchers(ctx, VoucherFilter{Status: VoucherStatusPosted})
		if err != nil {
			return err
		}
		rows = trialBalance(accounts, vouchers)
		return nil
	})
	return rows, err
}

func trialBalance(accounts []Account, vouchers []JournalVoucher) []TrialBalanceRow {
	byID := make(map[int64]*TrialBalanceRow, len(accounts))
	for _, acc := range accounts {
		byID[acc.ID] = &TrialBalanceRow{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Type: acc.Type}
	}
	for _, v := range vouchers {
		for _, line := range v.Lines {
			row, ok := byID[line.AccountID]
			if !ok {
				row = &TrialBalanceRow{AccountID: line.AccountID}
				byID[line.AccountID] = row
			}
			row.Debit = row.Debit.Add(line.Debit)
			row.Credit = row.Credit.Add(line.Credit)
		}
	}
	out := make([]TrialBalanceRow, 0, len(byID))
	for _, row := range byID {
		if row.Debit.IsZero() && row.Credit.IsZero() {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// CheckIntegrity returns the ids of posted vouchers whose lines do not balance.
func (s *Service) CheckIntegrity(ctx context.Context) ([]int64, error) {
	vouchers, err := s.ListVouchers(ctx, VoucherFilter{Status: VoucherStatusPosted})
	if err != nil {
		return nil, err
	}
	var broken []int64
	for _, v := range vouchers {
		if !v.Balanced() {
			broken = append(broken, v.ID)
		}
	}
	return broken, nil
}

// ResolveControlAccounts locates the inventory and payables accounts by code.
// The error names the first code that is absent.
func ResolveControlAccounts(ctx context.Context, repo AccountRepository, codes ControlCodes) (ControlAccounts, error) {
	codes = codes.WithDefaults()
	accounts, err := repo.ListAccounts(ctx)
	if err != nil {
		return ControlAccounts{}, err
	}
	var out ControlAccounts
	var haveInv, havePay bool
	for _, acc := range accounts {
		switch acc.Code {
		case codes.Inventory:
			out.Inventory, haveInv = acc, true
		case codes.Payable:
			out.Payable, havePay = acc, true
		}
	}
	if !haveInv {
		return ControlAccounts{}, fmt.Errorf("account %s: %w", codes.Inventory, ErrMissingConfiguration)
	}
	if !havePay {
		return ControlAccounts{}, fmt.Errorf("account %s: %w", codes.Payable, ErrMissingConfiguration)
	}
	return out, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "accounting",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}
