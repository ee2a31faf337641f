package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebooks/sitebooks/internal/platform/db"
)

// Repository persists accounting entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	db db.DBTX
}

// NewTxRepository binds the accounting queries to conn, usually a pgx.Tx owned
// by a caller that spans several modules.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepository{db: conn}
}

const accountColumns = `id, code, name, type, parent_id, is_active, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.ParentID, &a.IsActive, &a.CreatedAt)
	return a, err
}

func (r *txRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *txRepository) GetAccountByCode(ctx context.Context, code string) (Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return a, err
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO accounts (code, name, type, parent_id, is_active) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		a.Code, a.Name, a.Type, a.ParentID, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateCode
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) InsertVoucher(ctx context.Context, v JournalVoucher) (JournalVoucher, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO journal_vouchers (number, date, description, status, source_module, source_ref) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		v.Number, v.Date, v.Description, v.Status, v.SourceModule, v.SourceRef,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return JournalVoucher{}, fmt.Errorf("accounting: insert voucher: %w", err)
	}
	for i := range v.Lines {
		line := &v.Lines[i]
		line.VoucherID = v.ID
		err := r.db.QueryRow(ctx,
			`INSERT INTO journal_voucher_lines (voucher_id, account_id, description, debit, credit) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.VoucherID, line.AccountID, line.Description, line.Debit, line.Credit,
		).Scan(&line.ID)
		if err != nil {
			return JournalVoucher{}, fmt.Errorf("accounting: insert voucher line %d: %w", i, err)
		}
	}
	return v, nil
}

const voucherColumns = `id, number, date, description, status, source_module, source_ref, created_at`

func scanVoucher(row pgx.Row) (JournalVoucher, error) {
	var v JournalVoucher
	err := row.Scan(&v.ID, &v.Number, &v.Date, &v.Description, &v.Status, &v.SourceModule, &v.SourceRef, &v.CreatedAt)
	return v, err
}

func (r *txRepository) GetVoucher(ctx context.Context, id int64) (JournalVoucher, error) {
	v, err := scanVoucher(r.db.QueryRow(ctx, `SELECT `+voucherColumns+` FROM journal_vouchers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalVoucher{}, ErrVoucherNotFound
		}
		return JournalVoucher{}, err
	}
	lines, err := r.voucherLines(ctx, []int64{id})
	if err != nil {
		return JournalVoucher{}, err
	}
	v.Lines = lines[id]
	return v, nil
}

func (r *txRepository) ListVouchers(ctx context.Context, filter VoucherFilter) ([]JournalVoucher, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	query := `SELECT ` + voucherColumns + ` FROM journal_vouchers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var (
		vouchers []JournalVoucher
		ids      []int64
	)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		vouchers = append(vouchers, v)
		ids = append(ids, v.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return vouchers, nil
	}
	lines, err := r.voucherLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range vouchers {
		vouchers[i].Lines = lines[vouchers[i].ID]
	}
	return vouchers, nil
}

func (r *txRepository) voucherLines(ctx context.Context, ids []int64) (map[int64][]VoucherLine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, voucher_id, account_id, description, debit, credit FROM journal_voucher_lines WHERE voucher_id = ANY($1) ORDER BY voucher_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]VoucherLine, len(ids))
	for rows.Next() {
		var l VoucherLine
		if err := rows.Scan(&l.ID, &l.VoucherID, &l.AccountID, &l.Description, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		out[l.VoucherID] = append(out[l.VoucherID], l)
	}
	return out, rows.Err()
}

func (r *txRepository) UpdateVoucherStatus(ctx context.Context, id int64, status VoucherStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE journal_vouchers SET status=$1 WHERE id=$2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}
