package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps callback in repeatable-read transaction. Orders, ledger and
// stock repositories all share the same pgx.Tx.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Stores) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, Stores{
			Orders:    NewTxRepository(tx),
			Accounts:  accounting.NewTxRepository(tx),
			Vouchers:  accounting.NewTxRepository(tx),
			Inventory: inventory.NewTxRepository(tx),
		})
	})
}

type txRepo struct {
	db db.DBTX
}

// NewTxRepository binds purchase order queries to conn.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{db: conn}
}

const poColumns = `id, number, supplier_name, project_name, date, status, note, journal_voucher_id, completed_at, created_at, updated_at`

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierName, &po.ProjectName, &po.Date, &po.Status, &po.Note,
		&po.JournalVoucherID, &po.CompletedAt, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (r *txRepo) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO purchase_orders (number, supplier_name, project_name, date, status, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		po.Number, po.SupplierName, po.ProjectName, po.Date, po.Status, po.Note, po.CreatedAt, po.UpdatedAt,
	).Scan(&po.ID)
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("procurement: insert po: %w", err)
	}
	if err := r.insertLines(ctx, po.ID, po.Lines); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepo) insertLines(ctx context.Context, orderID int64, lines []POLine) error {
	for i := range lines {
		lines[i].OrderID = orderID
		err := r.db.QueryRow(ctx,
			`INSERT INTO purchase_order_lines (order_id, description, qty, unit_price) VALUES ($1, $2, $3, $4) RETURNING id`,
			orderID, lines[i].Description, lines[i].Qty, lines[i].UnitPrice,
		).Scan(&lines[i].ID)
		if err != nil {
			return fmt.Errorf("procurement: insert po line %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *txRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.getPO(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1`, id)
}

func (r *txRepo) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return r.getPO(ctx, `SELECT `+poColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepo) getPO(ctx context.Context, query string, id int64) (PurchaseOrder, error) {
	po, err := scanPO(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, ErrNotFound
		}
		return PurchaseOrder{}, err
	}
	lines, err := r.lines(ctx, []int64{id})
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines = lines[id]
	return po, nil
}

func (r *txRepo) lines(ctx context.Context, ids []int64) (map[int64][]POLine, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, description, qty, unit_price FROM purchase_order_lines WHERE order_id = ANY($1) ORDER BY order_id, id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]POLine, len(ids))
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Description, &l.Qty, &l.UnitPrice); err != nil {
			return nil, err
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (r *txRepo) UpdatePO(ctx context.Context, po PurchaseOrder) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE purchase_orders SET number=$1, supplier_name=$2, project_name=$3, date=$4, note=$5, updated_at=$6 WHERE id=$7`,
		po.Number, po.SupplierName, po.ProjectName, po.Date, po.Note, po.UpdatedAt, po.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, po.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, po.ID, po.Lines)
}

func (r *txRepo) UpdatePOStatus(ctx context.Context, id int64, status POStatus, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=$2 WHERE id=$3`, status, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) MarkPOCompleted(ctx context.Context, id int64, voucherID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE purchase_orders SET status=$1, journal_voucher_id=$2, completed_at=$3, updated_at=$3 WHERE id=$4 AND status=$5`,
		POStatusCompleted, voucherID, at, id, POStatusApproved,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *txRepo) ListPOs(ctx context.Context, filter ListFilters) ([]PurchaseOrder, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Supplier != "" {
		args = append(args, filter.Supplier)
		where = append(where, fmt.Sprintf("supplier_name = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("(number ILIKE $%[1]d OR supplier_name ILIKE $%[1]d OR project_name ILIKE $%[1]d)", len(args)))
	}
	query := `SELECT ` + poColumns + ` FROM purchase_orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var (
		pos []PurchaseOrder
		ids []int64
	)
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		pos = append(pos, po)
		ids = append(ids, po.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return pos, nil
	}
	lines, err := r.lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range pos {
		pos[i].Lines = lines[pos[i].ID]
	}
	return pos, nil
}
