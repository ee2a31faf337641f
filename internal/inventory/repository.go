package inventory

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

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepo struct {
	db db.DBTX
}

// NewTxRepository binds inventory queries to conn.
func NewTxRepository(conn db.DBTX) TxRepository {
	return &txRepo{db: conn}
}

const itemColumns = `id, name, category, qty, unit, avg_cost, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Qty, &it.Unit, &it.AvgCost, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *txRepo) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	query := `SELECT ` + itemColumns + ` FROM inventory_items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *txRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

func (r *txRepo) GetItemByName(ctx context.Context, name string) (Item, error) {
	it, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE name=$1 FOR UPDATE`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	return it, err
}

func (r *txRepo) InsertItem(ctx context.Context, it Item) (Item, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO inventory_items (name, category, qty, unit, avg_cost, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		it.Name, it.Category, it.Qty, it.Unit, it.AvgCost, it.CreatedAt, it.UpdatedAt,
	).Scan(&it.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Item{}, ErrDuplicateName
		}
		return Item{}, err
	}
	return it, nil
}

func (r *txRepo) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE inventory_items SET name=$1, category=$2, qty=$3, unit=$4, avg_cost=$5, updated_at=$6 WHERE id=$7`,
		it.Name, it.Category, it.Qty, it.Unit, it.AvgCost, it.UpdatedAt, it.ID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateName
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrItemHasMovements
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.db.QueryRow(ctx,
		`INSERT INTO inventory_movements (item_id, type, qty, unit_cost, balance_qty, balance_cost, ref_module, ref_id, note, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		m.ItemID, m.Type, m.Qty, m.UnitCost, m.BalanceQty, m.BalanceCost, m.RefModule, m.RefID, m.Note, m.PostedAt,
	).Scan(&m.ID)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

func (r *txRepo) ListMovements(ctx context.Context, itemID int64) ([]Movement, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, item_id, type, qty, unit_cost, balance_qty, balance_cost, ref_module, ref_id, note, posted_at
		 FROM inventory_movements WHERE item_id=$1 ORDER BY posted_at, id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Type, &m.Qty, &m.UnitCost, &m.BalanceQty, &m.BalanceCost, &m.RefModule, &m.RefID, &m.Note, &m.PostedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
