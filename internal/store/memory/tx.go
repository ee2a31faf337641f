package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/procurement"
)

// tx serves every repository port over one working copy.
type tx struct {
	d *dataset
}

// accounting

func (t *tx) ListAccounts(context.Context) ([]accounting.Account, error) {
	out := append([]accounting.Account(nil), t.d.Accounts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) GetAccount(_ context.Context, id int64) (accounting.Account, error) {
	for _, a := range t.d.Accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (t *tx) GetAccountByCode(_ context.Context, code string) (accounting.Account, error) {
	for _, a := range t.d.Accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (t *tx) InsertAccount(_ context.Context, a accounting.Account) (accounting.Account, error) {
	for _, existing := range t.d.Accounts {
		if existing.Code == a.Code {
			return accounting.Account{}, accounting.ErrDuplicateCode
		}
	}
	a.ID = t.d.next()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	t.d.Accounts = append(t.d.Accounts, a)
	return a, nil
}

func (t *tx) InsertVoucher(_ context.Context, v accounting.JournalVoucher) (accounting.JournalVoucher, error) {
	v.ID = t.d.next()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.Lines = append([]accounting.VoucherLine(nil), v.Lines...)
	for i := range v.Lines {
		v.Lines[i].ID = t.d.next()
		v.Lines[i].VoucherID = v.ID
	}
	t.d.Vouchers = append(t.d.Vouchers, v)
	return v, nil
}

func (t *tx) GetVoucher(_ context.Context, id int64) (accounting.JournalVoucher, error) {
	for _, v := range t.d.Vouchers {
		if v.ID == id {
			v.Lines = append([]accounting.VoucherLine(nil), v.Lines...)
			return v, nil
		}
	}
	return accounting.JournalVoucher{}, accounting.ErrVoucherNotFound
}

func (t *tx) ListVouchers(_ context.Context, filter accounting.VoucherFilter) ([]accounting.JournalVoucher, error) {
	var out []accounting.JournalVoucher
	for _, v := range t.d.Vouchers {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && v.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && v.Date.After(filter.To) {
			continue
		}
		v.Lines = append([]accounting.VoucherLine(nil), v.Lines...)
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (t *tx) UpdateVoucherStatus(_ context.Context, id int64, status accounting.VoucherStatus) error {
	for i := range t.d.Vouchers {
		if t.d.Vouchers[i].ID == id {
			t.d.Vouchers[i].Status = status
			t.d.dirty = true
			return nil
		}
	}
	return accounting.ErrVoucherNotFound
}

// inventory

func (t *tx) ListItems(_ context.Context, filter inventory.ItemFilter) ([]inventory.Item, error) {
	search := strings.ToLower(filter.Search)
	var out []inventory.Item
	for _, it := range t.d.Items {
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *tx) itemIndex(id int64) int {
	for i, it := range t.d.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (t *tx) GetItem(_ context.Context, id int64) (inventory.Item, error) {
	if i := t.itemIndex(id); i >= 0 {
		return t.d.Items[i], nil
	}
	return inventory.Item{}, inventory.ErrItemNotFound
}

func (t *tx) GetItemByName(_ context.Context, name string) (inventory.Item, error) {
	for _, it := range t.d.Items {
		if it.Name == name {
			return it, nil
		}
	}
	return inventory.Item{}, inventory.ErrItemNotFound
}

func (t *tx) InsertItem(_ context.Context, it inventory.Item) (inventory.Item, error) {
	for _, existing := range t.d.Items {
		if existing.Name == it.Name {
			return inventory.Item{}, inventory.ErrDuplicateName
		}
	}
	it.ID = t.d.next()
	t.d.Items = append(t.d.Items, it)
	return it, nil
}

func (t *tx) UpdateItem(_ context.Context, it inventory.Item) error {
	i := t.itemIndex(it.ID)
	if i < 0 {
		return inventory.ErrItemNotFound
	}
	for _, existing := range t.d.Items {
		if existing.ID != it.ID && existing.Name == it.Name {
			return inventory.ErrDuplicateName
		}
	}
	t.d.Items[i] = it
	t.d.dirty = true
	return nil
}

func (t *tx) DeleteItem(_ context.Context, id int64) error {
	i := t.itemIndex(id)
	if i < 0 {
		return inventory.ErrItemNotFound
	}
	for _, m := range t.d.Movements {
		if m.ItemID == id {
			return inventory.ErrItemHasMovements
		}
	}
	t.d.Items = append(t.d.Items[:i], t.d.Items[i+1:]...)
	t.d.dirty = true
	return nil
}

func (t *tx) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	m.ID = t.d.next()
	t.d.Movements = append(t.d.Movements, m)
	return m, nil
}

func (t *tx) ListMovements(_ context.Context, itemID int64) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, m := range t.d.Movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

// procurement

func (t *tx) orderIndex(id int64) int {
	for i, po := range t.d.Orders {
		if po.ID == id {
			return i
		}
	}
	return -1
}

func (t *tx) InsertPO(_ context.Context, po procurement.PurchaseOrder) (procurement.PurchaseOrder, error) {
	po.ID = t.d.next()
	po.Lines = t.assignLines(po.ID, po.Lines)
	t.d.Orders = append(t.d.Orders, po)
	return po, nil
}

func (t *tx) assignLines(orderID int64, lines []procurement.POLine) []procurement.POLine {
	out := append([]procurement.POLine(nil), lines...)
	for i := range out {
		out[i].ID = t.d.next()
		out[i].OrderID = orderID
	}
	return out
}

func (t *tx) GetPO(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	i := t.orderIndex(id)
	if i < 0 {
		return procurement.PurchaseOrder{}, procurement.ErrNotFound
	}
	po := t.d.Orders[i]
	po.Lines = append([]procurement.POLine(nil), po.Lines...)
	return po, nil
}

// GetPOForUpdate needs no row lock; the store lock is held for the whole unit
// of work.
func (t *tx) GetPOForUpdate(ctx context.Context, id int64) (procurement.PurchaseOrder, error) {
	return t.GetPO(ctx, id)
}

func (t *tx) UpdatePO(_ context.Context, po procurement.PurchaseOrder) error {
	i := t.orderIndex(po.ID)
	if i < 0 {
		return procurement.ErrNotFound
	}
	po.Lines = t.assignLines(po.ID, po.Lines)
	t.d.Orders[i] = po
	t.d.dirty = true
	return nil
}

func (t *tx) UpdatePOStatus(_ context.Context, id int64, status procurement.POStatus, at time.Time) error {
	i := t.orderIndex(id)
	if i < 0 {
		return procurement.ErrNotFound
	}
	t.d.Orders[i].Status = status
	t.d.Orders[i].UpdatedAt = at
	t.d.dirty = true
	return nil
}

func (t *tx) MarkPOCompleted(_ context.Context, id int64, voucherID int64, at time.Time) error {
	i := t.orderIndex(id)
	if i < 0 {
		return procurement.ErrNotFound
	}
	po := &t.d.Orders[i]
	if po.Status != procurement.POStatusApproved {
		return procurement.ErrInvalidState
	}
	po.Status = procurement.POStatusCompleted
	po.JournalVoucherID = &voucherID
	po.CompletedAt = &at
	po.UpdatedAt = at
	t.d.dirty = true
	return nil
}

func (t *tx) ListPOs(_ context.Context, filter procurement.ListFilters) ([]procurement.PurchaseOrder, error) {
	search := strings.ToLower(filter.Search)
	var out []procurement.PurchaseOrder
	for _, po := range t.d.Orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		if filter.Supplier != "" && po.SupplierName != filter.Supplier {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(po.Number), search) &&
			!strings.Contains(strings.ToLower(po.SupplierName), search) &&
			!strings.Contains(strings.ToLower(po.ProjectName), search) {
			continue
		}
		po.Lines = append([]procurement.POLine(nil), po.Lines...)
		out = append(out, po)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

var (
	_ accounting.TxRepository  = (*tx)(nil)
	_ inventory.TxRepository   = (*tx)(nil)
	_ procurement.TxRepository = (*tx)(nil)
)
