package procurement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
)

// fakeStore implements every repository port over plain slices and restores
// a snapshot when the unit of work fails.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[int64]PurchaseOrder
	accounts  []accounting.Account
	vouchers  []accounting.JournalVoucher
	items     map[int64]inventory.Item
	movements []inventory.Movement
	seq       int64

	failMovement error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[int64]PurchaseOrder{}, items: map[int64]inventory.Item{}}
}

type fakeSnapshot struct {
	orders    map[int64]PurchaseOrder
	accounts  []accounting.Account
	vouchers  []accounting.JournalVoucher
	items     map[int64]inventory.Item
	movements []inventory.Movement
}

func (f *fakeStore) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		orders:    make(map[int64]PurchaseOrder, len(f.orders)),
		accounts:  append([]accounting.Account(nil), f.accounts...),
		vouchers:  append([]accounting.JournalVoucher(nil), f.vouchers...),
		items:     make(map[int64]inventory.Item, len(f.items)),
		movements: append([]inventory.Movement(nil), f.movements...),
	}
	for k, v := range f.orders {
		v.Lines = append([]POLine(nil), v.Lines...)
		s.orders[k] = v
	}
	for k, v := range f.items {
		s.items[k] = v
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.orders, f.accounts, f.vouchers, f.items, f.movements = s.orders, s.accounts, s.vouchers, s.items, s.movements
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(context.Context, Stores) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(ctx, Stores{Orders: f, Accounts: f, Vouchers: f, Inventory: f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) next() int64 {
	f.seq++
	return f.seq
}

func (f *fakeStore) addAccount(code, name string, typ accounting.AccountType) accounting.Account {
	acc := accounting.Account{ID: f.next(), Code: code, Name: name, Type: typ, IsActive: true}
	f.accounts = append(f.accounts, acc)
	return acc
}

func (f *fakeStore) addItem(name string, qty, avg string) inventory.Item {
	it := inventory.Item{ID: f.next(), Name: name, Category: "Cementitious", Unit: "bag", Qty: dec(qty), AvgCost: dec(avg)}
	f.items[it.ID] = it
	return it
}

// orders

func (f *fakeStore) InsertPO(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	po.ID = f.next()
	po.Lines = append([]POLine(nil), po.Lines...)
	for i := range po.Lines {
		po.Lines[i].ID = f.next()
		po.Lines[i].OrderID = po.ID
	}
	f.orders[po.ID] = po
	return po, nil
}

func (f *fakeStore) GetPO(_ context.Context, id int64) (PurchaseOrder, error) {
	po, ok := f.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	po.Lines = append([]POLine(nil), po.Lines...)
	return po, nil
}

func (f *fakeStore) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return f.GetPO(ctx, id)
}

func (f *fakeStore) UpdatePO(_ context.Context, po PurchaseOrder) error {
	if _, ok := f.orders[po.ID]; !ok {
		return ErrNotFound
	}
	f.orders[po.ID] = po
	return nil
}

func (f *fakeStore) UpdatePOStatus(_ context.Context, id int64, status POStatus, at time.Time) error {
	po, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	po.UpdatedAt = at
	f.orders[id] = po
	return nil
}

func (f *fakeStore) MarkPOCompleted(_ context.Context, id int64, voucherID int64, at time.Time) error {
	po, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = POStatusCompleted
	po.JournalVoucherID = &voucherID
	po.CompletedAt = &at
	f.orders[id] = po
	return nil
}

func (f *fakeStore) ListPOs(_ context.Context, filter ListFilters) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range f.orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		if filter.Supplier != "" && po.SupplierName != filter.Supplier {
			continue
		}
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// accounting

func (f *fakeStore) ListAccounts(context.Context) ([]accounting.Account, error) {
	return append([]accounting.Account(nil), f.accounts...), nil
}

func (f *fakeStore) GetAccount(_ context.Context, id int64) (accounting.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (f *fakeStore) GetAccountByCode(_ context.Context, code string) (accounting.Account, error) {
	for _, a := range f.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return accounting.Account{}, accounting.ErrAccountNotFound
}

func (f *fakeStore) InsertAccount(_ context.Context, a accounting.Account) (accounting.Account, error) {
	a.ID = f.next()
	f.accounts = append(f.accounts, a)
	return a, nil
}

func (f *fakeStore) InsertVoucher(_ context.Context, v accounting.JournalVoucher) (accounting.JournalVoucher, error) {
	v.ID = f.next()
	for i := range v.Lines {
		v.Lines[i].ID = f.next()
		v.Lines[i].VoucherID = v.ID
	}
	f.vouchers = append(f.vouchers, v)
	return v, nil
}

func (f *fakeStore) GetVoucher(_ context.Context, id int64) (accounting.JournalVoucher, error) {
	for _, v := range f.vouchers {
		if v.ID == id {
			return v, nil
		}
	}
	return accounting.JournalVoucher{}, accounting.ErrVoucherNotFound
}

func (f *fakeStore) ListVouchers(context.Context, accounting.VoucherFilter) ([]accounting.JournalVoucher, error) {
	return append([]accounting.JournalVoucher(nil), f.vouchers...), nil
}

func (f *fakeStore) UpdateVoucherStatus(_ context.Context, id int64, status accounting.VoucherStatus) error {
	for i := range f.vouchers {
		if f.vouchers[i].ID == id {
			f.vouchers[i].Status = status
			return nil
		}
	}
	return accounting.ErrVoucherNotFound
}

// inventory

func (f *fakeStore) ListItems(context.Context, inventory.ItemFilter) ([]inventory.Item, error) {
	var out []inventory.Item
	for _, it := range f.items {
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeStore) GetItem(_ context.Context, id int64) (inventory.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return inventory.Item{}, inventory.ErrItemNotFound
	}
	return it, nil
}

func (f *fakeStore) GetItemByName(_ context.Context, name string) (inventory.Item, error) {
	for _, it := range f.items {
		if it.Name == name {
			return it, nil
		}
	}
	return inventory.Item{}, inventory.ErrItemNotFound
}

func (f *fakeStore) InsertItem(_ context.Context, it inventory.Item) (inventory.Item, error) {
	it.ID = f.next()
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, it inventory.Item) error {
	if _, ok := f.items[it.ID]; !ok {
		return inventory.ErrItemNotFound
	}
	f.items[it.ID] = it
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id int64) error {
	delete(f.items, id)
	return nil
}

func (f *fakeStore) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	if f.failMovement != nil {
		return inventory.Movement{}, f.failMovement
	}
	m.ID = f.next()
	f.movements = append(f.movements, m)
	return m, nil
}

func (f *fakeStore) ListMovements(_ context.Context, itemID int64) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, m := range f.movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}
