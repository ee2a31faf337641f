// Package memory is the local backend: every collection lives in one
// in-process dataset guarded by a single mutex, optionally persisted as one
// JSON document.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/procurement"
)

type dataset struct {
	Seq       int64                       `json:"seq"`
	Accounts  []accounting.Account        `json:"accounts"`
	Vouchers  []accounting.JournalVoucher `json:"vouchers"`
	Items     []inventory.Item            `json:"items"`
	Movements []inventory.Movement        `json:"movements"`
	Orders    []procurement.PurchaseOrder `json:"orders"`

	dirty bool
}

func (d *dataset) next() int64 {
	d.Seq++
	d.dirty = true
	return d.Seq
}

func (d *dataset) clone() *dataset {
	out := &dataset{
		Seq:       d.Seq,
		Accounts:  append([]accounting.Account(nil), d.Accounts...),
		Vouchers:  make([]accounting.JournalVoucher, len(d.Vouchers)),
		Items:     append([]inventory.Item(nil), d.Items...),
		Movements: append([]inventory.Movement(nil), d.Movements...),
		Orders:    make([]procurement.PurchaseOrder, len(d.Orders)),
	}
	for i, v := range d.Vouchers {
		v.Lines = append([]accounting.VoucherLine(nil), v.Lines...)
		out.Vouchers[i] = v
	}
	for i, po := range d.Orders {
		po.Lines = append([]procurement.POLine(nil), po.Lines...)
		out.Orders[i] = po
	}
	return out
}

// Store holds the dataset. The zero value is not usable; call New or Open.
type Store struct {
	mu   sync.Mutex
	data *dataset
	path string
}

// New returns an empty store that is not persisted.
func New() *Store {
	return &Store{data: &dataset{}}
}

// Open loads the dataset from path when it exists and persists every
// committed unit of work back to it.
func Open(path string) (*Store, error) {
	s := &Store{data: &dataset{}, path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/memory: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return nil, fmt.Errorf("store/memory: decode %s: %w", path, err)
	}
	return s, nil
}

// withTx runs fn against a working copy. The copy replaces the live dataset
// only when fn and persistence both succeed.
func (s *Store) withTx(ctx context.Context, fn func(*dataset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	if !work.dirty {
		return nil
	}
	if err := s.persist(work); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) persist(d *dataset) error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("store/memory: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sitebooks-*.json")
	if err != nil {
		return fmt.Errorf("store/memory: persist: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("store/memory: persist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store/memory: persist: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store/memory: persist: %w", err)
	}
	return nil
}

// Accounting adapts the store to the ledger repository port.
func (s *Store) Accounting() accounting.RepositoryPort {
	return accountingPort{s}
}

// Inventory adapts the store to the stock repository port.
func (s *Store) Inventory() inventory.RepositoryPort {
	return inventoryPort{s}
}

// Procurement adapts the store to the purchase order unit of work.
func (s *Store) Procurement() procurement.RepositoryPort {
	return procurementPort{s}
}

type accountingPort struct{ s *Store }

func (p accountingPort) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	return p.s.withTx(ctx, func(d *dataset) error { return fn(ctx, &tx{d: d}) })
}

type inventoryPort struct{ s *Store }

func (p inventoryPort) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return p.s.withTx(ctx, func(d *dataset) error { return fn(ctx, &tx{d: d}) })
}

type procurementPort struct{ s *Store }

func (p procurementPort) WithTx(ctx context.Context, fn func(context.Context, procurement.Stores) error) error {
	return p.s.withTx(ctx, func(d *dataset) error {
		t := &tx{d: d}
		return fn(ctx, procurement.Stores{Orders: t, Accounts: t, Vouchers: t, Inventory: t})
	})
}
