package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/procurement"
)

type services struct {
	ledger    *accounting.Service
	stock     *inventory.Service
	purchases *procurement.Service
}

func wire(t *testing.T, s *Store) services {
	t.Helper()
	svc := services{
		ledger:    accounting.NewService(s.Accounting(), nil),
		stock:     inventory.NewService(s.Inventory(), nil, inventory.ServiceConfig{}),
		purchases: procurement.NewService(s.Procurement(), nil, procurement.Config{}),
	}
	chart, err := accounting.DefaultChart()
	require.NoError(t, err)
	_, err = svc.ledger.SeedChart(context.Background(), chart)
	require.NoError(t, err)
	return svc
}

func approve(t *testing.T, p *procurement.Service, lines ...procurement.POLineInput) procurement.PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := p.CreatePurchaseOrder(ctx, procurement.CreatePOInput{SupplierName: "Desert Cement Co", Lines: lines})
	require.NoError(t, err)
	_, err = p.SubmitPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	po, err = p.ApprovePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	return po
}

func poLine(desc string, qty, price int64) procurement.POLineInput {
	return procurement.POLineInput{Description: desc, Qty: decimal.NewFromInt(qty), UnitPrice: decimal.NewFromInt(price)}
}

func TestCompletionAcrossModules(t *testing.T) {
	s := New()
	svc := wire(t, s)
	ctx := context.Background()

	_, err := svc.stock.CreateItem(ctx, inventory.ItemInput{Name: "Cement", Qty: decimal.NewFromInt(5), AvgCost: decimal.NewFromInt(20)})
	require.NoError(t, err)
	po := approve(t, svc.purchases, poLine("Cement", 5, 30), poLine("Rebar", 10, 100))

	done, err := svc.purchases.CompletePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.NotNil(t, done.JournalVoucherID)

	voucher, err := svc.ledger.GetVoucher(ctx, *done.JournalVoucherID)
	require.NoError(t, err)
	assert.Equal(t, accounting.VoucherStatusPosted, voucher.Status)
	debit, credit := voucher.Totals()
	assert.True(t, debit.Equal(decimal.NewFromInt(1150)))
	assert.True(t, credit.Equal(decimal.NewFromInt(1150)))

	items, err := svc.stock.ListItems(ctx, inventory.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Cement", items[0].Name)
	assert.True(t, items[0].AvgCost.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, "Rebar", items[1].Name)
	assert.True(t, items[1].Qty.Equal(decimal.NewFromInt(10)))

	rows, err := svc.ledger.TrialBalance(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	broken, err := svc.ledger.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)
}

func TestConcurrentCompletionPostsOnce(t *testing.T) {
	s := New()
	svc := wire(t, s)
	po := approve(t, svc.purchases, poLine("Rebar", 10, 100))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		invalid   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.purchases.CompletePurchaseOrder(context.Background(), po.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, procurement.ErrInvalidState):
				invalid++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 7, invalid)

	vouchers, err := svc.ledger.ListVouchers(context.Background(), accounting.VoucherFilter{})
	require.NoError(t, err)
	assert.Len(t, vouchers, 1)
}

func TestFailedUnitOfWorkLeavesNoTrace(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.Procurement().WithTx(ctx, func(ctx context.Context, st procurement.Stores) error {
		if _, err := st.Inventory.InsertItem(ctx, inventory.Item{Name: "Ghost"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, s.data.Items)
	assert.Zero(t, s.data.Seq)
}

func TestMissingAccountsLeaveOrderApproved(t *testing.T) {
	s := New()
	ctx := context.Background()
	p := procurement.NewService(s.Procurement(), nil, procurement.Config{})
	po := approve(t, p, poLine("Rebar", 10, 100))

	_, err := p.CompletePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, procurement.ErrMissingConfiguration)
	got, err := p.GetPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusApproved, got.Status)
	assert.Empty(t, s.data.Items)
	assert.Empty(t, s.data.Vouchers)
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	s, err := Open(path)
	require.NoError(t, err)
	svc := wire(t, s)
	po := approve(t, svc.purchases, poLine("Rebar", 10, 100))
	_, err = svc.purchases.CompletePurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	p := procurement.NewService(reopened.Procurement(), nil, procurement.Config{})
	got, err := p.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, procurement.POStatusCompleted, got.Status)
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].Qty.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, s.data.Seq, reopened.data.Seq)
	assert.Len(t, reopened.data.Accounts, len(s.data.Accounts))
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := Open(path)
	require.Error(t, err)
}

func TestDeleteItemWithMovementsRefused(t *testing.T) {
	s := New()
	svc := wire(t, s)
	ctx := context.Background()
	item, _, err := svc.stock.Receive(ctx, inventory.ReceiptInput{Name: "Cement", Qty: decimal.NewFromInt(5), UnitCost: decimal.NewFromInt(20)})
	require.NoError(t, err)

	err = s.Inventory().WithTx(ctx, func(ctx context.Context, tx inventory.TxRepository) error {
		return tx.DeleteItem(ctx, item.ID)
	})
	require.ErrorIs(t, err, inventory.ErrItemHasMovements)
	assert.Len(t, s.data.Items, 1)
	assert.Len(t, s.data.Movements, 1)
}
