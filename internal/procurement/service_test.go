package procurement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/platform/cache"
	"github.com/sitebooks/sitebooks/internal/shared"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testNow = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	store.addAccount("112", "Inventory", accounting.AccountTypeAsset)
	store.addAccount("211", "Accounts Payable", accounting.AccountTypeLiability)
	svc := NewService(store, nil, Config{})
	svc.WithNow(func() time.Time { return testNow })
	return svc, store
}

func line(desc, qty, price string) POLineInput {
	return POLineInput{Description: desc, Qty: dec(qty), UnitPrice: dec(price)}
}

func approvedOrder(t *testing.T, svc *Service, lines ...POLineInput) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{SupplierName: "Al Noor Trading", ProjectName: "Tower A", Lines: lines})
	require.NoError(t, err)
	_, err = svc.SubmitPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	po, err = svc.ApprovePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, po.Status)
	return po
}

func TestCompleteCreatesItemAndVoucher(t *testing.T) {
	svc, store := newTestService(t)
	po := approvedOrder(t, svc, line("Rebar", "10", "100"))

	done, err := svc.CompletePurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, POStatusCompleted, done.Status)
	require.NotNil(t, done.JournalVoucherID)
	require.NotNil(t, done.CompletedAt)

	require.Len(t, store.items, 1)
	for _, it := range store.items {
		assert.Equal(t, "Rebar", it.Name)
		assert.True(t, it.Qty.Equal(dec("10")))
		assert.True(t, it.AvgCost.Equal(dec("100")))
		assert.Equal(t, "General Materials", it.Category)
		assert.Equal(t, "unit", it.Unit)
	}

	require.Len(t, store.vouchers, 1)
	v := store.vouchers[0]
	assert.Equal(t, *done.JournalVoucherID, v.ID)
	assert.Equal(t, accounting.VoucherStatusPosted, v.Status)
	assert.Equal(t, testNow, v.Date)
	assert.Contains(t, v.Description, po.Number)
	require.Len(t, v.Lines, 2)
	inv, _ := store.GetAccountByCode(context.Background(), "112")
	pay, _ := store.GetAccountByCode(context.Background(), "211")
	assert.Equal(t, inv.ID, v.Lines[0].AccountID)
	assert.True(t, v.Lines[0].Debit.Equal(dec("1000")))
	assert.Contains(t, v.Lines[0].Description, "Al Noor Trading")
	assert.Equal(t, pay.ID, v.Lines[1].AccountID)
	assert.True(t, v.Lines[1].Credit.Equal(dec("1000")))
	assert.Contains(t, v.Lines[1].Description, "Al Noor Trading")

	stored, err := svc.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	assert.Equal(t, POStatusCompleted, stored.Status)
}

func TestCompleteBlendsExistingItemCost(t *testing.T) {
	svc, store := newTestService(t)
	cement := store.addItem("Cement", "5", "20")
	po := approvedOrder(t, svc, line("  Cement ", "5", "30"))

	_, err := svc.CompletePurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)

	require.Len(t, store.items, 1)
	got := store.items[cement.ID]
	assert.True(t, got.Qty.Equal(dec("10")), got.Qty.String())
	assert.True(t, got.AvgCost.Equal(dec("25")), got.AvgCost.String())
	assert.Equal(t, "bag", got.Unit)
	require.Len(t, store.movements, 1)
	assert.Equal(t, SourceModule, store.movements[0].RefModule)
}

func TestCompleteVoucherTotalsMatchLines(t *testing.T) {
	svc, store := newTestService(t)
	po := approvedOrder(t, svc,
		line("Rebar 12mm", "12.5", "81.40"),
		line("Sand", "3", "0.333"),
		line("Timber", "7", "0"),
	)
	_, err := svc.CompletePurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)

	want := dec("12.5").Mul(dec("81.40")).Add(dec("3").Mul(dec("0.333")))
	require.Len(t, store.vouchers, 1)
	debit, credit := store.vouchers[0].Totals()
	assert.True(t, debit.Equal(want), debit.String())
	assert.True(t, credit.Equal(want), credit.String())
	assert.True(t, shared.FitsScale(debit, shared.AmountPlaces), debit.String())
	assert.True(t, store.vouchers[0].Lines[0].Debit.Equal(dec("1018.499")))
	assert.Len(t, store.items, 3)
}

func TestCompleteRejectsNonApprovedStatuses(t *testing.T) {
	ctx := context.Background()
	cases := map[POStatus]func(*Service, int64) error{
		POStatusDraft: func(*Service, int64) error { return nil },
		POStatusSubmitted: func(s *Service, id int64) error {
			_, err := s.SubmitPurchaseOrder(ctx, id)
			return err
		},
		POStatusCancelled: func(s *Service, id int64) error {
			_, err := s.CancelPurchaseOrder(ctx, id)
			return err
		},
	}
	for status, prepare := range cases {
		t.Run(string(status), func(t *testing.T) {
			svc, store := newTestService(t)
			store.addItem("Rebar", "1", "50")
			po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{SupplierName: "Supplier", Lines: []POLineInput{line("Rebar", "10", "100")}})
			require.NoError(t, err)
			require.NoError(t, prepare(svc, po.ID))

			_, err = svc.CompletePurchaseOrder(ctx, po.ID)
			require.ErrorIs(t, err, ErrInvalidState)
			require.ErrorIs(t, err, shared.ErrInvalidState)
			assert.Empty(t, store.vouchers)
			assert.Empty(t, store.movements)
			for _, it := range store.items {
				assert.True(t, it.Qty.Equal(dec("1")))
			}
			got, _ := svc.GetPurchaseOrder(ctx, po.ID)
			assert.Equal(t, status, got.Status)
		})
	}
}

func TestCompleteTwiceFails(t *testing.T) {
	svc, store := newTestService(t)
	po := approvedOrder(t, svc, line("Rebar", "10", "100"))
	ctx := context.Background()

	_, err := svc.CompletePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.CompletePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	assert.Len(t, store.vouchers, 1)
	for _, it := range store.items {
		assert.True(t, it.Qty.Equal(dec("10")))
	}
}

func TestCompleteMissingControlAccount(t *testing.T) {
	for _, code := range []string{"112", "211"} {
		t.Run(code, func(t *testing.T) {
			svc, store := newTestService(t)
			kept := store.accounts[:0]
			for _, a := range store.accounts {
				if a.Code != code {
					kept = append(kept, a)
				}
			}
			store.accounts = kept
			store.addItem("Cement", "5", "20")
			po := approvedOrder(t, svc, line("Cement", "5", "30"), line("Rebar", "1", "1"))

			_, err := svc.CompletePurchaseOrder(context.Background(), po.ID)
			require.ErrorIs(t, err, ErrMissingConfiguration)
			require.ErrorIs(t, err, accounting.ErrMissingConfiguration)
			assert.Contains(t, err.Error(), code)

			assert.Empty(t, store.vouchers)
			assert.Len(t, store.items, 1)
			for _, it := range store.items {
				assert.True(t, it.Qty.Equal(dec("5")))
				assert.True(t, it.AvgCost.Equal(dec("20")))
			}
			got, _ := svc.GetPurchaseOrder(context.Background(), po.ID)
			assert.Equal(t, POStatusApproved, got.Status)
		})
	}
}

func TestCompleteUnknownOrder(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CompletePurchaseOrder(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCompleteRollsBackPartialWrites(t *testing.T) {
	svc, store := newTestService(t)
	po := approvedOrder(t, svc, line("Rebar", "10", "100"))
	store.failMovement = errors.New("disk full")

	_, err := svc.CompletePurchaseOrder(context.Background(), po.ID)
	require.Error(t, err)
	assert.Empty(t, store.vouchers)
	assert.Empty(t, store.items)
	got, _ := svc.GetPurchaseOrder(context.Background(), po.ID)
	assert.Equal(t, POStatusApproved, got.Status)
	assert.Nil(t, got.JournalVoucherID)

	store.failMovement = nil
	_, err = svc.CompletePurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
}

type outcomeRecorder struct {
	outcomes []string
}

func (r *outcomeRecorder) ObserveCompletion(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestCompleteBusyWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, store := newTestService(t)
	locker := cache.NewLocker(client, "sitebooks:")
	svc.WithLocker(locker)
	rec := &outcomeRecorder{}
	svc.WithObserver(rec)
	po := approvedOrder(t, svc, line("Rebar", "10", "100"))
	ctx := context.Background()

	release, err := locker.Acquire(ctx, shared.CompletionLockKey(po.ID), time.Minute)
	require.NoError(t, err)

	_, err = svc.CompletePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, err, shared.ErrConflict)
	assert.Empty(t, store.vouchers)

	release()
	_, err = svc.CompletePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.CompletePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	assert.Equal(t, []string{OutcomeBusy, OutcomeCompleted, OutcomeInvalidState}, rec.outcomes)
	assert.False(t, mr.Exists("sitebooks:"+shared.CompletionLockKey(po.ID)))
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cases := map[string]CreatePOInput{
		"no lines":       {SupplierName: "S"},
		"no supplier":    {Lines: []POLineInput{line("Rebar", "1", "1")}},
		"zero qty":       {SupplierName: "S", Lines: []POLineInput{line("Rebar", "0", "1")}},
		"negative price": {SupplierName: "S", Lines: []POLineInput{line("Rebar", "1", "-1")}},
		"blank desc":     {SupplierName: "S", Lines: []POLineInput{line("  ", "1", "1")}},
		"qty scale":      {SupplierName: "S", Lines: []POLineInput{line("Rebar", "0.00001", "1")}},
		"price scale":    {SupplierName: "S", Lines: []POLineInput{line("Rebar", "1", "0.33333")}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreatePurchaseOrder(ctx, input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLifecycleTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	po, err := svc.CreatePurchaseOrder(ctx, CreatePOInput{SupplierName: "S", Lines: []POLineInput{line("Rebar", "1", "1")}})
	require.NoError(t, err)
	assert.Equal(t, POStatusDraft, po.Status)
	assert.Regexp(t, `^PO-20240603-[0-9A-F]{12}$`, po.Number)

	_, err = svc.ApprovePurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	updated, err := svc.UpdatePurchaseOrder(ctx, po.ID, CreatePOInput{SupplierName: "S2", Lines: []POLineInput{line("Sand", "2", "3")}})
	require.NoError(t, err)
	assert.Equal(t, "S2", updated.SupplierName)
	assert.True(t, updated.Total().Equal(dec("6")))

	_, err = svc.SubmitPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.UpdatePurchaseOrder(ctx, po.ID, CreatePOInput{SupplierName: "S3", Lines: []POLineInput{line("Sand", "2", "3")}})
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.ApprovePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.CompletePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	_, err = svc.CancelPurchaseOrder(ctx, po.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	list, err := svc.ListPurchaseOrders(ctx, ListFilters{Status: POStatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, po.ID, list[0].ID)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, POStatusDraft.CanTransitionTo(POStatusSubmitted))
	assert.True(t, POStatusApproved.CanTransitionTo(POStatusCompleted))
	assert.True(t, POStatusApproved.CanTransitionTo(POStatusCancelled))
	assert.False(t, POStatusSubmitted.CanTransitionTo(POStatusCompleted))
	assert.False(t, POStatusCompleted.CanTransitionTo(POStatusCancelled))
	assert.False(t, POStatusCancelled.CanTransitionTo(POStatusDraft))
}
