package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/shared"
)

// SourceModule tags vouchers and stock movements produced by completion.
const SourceModule = "PROCUREMENT"

// CompletePurchaseOrder receives an APPROVED order into stock and books it to
// the ledger in one unit of work: one posted voucher debiting inventory and
// crediting payables for the order total, a weighted-average receipt per
// line, and the order marked COMPLETED with the voucher attached.
//
// Preconditions are checked before any write. A missing order yields
// ErrNotFound, any status other than APPROVED yields ErrInvalidState, and an
// absent control account yields ErrMissingConfiguration. Nothing is persisted
// when an error is returned.
func (s *Service) CompletePurchaseOrder(ctx context.Context, id int64) (po PurchaseOrder, err error) {
	start := s.now()
	defer func() {
		if s.observer != nil {
			s.observer.ObserveCompletion(outcomeOf(err), s.now().Sub(start))
		}
	}()

	if s.locker != nil {
		release, lockErr := s.locker.Acquire(ctx, shared.CompletionLockKey(id), s.lockTTL)
		if lockErr != nil {
			if errors.Is(lockErr, shared.ErrConflict) {
				return PurchaseOrder{}, fmt.Errorf("order %d: %w", id, ErrBusy)
			}
			return PurchaseOrder{}, lockErr
		}
		defer release()
	}

	var voucher accounting.JournalVoucher
	err = s.repo.WithTx(ctx, func(ctx context.Context, st Stores) error {
		current, err := st.Orders.GetPOForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != POStatusApproved {
			return fmt.Errorf("complete %s order %s: %w", current.Status, current.Number, ErrInvalidState)
		}
		controls, err := accounting.ResolveControlAccounts(ctx, st.Accounts, s.codes)
		if errors.Is(err, accounting.ErrMissingConfiguration) {
			return fmt.Errorf("%w: %w", ErrMissingConfiguration, err)
		}
		if err != nil {
			return err
		}

		now := s.now()
		ref := completionRef(current.ID)
		voucher, err = accounting.RecordVoucher(ctx, st.Vouchers, completionVoucher(current, controls, ref, now))
		if err != nil {
			return fmt.Errorf("procurement: record voucher: %w", err)
		}

		for _, line := range current.Lines {
			_, _, err := inventory.ReceiveInto(ctx, st.Inventory, inventory.ReceiptInput{
				Name:      line.Description,
				Qty:       line.Qty,
				UnitCost:  line.UnitPrice,
				RefModule: SourceModule,
				RefID:     ref,
				Note:      fmt.Sprintf("PO %s from %s", current.Number, current.SupplierName),
			}, s.defaults, now)
			if err != nil {
				return fmt.Errorf("procurement: receive %q: %w", line.Description, err)
			}
		}

		if err := st.Orders.MarkPOCompleted(ctx, current.ID, voucher.ID, now); err != nil {
			return err
		}
		current.Status = POStatusCompleted
		current.JournalVoucherID = &voucher.ID
		current.CompletedAt = &now
		current.UpdatedAt = now
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_COMPLETE", po.ID, map[string]any{
		"number":     po.Number,
		"voucher_id": voucher.ID,
		"voucher":    voucher.Number,
		"total":      po.Total().String(),
	})
	return po, nil
}

// completionRef is stable per order so every artefact of a completion shares it.
func completionRef(orderID int64) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("PO:%d", orderID))).String()
}

func completionVoucher(po PurchaseOrder, controls accounting.ControlAccounts, ref string, now time.Time) accounting.JournalVoucher {
	total := po.Total()
	return accounting.JournalVoucher{
		Date:         now,
		Description:  fmt.Sprintf("Purchase order %s (#%d) received", po.Number, po.ID),
		Status:       accounting.VoucherStatusPosted,
		SourceModule: SourceModule,
		SourceRef:    ref,
		Lines: []accounting.VoucherLine{
			{
				AccountID:   controls.Inventory.ID,
				Description: "Materials purchased from " + po.SupplierName,
				Debit:       total,
			},
			{
				AccountID:   controls.Payable.ID,
				Description: "Payable to " + po.SupplierName,
				Credit:      total,
			},
		},
	}
}
