package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/shared"
)

// WeightedAverage blends a receipt of q2 units at p2 into a balance of q1 units
// at average cost c1. The average is zero when the resulting quantity is not
// positive.
func WeightedAverage(q1, c1, q2, p2 decimal.Decimal) (qty, avg decimal.Decimal) {
	qty = q1.Add(q2)
	if !qty.IsPositive() {
		return qty, decimal.Zero
	}
	total := q1.Mul(c1).Add(q2.Mul(p2))
	return qty, total.DivRound(qty, shared.CostPlaces)
}

// MatchKey normalises a free-text description for item matching. Matching is
// case-sensitive; only surrounding whitespace is ignored.
func MatchKey(name string) string {
	return strings.TrimSpace(name)
}

// FindByName returns the item whose name matches name under MatchKey.
func FindByName(ctx context.Context, repo ItemRepository, name string) (Item, bool, error) {
	item, err := repo.GetItemByName(ctx, MatchKey(name))
	if errors.Is(err, ErrItemNotFound) {
		return Item{}, false, nil
	}
	if err != nil {
		return Item{}, false, err
	}
	return item, true, nil
}

// ReceiveInto applies a receipt inside an open unit of work. A matching item
// is re-averaged in place; otherwise a new item is created with the receipt
// quantity and cost and the given defaults. A movement is appended either way.
func ReceiveInto(ctx context.Context, tx TxRepository, input ReceiptInput, defaults Defaults, now time.Time) (Item, Movement, error) {
	name := MatchKey(input.Name)
	if name == "" {
		return Item{}, Movement{}, ErrInvalidItem
	}
	if !input.Qty.IsPositive() || !shared.FitsScale(input.Qty, shared.QtyPlaces) {
		return Item{}, Movement{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() || !shared.FitsScale(input.UnitCost, shared.CostPlaces) {
		return Item{}, Movement{}, ErrInvalidUnitCost
	}
	item, found, err := FindByName(ctx, tx, name)
	if err != nil {
		return Item{}, Movement{}, err
	}
	if found {
		item.Qty, item.AvgCost = WeightedAverage(item.Qty, item.AvgCost, input.Qty, input.UnitCost)
		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, item); err != nil {
			return Item{}, Movement{}, fmt.Errorf("inventory: update %s: %w", name, err)
		}
	} else {
		defaults = defaults.WithFallback()
		item, err = tx.InsertItem(ctx, Item{
			Name:      name,
			Category:  defaults.Category,
			Unit:      defaults.Unit,
			Qty:       input.Qty,
			AvgCost:   input.UnitCost,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Item{}, Movement{}, fmt.Errorf("inventory: create %s: %w", name, err)
		}
	}
	movement, err := tx.InsertMovement(ctx, Movement{
		ItemID:      item.ID,
		Type:        MovementTypeIn,
		Qty:         input.Qty,
		UnitCost:    input.UnitCost,
		BalanceQty:  item.Qty,
		BalanceCost: item.AvgCost,
		RefModule:   input.RefModule,
		RefID:       input.RefID,
		Note:        input.Note,
		PostedAt:    now,
	})
	if err != nil {
		return Item{}, Movement{}, err
	}
	return item, movement, nil
}
