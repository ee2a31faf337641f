// Command seed loads a demo dataset: the default chart of accounts and a few
// purchase orders in every lifecycle state, one of them completed.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/app"
	"github.com/sitebooks/sitebooks/internal/platform/db"
	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/internal/shared"
)

type demoOrder struct {
	input procurement.CreatePOInput
	reach procurement.POStatus
}

func main() {
	ctx := shared.ContextWithActor(context.Background(), "seed")
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	c, err := app.NewContainer(ctx, cfg, app.NewLogger(cfg))
	if err != nil {
		log.Fatalf("init services: %v", err)
	}
	defer c.Close()

	if c.Pool != nil {
		fmt.Println("→ Applying schema...")
		if err := db.Migrate(ctx, c.Pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	fmt.Println("→ Seeding chart of accounts...")
	if err := c.SeedChart(ctx, ""); err != nil {
		log.Fatalf("seed chart: %v", err)
	}

	fmt.Println("→ Seeding purchase orders...")
	for _, order := range demoOrders() {
		po, err := c.Procurement.CreatePurchaseOrder(ctx, order.input)
		if err != nil {
			log.Fatalf("create %s: %v", order.input.SupplierName, err)
		}
		if err := advance(ctx, c.Procurement, po.ID, order.reach); err != nil {
			log.Fatalf("advance %s: %v", po.Number, err)
		}
		fmt.Printf("  %s %s → %s\n", po.Number, order.input.SupplierName, order.reach)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

func advance(ctx context.Context, svc *procurement.Service, id int64, target procurement.POStatus) error {
	steps := map[procurement.POStatus][]func(context.Context, int64) (procurement.PurchaseOrder, error){
		procurement.POStatusDraft:     nil,
		procurement.POStatusSubmitted: {svc.SubmitPurchaseOrder},
		procurement.POStatusApproved:  {svc.SubmitPurchaseOrder, svc.ApprovePurchaseOrder},
		procurement.POStatusCompleted: {svc.SubmitPurchaseOrder, svc.ApprovePurchaseOrder, svc.CompletePurchaseOrder},
		procurement.POStatusCancelled: {svc.CancelPurchaseOrder},
	}
	fns, ok := steps[target]
	if !ok {
		return errors.New("unknown target status")
	}
	for _, fn := range fns {
		if _, err := fn(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func qty(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func demoOrders() []demoOrder {
	return []demoOrder{
		{
			reach: procurement.POStatusCompleted,
			input: procurement.CreatePOInput{
				SupplierName: "Acme Steel",
				ProjectName:  "Riverside Tower",
				Lines: []procurement.POLineInput{
					{Description: "Rebar 12mm", Qty: qty(100), UnitPrice: price("11.50")},
					{Description: "Tie wire", Qty: qty(20), UnitPrice: price("4.25")},
				},
			},
		},
		{
			reach: procurement.POStatusApproved,
			input: procurement.CreatePOInput{
				SupplierName: "BuildMart",
				ProjectName:  "Riverside Tower",
				Lines: []procurement.POLineInput{
					{Description: "Cement", Qty: qty(50), UnitPrice: price("30")},
				},
			},
		},
		{
			reach: procurement.POStatusSubmitted,
			input: procurement.CreatePOInput{
				SupplierName: "Timber Co",
				ProjectName:  "School Annex",
				Lines: []procurement.POLineInput{
					{Description: "Plywood 18mm", Qty: qty(40), UnitPrice: price("27.90")},
				},
			},
		},
		{
			reach: procurement.POStatusDraft,
			input: procurement.CreatePOInput{
				SupplierName: "Aggregates Ltd",
				Lines: []procurement.POLineInput{
					{Description: "Gravel 20mm (tonne)", Qty: qty(12), UnitPrice: price("48")},
				},
			},
		},
		{
			reach: procurement.POStatusCancelled,
			input: procurement.CreatePOInput{
				SupplierName: "Acme Steel",
				Note:         "Duplicate of an earlier order",
				Lines: []procurement.POLineInput{
					{Description: "Rebar 16mm", Qty: qty(10), UnitPrice: price("18")},
				},
			},
		},
	}
}
