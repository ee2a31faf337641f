// Package assist offers optional model-backed helpers around purchase orders:
// a short summary of an existing order and a structured draft parsed from
// free text. Without a Generator every call fails with ErrDisabled.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/internal/shared"
)

var (
	// ErrDisabled indicates no model is configured.
	ErrDisabled = shared.Classify(shared.ErrUnavailable, "assist: not configured")
	// ErrInvalidDraft indicates the model returned an unusable order.
	ErrInvalidDraft = shared.Classify(shared.ErrValidation, "assist: draft order is invalid")
	// ErrEmptyText indicates a blank drafting request.
	ErrEmptyText = shared.Classify(shared.ErrValidation, "assist: text is required")
)

// OrderReader loads purchase orders.
type OrderReader interface {
	GetPurchaseOrder(ctx context.Context, id int64) (procurement.PurchaseOrder, error)
}

// Service wraps a Generator with procurement-aware prompts.
type Service struct {
	gen    Generator
	orders OrderReader
}

// NewService constructs the assist service. gen may be nil.
func NewService(gen Generator, orders OrderReader) *Service {
	return &Service{gen: gen, orders: orders}
}

// Enabled reports whether a model is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.gen != nil
}

// Summarize returns a short summary of order id.
func (s *Service) Summarize(ctx context.Context, id int64) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	po, err := s.orders.GetPurchaseOrder(ctx, id)
	if err != nil {
		return "", err
	}
	return s.gen.Text(ctx, summaryPrompt(po))
}

func summaryPrompt(po procurement.PurchaseOrder) string {
	var b strings.Builder
	b.WriteString("Summarise this construction purchase order in two sentences for a site manager. ")
	b.WriteString("Mention the supplier, the project, the total and anything unusual.\n\n")
	fmt.Fprintf(&b, "Number: %s\nStatus: %s\nSupplier: %s\n", po.Number, po.Status, po.SupplierName)
	if po.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", po.ProjectName)
	}
	if !po.Date.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", po.Date.Format("2006-01-02"))
	}
	b.WriteString("Lines:\n")
	for _, line := range po.Lines {
		fmt.Fprintf(&b, "- %s: %s x %s = %s\n", line.Description, line.Qty.String(), line.UnitPrice.StringFixed(2), line.Amount().StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s\n", po.Total().StringFixed(2))
	if po.Note != "" {
		fmt.Fprintf(&b, "Note: %s\n", po.Note)
	}
	return b.String()
}

type draftLine struct {
	Description string `json:"description" jsonschema:"description=Material or service being ordered"`
	Qty         string `json:"qty" jsonschema:"description=Positive quantity as a decimal string"`
	UnitPrice   string `json:"unit_price" jsonschema:"description=Price per unit as a decimal string"`
}

type draftOrder struct {
	SupplierName string      `json:"supplier_name" jsonschema:"description=Supplier the order is placed with"`
	ProjectName  string      `json:"project_name" jsonschema:"description=Project or site the materials are for; empty when unknown"`
	Note         string      `json:"note" jsonschema:"description=Delivery or other remarks; empty when none"`
	Lines        []draftLine `json:"lines" jsonschema:"minItems=1"`
}

func draftFormat() (Format, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(&draftOrder{}))
	if err != nil {
		return Format{}, fmt.Errorf("assist: marshal schema: %w", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return Format{}, fmt.Errorf("assist: decode schema: %w", err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	return Format{
		Name:        "purchase_order_draft",
		Description: "A draft construction purchase order",
		Schema:      schema,
	}, nil
}

// DraftOrder turns free text into a validated CreatePOInput. Nothing is
// persisted.
func (s *Service) DraftOrder(ctx context.Context, text string) (procurement.CreatePOInput, error) {
	if !s.Enabled() {
		return procurement.CreatePOInput{}, ErrDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return procurement.CreatePOInput{}, ErrEmptyText
	}
	format, err := draftFormat()
	if err != nil {
		return procurement.CreatePOInput{}, err
	}
	prompt := "Extract a purchase order from the request below. Use exact decimal strings for qty and unit_price " +
		"and do not invent lines that are not mentioned.\n\nRequest: " + text
	content, err := s.gen.JSON(ctx, prompt, format)
	if err != nil {
		return procurement.CreatePOInput{}, err
	}
	var draft draftOrder
	if err := json.Unmarshal([]byte(content), &draft); err != nil {
		return procurement.CreatePOInput{}, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	return draft.toInput()
}

func (d draftOrder) toInput() (procurement.CreatePOInput, error) {
	input := procurement.CreatePOInput{
		SupplierName: strings.TrimSpace(d.SupplierName),
		ProjectName:  strings.TrimSpace(d.ProjectName),
		Note:         strings.TrimSpace(d.Note),
	}
	for i, line := range d.Lines {
		qty, err := decimal.NewFromString(strings.TrimSpace(line.Qty))
		if err != nil {
			return procurement.CreatePOInput{}, fmt.Errorf("%w: line %d qty %q", ErrInvalidDraft, i+1, line.Qty)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(line.UnitPrice))
		if err != nil {
			return procurement.CreatePOInput{}, fmt.Errorf("%w: line %d unit price %q", ErrInvalidDraft, i+1, line.UnitPrice)
		}
		input.Lines = append(input.Lines, procurement.POLineInput{
			Description: strings.TrimSpace(line.Description),
			Qty:         qty,
			UnitPrice:   price,
		})
	}
	if err := input.Validate(); err != nil {
		return procurement.CreatePOInput{}, fmt.Errorf("%w: %w", ErrInvalidDraft, err)
	}
	return input, nil
}
