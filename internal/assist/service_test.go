package assist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/openai/openai-go/option"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/internal/shared"
)

type stubGenerator struct {
	text    string
	json    string
	err     error
	prompts []string
	formats []Format
}

func (g *stubGenerator) Text(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.text, g.err
}

func (g *stubGenerator) JSON(_ context.Context, prompt string, format Format) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.formats = append(g.formats, format)
	return g.json, g.err
}

type stubOrders map[int64]procurement.PurchaseOrder

func (s stubOrders) GetPurchaseOrder(_ context.Context, id int64) (procurement.PurchaseOrder, error) {
	po, ok := s[id]
	if !ok {
		return procurement.PurchaseOrder{}, procurement.ErrNotFound
	}
	return po, nil
}

func rebarOrder() procurement.PurchaseOrder {
	return procurement.PurchaseOrder{
		ID:           1,
		Number:       "PO-1",
		SupplierName: "Acme Steel",
		ProjectName:  "Tower A",
		Status:       procurement.POStatusApproved,
		Lines: []procurement.POLine{
			{Description: "Rebar 12mm", Qty: decimal.NewFromInt(100), UnitPrice: decimal.NewFromFloat(11.5)},
		},
	}
}

func TestDisabledService(t *testing.T) {
	svc := NewService(nil, stubOrders{})
	require.False(t, svc.Enabled())

	_, err := svc.Summarize(context.Background(), 1)
	require.ErrorIs(t, err, ErrDisabled)
	require.ErrorIs(t, err, shared.ErrUnavailable)

	_, err = svc.DraftOrder(context.Background(), "100 bags of cement")
	require.ErrorIs(t, err, ErrDisabled)
}

func TestSummarizeBuildsPromptFromOrder(t *testing.T) {
	gen := &stubGenerator{text: "Rebar for Tower A."}
	svc := NewService(gen, stubOrders{1: rebarOrder()})

	summary, err := svc.Summarize(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Rebar for Tower A.", summary)
	require.Len(t, gen.prompts, 1)
	require.Contains(t, gen.prompts[0], "Acme Steel")
	require.Contains(t, gen.prompts[0], "Total: 1150.00")

	_, err = svc.Summarize(context.Background(), 2)
	require.ErrorIs(t, err, procurement.ErrNotFound)
}

func TestDraftOrderParsesStructuredOutput(t *testing.T) {
	gen := &stubGenerator{json: `{"supplier_name":" BuildMart ","project_name":"Site 4","note":"","lines":[{"description":"Cement","qty":"50","unit_price":"30.25"}]}`}
	svc := NewService(gen, nil)

	input, err := svc.DraftOrder(context.Background(), "50 bags of cement from BuildMart at 30.25 for site 4")
	require.NoError(t, err)
	require.Equal(t, "BuildMart", input.SupplierName)
	require.Equal(t, "Site 4", input.ProjectName)
	require.Len(t, input.Lines, 1)
	require.True(t, input.Lines[0].Qty.Equal(decimal.NewFromInt(50)))
	require.True(t, input.Lines[0].UnitPrice.Equal(decimal.RequireFromString("30.25")))

	require.Len(t, gen.formats, 1)
	format := gen.formats[0]
	require.Equal(t, "purchase_order_draft", format.Name)
	require.Equal(t, false, format.Schema["additionalProperties"])
	require.NotContains(t, format.Schema, "$schema")
	props, ok := format.Schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "supplier_name")
	require.Contains(t, props, "lines")
}

func TestDraftOrderRejectsUnusableOutput(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"supplier_name":`,
		"bad qty":      `{"supplier_name":"A","project_name":"","note":"","lines":[{"description":"x","qty":"ten","unit_price":"1"}]}`,
		"zero qty":     `{"supplier_name":"A","project_name":"","note":"","lines":[{"description":"x","qty":"0","unit_price":"1"}]}`,
		"no supplier":  `{"supplier_name":"","project_name":"","note":"","lines":[{"description":"x","qty":"1","unit_price":"1"}]}`,
		"no lines":     `{"supplier_name":"A","project_name":"","note":"","lines":[]}`,
		"negative fee": `{"supplier_name":"A","project_name":"","note":"","lines":[{"description":"x","qty":"1","unit_price":"-1"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := NewService(&stubGenerator{json: body}, nil)
			_, err := svc.DraftOrder(context.Background(), "anything")
			require.ErrorIs(t, err, ErrInvalidDraft)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestDraftOrderRequiresText(t *testing.T) {
	gen := &stubGenerator{}
	svc := NewService(gen, nil)
	_, err := svc.DraftOrder(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyText)
	require.Empty(t, gen.prompts)
}

func TestDraftOrderPropagatesGeneratorFailure(t *testing.T) {
	boom := errors.New("rate limited")
	svc := NewService(&stubGenerator{err: boom}, nil)
	_, err := svc.DraftOrder(context.Background(), "cement")
	require.ErrorIs(t, err, boom)
}

func TestHandlerReportsDisabled(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, NewService(nil, stubOrders{})).MountRoutes(r)

	for _, path := range []string{"/assist/orders/1/summary", "/assist/orders/draft"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"text":"cement"}`)))
		require.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestHandlerDraft(t *testing.T) {
	gen := &stubGenerator{json: `{"supplier_name":"BuildMart","project_name":"","note":"","lines":[{"description":"Cement","qty":"2","unit_price":"30"}]}`}
	r := chi.NewRouter()
	NewHandler(nil, NewService(gen, nil)).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assist/orders/draft", strings.NewReader(`{"text":"two bags of cement"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"supplier_name":"BuildMart"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/assist/orders/draft", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOpenAIGeneratorReadsOutputText(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "resp_1",
			"object": "response",
			"created_at": 0,
			"model": "gpt-4o-mini",
			"status": "completed",
			"output": [{
				"type": "message",
				"id": "msg_1",
				"status": "completed",
				"role": "assistant",
				"content": [{"type": "output_text", "text": "Two bags of cement.", "annotations": []}]
			}]
		}`))
	}))
	t.Cleanup(srv.Close)

	gen := NewOpenAIGenerator("sk-test", "", option.WithBaseURL(srv.URL+"/"), option.WithMaxRetries(0))
	out, err := gen.Text(context.Background(), "summarise")
	require.NoError(t, err)
	require.Equal(t, "Two bags of cement.", out)
	require.Equal(t, "/responses", gotPath)
	require.Equal(t, "Bearer sk-test", gotAuth)
}
