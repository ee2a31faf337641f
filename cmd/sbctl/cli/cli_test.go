package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sitebooks/sitebooks/internal/app"
	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/jobs"
)

func localContainer(t *testing.T) *app.Container {
	t.Helper()
	cfg := &app.Config{
		StorageDriver:        app.StorageMemory,
		AccountInventoryCode: "112",
		AccountPayableCode:   "211",
	}
	c, err := app.NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	return c
}

func run(t *testing.T, c *app.Container, redisAddr string, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	root := NewRootCommand(Options{
		Open:      func(context.Context) (*app.Container, error) { return c, nil },
		RedisAddr: redisAddr,
		Stdout:    out,
	})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func approvedOrder(t *testing.T, c *app.Container) procurement.PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := c.Procurement.CreatePurchaseOrder(ctx, procurement.CreatePOInput{
		SupplierName: "BuildMart",
		Lines: []procurement.POLineInput{
			{Description: "Cement", Qty: decimal.NewFromInt(50), UnitPrice: decimal.NewFromInt(30)},
		},
	})
	require.NoError(t, err)
	_, err = c.Procurement.SubmitPurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	po, err = c.Procurement.ApprovePurchaseOrder(ctx, po.ID)
	require.NoError(t, err)
	return po
}

func TestSeedThenCompleteOrder(t *testing.T) {
	c := localContainer(t)
	po := approvedOrder(t, c)
	id := strconv.FormatInt(po.ID, 10)

	_, err := run(t, c, "", "orders", "complete", id)
	require.ErrorIs(t, err, procurement.ErrMissingConfiguration)

	_, err = run(t, c, "", "chart", "seed")
	require.NoError(t, err)

	out, err := run(t, c, "", "orders", "complete", id)
	require.NoError(t, err)
	require.Contains(t, out, `"status": "COMPLETED"`)

	out, err = run(t, c, "", "integrity")
	require.NoError(t, err)
	require.Contains(t, out, "all posted vouchers balance")
}

func TestOrdersCompleteRejectsBadID(t *testing.T) {
	_, err := run(t, localContainer(t), "", "orders", "complete", "abc")
	require.ErrorContains(t, err, "invalid order id")
}

func TestInventoryValuationWritesWorkbook(t *testing.T) {
	c := localContainer(t)
	out := filepath.Join(t.TempDir(), "valuation.xlsx")

	stdout, err := run(t, c, "", "inventory", "valuation", "--out", out)
	require.NoError(t, err)
	require.Contains(t, stdout, out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestJobsCommandsAgainstRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c := localContainer(t)

	out, err := run(t, c, mr.Addr(), "orders", "enqueue", "7")
	require.NoError(t, err)
	require.Contains(t, out, "queued ")

	_, err = run(t, c, mr.Addr(), "orders", "enqueue", "7")
	require.ErrorIs(t, err, jobs.ErrAlreadyQueued)

	out, err = run(t, c, mr.Addr(), "jobs", "trigger", jobs.TaskVoucherIntegrity)
	require.NoError(t, err)
	require.Contains(t, out, jobs.TaskVoucherIntegrity)

	_, err = run(t, c, mr.Addr(), "jobs", "trigger", "unknown")
	require.ErrorContains(t, err, "unsupported job")
}

func TestDBMigrateNeedsPostgres(t *testing.T) {
	_, err := run(t, localContainer(t), "", "db", "migrate")
	require.ErrorContains(t, err, "STORAGE_DRIVER=postgres")
}

func TestJobsCommandsNeedRedis(t *testing.T) {
	_, err := run(t, localContainer(t), "", "jobs", "stats")
	require.ErrorContains(t, err, "redis address required")
}
