package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/app"
	"github.com/sitebooks/sitebooks/internal/platform/db"
)

func newChartCommand(opts Options) *cobra.Command {
	chart := &cobra.Command{Use: "chart", Short: "Chart of accounts maintenance"}
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Insert missing accounts from the default or a YAML chart",
		Example: `  sbctl chart seed
  sbctl chart seed --file chart.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			return withContainer(cmd, opts, func(c *app.Container) error {
				return c.SeedChart(cmd.Context(), file)
			})
		},
	}
	seed.Flags().String("file", "", "YAML chart to load instead of the embedded default")
	chart.AddCommand(seed)
	return chart
}

func newDBCommand(opts Options) *cobra.Command {
	dbCmd := &cobra.Command{Use: "db", Short: "Database maintenance"}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables on the postgres driver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, opts, func(c *app.Container) error {
				if c.Pool == nil {
					return errors.New("db migrate requires STORAGE_DRIVER=postgres")
				}
				if err := db.Migrate(cmd.Context(), c.Pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
	dbCmd.AddCommand(migrate)
	return dbCmd
}

func newOrdersCommand(opts Options) *cobra.Command {
	orders := &cobra.Command{Use: "orders", Short: "Purchase order operations"}
	complete := &cobra.Command{
		Use:   "complete <order-id>",
		Short: "Complete an approved purchase order now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, opts, func(c *app.Container) error {
				po, err := c.Procurement.CompletePurchaseOrder(cmd.Context(), id)
				if err != nil {
					return err
				}
				return writeJSON(cmd, po)
			})
		},
	}
	enqueue := &cobra.Command{
		Use:   "enqueue <order-id>",
		Short: "Queue completion of a purchase order on the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			jc, err := jobsCLI(cmd)
			if err != nil {
				return err
			}
			defer jc.Close()
			taskID, err := jc.EnqueueCompletion(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", taskID)
			return nil
		},
	}
	orders.AddCommand(complete, enqueue)
	return orders
}

func newInventoryCommand(opts Options) *cobra.Command {
	inv := &cobra.Command{Use: "inventory", Short: "Inventory reports"}
	valuation := &cobra.Command{
		Use:   "valuation",
		Short: "Export the stock valuation workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			return withContainer(cmd, opts, func(c *app.Container) error {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := c.Inventory.ExportValuation(cmd.Context(), f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			})
		},
	}
	valuation.Flags().String("out", "valuation.xlsx", "Output file")
	inv.AddCommand(valuation)
	return inv
}

func newIntegrityCommand(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "List posted vouchers whose debits and credits differ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withContainer(cmd, opts, func(c *app.Container) error {
				broken, err := c.Accounting.CheckIntegrity(cmd.Context())
				if err != nil {
					return err
				}
				if len(broken) > 0 {
					return fmt.Errorf("%d unbalanced vouchers: %v", len(broken), broken)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all posted vouchers balance")
				return nil
			})
		},
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
