// Package cli implements the sbctl operations commands.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/app"
)

// Opener builds the service container for a command run.
type Opener func(ctx context.Context) (*app.Container, error)

// Options configures the root command.
type Options struct {
	Open      Opener
	RedisAddr string
	Stdout    io.Writer
}

// NewRootCommand assembles sbctl.
func NewRootCommand(opts Options) *cobra.Command {
	root := &cobra.Command{
		Use:           "sbctl",
		Short:         "SiteBooks operations CLI",
		Long:          "sbctl seeds reference data, completes purchase orders and inspects background jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if opts.Stdout != nil {
		root.SetOut(opts.Stdout)
	}
	root.PersistentFlags().String("redis-addr", opts.RedisAddr, "Redis address used by job commands")

	root.AddCommand(
		newChartCommand(opts),
		newDBCommand(opts),
		newOrdersCommand(opts),
		newInventoryCommand(opts),
		newIntegrityCommand(opts),
		newJobsCommand(),
	)
	return root
}

func withContainer(cmd *cobra.Command, opts Options, fn func(*app.Container) error) error {
	c, err := opts.Open(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
