package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show table row counts and the last run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
}

func runStatus(ctx context.Context, opts *GlobalOptions, w io.Writer) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Store: %s\n", e.cfg.StorePath)

	_, _ = fmt.Fprintln(w)
	_, _ = bold.Fprintln(w, "  Tables:")
	for _, entity := range types.LoadOrder {
		n, err := e.store.CountRows(ctx, entity)
		if err != nil {
			return fmt.Errorf("counting %s: %w", entity, err)
		}
		_, _ = fmt.Fprintf(w, "    %-16s %d\n", entity, n)
	}

	runs, err := e.store.ListRuns(ctx, 1)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "  No runs recorded.")
		return nil
	}
	_, _ = bold.Fprintln(w, "  Last Run:")
	printRun(w, runs[0])
	return nil
}
