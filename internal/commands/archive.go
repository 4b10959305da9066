package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/internal/archiver"
)

// NewArchiveCmd creates the archive command.
func NewArchiveCmd(opts *GlobalOptions) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Copy new run history to the Postgres archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(cmd.Context(), opts, cmd.OutOrStdout(), window)
		},
	}
	cmd.Flags().DurationVar(&window, "failures-since", 7*24*time.Hour, "window for the failure summary")
	return cmd
}

func runArchive(ctx context.Context, opts *GlobalOptions, w io.Writer, window time.Duration) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	pg, err := openArchive(ctx, e.cfg)
	if err != nil {
		return err
	}
	defer pg.Close()

	n, err := archiver.New(e.store, pg, 0, e.logger).ArchiveOnce(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, color.GreenString("Archived %d run(s)", n))

	kinds, err := pg.QueryFailureKinds(ctx, time.Now().Add(-window))
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		_, _ = fmt.Fprintf(w, "No failed runs in the last %s.\n", window)
		return nil
	}
	_, _ = color.New(color.Bold).Fprintf(w, "Failures in the last %s:\n", window)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "  %-24s %d\n", k.ErrorKind, k.Runs)
	}
	return nil
}
