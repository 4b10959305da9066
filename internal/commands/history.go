package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd(opts *GlobalOptions) *cobra.Command {
	var (
		limit  int
		fromPG bool
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, cmd.OutOrStdout(), historyOptions{
				limit:   limit,
				archive: fromPG,
				status:  types.RunStatus(status),
				json:    asJSON,
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	cmd.Flags().BoolVar(&fromPG, "archive", false, "read from the Postgres archive instead of the local store")
	cmd.Flags().StringVar(&status, "status", "", "only show runs with this status (archive only)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}

type historyOptions struct {
	limit   int
	archive bool
	status  types.RunStatus
	json    bool
}

func runHistory(ctx context.Context, opts *GlobalOptions, w io.Writer, ho historyOptions) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	var runs []types.RunRecord
	if ho.archive {
		pg, err := openArchive(ctx, e.cfg)
		if err != nil {
			return err
		}
		defer pg.Close()
		runs, err = pg.QueryRunHistory(ctx, ho.status, ho.limit)
		if err != nil {
			return err
		}
	} else {
		if ho.status != "" {
			return fmt.Errorf("--status requires --archive")
		}
		runs, err = e.store.ListRuns(ctx, ho.limit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
	}

	return printHistory(w, runs, ho.json)
}

func printHistory(w io.Writer, runs []types.RunRecord, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if runs == nil {
			runs = []types.RunRecord{}
		}
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	bold := color.New(color.Bold)
	_, _ = bold.Fprintln(w, "Recent Runs:")
	for _, r := range runs {
		printRun(w, r)
	}
	return nil
}
