package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "gamedata-etl",
		Short: "Batch ETL for Valorant game data",
		Long: `gamedata-etl fetches agents, weapons, maps and game modes from the public
Valorant content API, normalizes them into flat tables and replaces the
tables in a local SQLite store atomically. Every run is recorded in an
append-only history.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts := commands.AddGlobalFlags(root)
	root.AddCommand(
		commands.NewInitCmd(opts),
		commands.NewRunCmd(opts),
		commands.NewScheduleCmd(opts),
		commands.NewStatusCmd(opts),
		commands.NewHistoryCmd(opts),
		commands.NewArchiveCmd(opts),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
