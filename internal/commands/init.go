package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd(opts *GlobalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default pipeline configuration",
		Long:  "Writes the default configuration to --config. An existing file is left alone unless --force is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts.ConfigPath, force, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func runInit(path string, force bool, w io.Writer) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := config.Write(path, config.Default()); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Wrote %s\n", path)
	_, _ = fmt.Fprintln(w, "\nNext steps:")
	_, _ = fmt.Fprintln(w, "  gamedata-etl run        # fetch and load once")
	_, _ = fmt.Fprintln(w, "  gamedata-etl schedule   # keep the tables fresh")
	return nil
}
