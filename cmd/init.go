package cmd

import (
	"fmt"
	"os"

	"amalgam/pkg/config"

	"github.com/spf13/cobra"
)

func newInitCmd(opts *options) *cobra.Command {
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.configFile); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", opts.configFile)
			}
			if err := config.DefaultConfig().Save(opts.configFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", opts.configFile)
			return nil
		},
	}

	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	return initCmd
}
