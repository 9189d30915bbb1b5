// File: cmd/version.go
package cmd

import (
	"fmt"

	"amalgam/pkg/version"

	"github.com/spf13/cobra"
)

// newVersionCmd displays the current version of amalgam.
// The --short flag prints the bare version number.
func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version of amalgam",
		Long:  `Display the current version information of the amalgam CLI tool.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			short, err := cmd.Flags().GetBool("short")
			if err != nil {
				return fmt.Errorf("error reading flags: %w", err)
			}

			v := version.Get()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), v.Version)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), v.String())
			}
			return nil
		},
	}

	versionCmd.Flags().Bool("short", false, "Print the version number only")
	return versionCmd
}
