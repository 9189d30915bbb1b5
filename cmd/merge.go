package cmd

import (
	"github.com/spf13/cobra"
)

func newMergeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge the library headers into a single header",
		Long: `Merge resolves the top header and every local header it includes, then writes
the amalgamated header. Nothing is written if any header is malformed or missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts)
		},
	}
}

func runMerge(cmd *cobra.Command, opts *options) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	return opts.mergeOnce(cmd.Context(), cmd, cfg)
}
