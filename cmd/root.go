package cmd

import (
	"context"
	"fmt"

	"amalgam/pkg/combine"
	"amalgam/pkg/config"
	"amalgam/pkg/logging"
	"amalgam/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options holds the flags shared by every command.
type options struct {
	configFile  string
	debug       bool
	sourceDir   string
	topInclude  string
	target      string
	tree        string
	guardPrefix string

	logger *zap.Logger
}

// Execute builds the command tree and runs it. logger is replaced by a
// development logger when debug logging is requested.
func Execute(logger *zap.Logger) error {
	return newRootCmd(logger).Execute()
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &options{logger: logger}

	rootCmd := &cobra.Command{
		Use:   "amalgam",
		Short: "Amalgam merges a header-only library into a single header",
		Long: `Amalgam walks the local includes of a header-only C++ library starting from its
top header and writes one self-contained header: a single include guard, the
system includes hoisted and deduplicated, and every local header inlined once in
dependency order with its own include guard stripped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", config.DefaultFile, "Path to the configuration file")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&opts.sourceDir, "source", "s", "", "Directory containing the library headers")
	flags.StringVarP(&opts.topInclude, "top", "t", "", "Top header, relative to the source directory")
	flags.StringVarP(&opts.target, "output", "o", "", "Path of the merged header")
	flags.StringVar(&opts.tree, "tree", "", "Optional path of the include tree report")
	flags.StringVarP(&opts.guardPrefix, "prefix", "p", "", "Include guard prefix shared by all headers")

	rootCmd.AddCommand(
		newMergeCmd(opts),
		newWatchCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// setupLogging switches to a development logger when --debug is given.
func (o *options) setupLogging() error {
	if !o.debug {
		return nil
	}
	if err := logging.Setup(true, version.AppName, version.Get().Version); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = logging.Logger
	return nil
}

// loadConfig reads the configuration file and applies command-line overrides.
func (o *options) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.SourceDir = o.sourceDir
	}
	if flags.Changed("top") {
		cfg.TopInclude = o.topInclude
	}
	if flags.Changed("output") {
		cfg.Target = o.target
	}
	if flags.Changed("tree") {
		cfg.Tree = o.tree
	}
	if flags.Changed("prefix") {
		cfg.GuardPrefix = o.guardPrefix
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Logging.Debug && !o.debug {
		o.debug = true
		if err := o.setupLogging(); err != nil {
			return nil, err
		}
	}

	o.logger.Debug("Loaded configuration",
		zap.String("configFile", o.configFile),
		zap.String("sourceDir", cfg.SourceDir),
		zap.String("topInclude", cfg.TopInclude),
		zap.String("target", cfg.Target),
		zap.String("guardPrefix", cfg.GuardPrefix))
	return cfg, nil
}

// mergeOnce runs one merge and reports the outcome on the command's streams.
func (o *options) mergeOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	report, err := combine.Run(ctx, combine.ArgumentsFromConfig(cfg), o.logger)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "An error occurred during merge:\n%v\n", err)
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Files merged successfully into %q!\n", cfg.Target)
	o.logger.Debug("Merge report",
		zap.Strings("files", report.Files),
		zap.Strings("systemIncludes", report.SystemIncludes))
	return nil
}
