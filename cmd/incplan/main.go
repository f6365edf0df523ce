// Command incplan runs incremental multi-agent path planning over a Mangle program
// and post-processes the resulting plans.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"incplan/internal/config"
	"incplan/internal/logging"
)

// rootOptions is the state shared by all subcommands.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "incplan",
		Short: "Incremental multi-agent path planning",
		Long: `incplan grows a planning horizon one step at a time, solving after each
step until the stop criterion holds, and writes the resulting plan.

Programs are Mangle source files. "#program name(params)." starts a fragment,
"#external atom." declares an atom the driver switches on and off, and a fact of
the contradiction predicate (default "inconsistent") makes a step unsatisfiable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "incplan.yaml", "Path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newSolveCmd(o))
	cmd.AddCommand(newConflictsCmd(o))
	cmd.AddCommand(newRunsCmd(o))
	cmd.AddCommand(newConfigCmd(o))
	return cmd
}

func (o *rootOptions) init() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging, o.verbose)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	logging.For(logger, cfg.Logging, logging.CategoryBoot).Debug("Configuration loaded",
		zap.String("path", o.configPath))
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
