package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type configOptions struct {
	root *rootOptions

	out   string
	force bool
}

func newConfigCmd(root *rootOptions) *cobra.Command {
	o := &configOptions{root: root}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration as YAML",
		Long: `Writes the configuration incplan would run with (defaults, then the --config
file, then INCPLAN_* environment overrides) to --out. An existing file is kept
unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	cmd.Flags().StringVar(&o.out, "out", "", "File to write (default: the --config path)")
	cmd.Flags().BoolVar(&o.force, "force", false, "Overwrite an existing file")
	return cmd
}

func (o *configOptions) run(cmd *cobra.Command) error {
	path := o.out
	if path == "" {
		path = o.root.configPath
	}
	if !o.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := o.root.cfg.Validate(); err != nil {
		return err
	}
	if err := o.root.cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("config written"), mutedStyle.Render(path))
	return nil
}
