package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"incplan/internal/conflict"
	"incplan/internal/logging"
	"incplan/internal/mangle"
	"incplan/internal/plan"
)

type conflictsOptions struct {
	root *rootOptions

	out       string
	useEngine bool
}

func newConflictsCmd(root *rootOptions) *cobra.Command {
	o := &conflictsOptions{root: root}

	cmd := &cobra.Command{
		Use:   "conflicts [plan files...]",
		Short: "Find locations visited by more than one agent",
		Long: `Reads orig(agent, location, arrival, exit) facts from plan files (default: the
configured plan file) and writes conflict_location(first, second, location) for
every pair of distinct agents reaching the same location at different times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	cmd.Flags().StringVar(&o.out, "out", "conflict_locations.lp", "Conflict file to write")
	cmd.Flags().BoolVar(&o.useEngine, "engine", false, "Evaluate the conflict rule with the Mangle engine")
	return cmd
}

func (o *conflictsOptions) run(cmd *cobra.Command, args []string) error {
	cfg := o.root.cfg
	logger := logging.For(o.root.logger, cfg.Logging, logging.CategoryConflict)
	if cmd.Flags().Changed("out") {
		cfg.Output.ConflictFile = o.out
	}
	if len(args) == 0 {
		args = []string{cfg.Output.PlanFile}
	}

	results := make([][]conflict.Conflict, len(args))
	eg, egCtx := errgroup.WithContext(cmd.Context())
	for i, path := range args {
		eg.Go(func() error {
			atoms, err := plan.ReadFile(path)
			if err != nil {
				return err
			}
			visits, err := plan.Visits(atoms)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			if !o.useEngine {
				results[i] = conflict.Detect(visits)
			} else {
				engine, err := mangle.NewEngine(mangle.Config{
					FactLimit:     cfg.Engine.FactLimit,
					SolveTimeout:  cfg.GetSolveTimeout(),
					Contradiction: cfg.Engine.Contradiction,
				}, mangle.WithLogger(logging.For(o.root.logger, cfg.Logging, logging.CategoryEngine)))
				if err != nil {
					return err
				}
				defer engine.Close()
				if results[i], err = conflict.DetectWithEngine(egCtx, engine, visits); err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			logger.Debug("Plan checked", zap.String("file", path),
				zap.Int("visits", len(visits)), zap.Int("conflicts", len(results[i])))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	merged := mergeConflicts(results)
	if err := plan.WriteFile(cfg.Output.ConflictFile, conflict.Atoms(merged)); err != nil {
		return err
	}

	style := successStyle
	if len(merged) > 0 {
		style = warnStyle
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
		style.Render(fmt.Sprintf("%d conflict locations", len(merged))),
		mutedStyle.Render("written to "+cfg.Output.ConflictFile))
	return nil
}

func mergeConflicts(sets [][]conflict.Conflict) []conflict.Conflict {
	seen := make(map[string]bool)
	var out []conflict.Conflict
	for _, set := range sets {
		for _, c := range set {
			key := c.Atom().String()
			if !seen[key] {
				seen[key] = true
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Atom().String() < out[j].Atom().String()
	})
	return out
}
