package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"incplan/internal/logging"
	"incplan/internal/store"
)

type runsOptions struct {
	root *rootOptions

	journal string
	limit   int
}

func newRunsCmd(root *rootOptions) *cobra.Command {
	o := &runsOptions{root: root}

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Inspect the run journal",
		Long: `Without arguments, lists journaled runs, newest first. With a run id, prints
that run's steps, injected delays and plan facts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	cmd.Flags().StringVar(&o.journal, "journal", "", "SQLite run journal (default: the configured journal)")
	cmd.Flags().IntVar(&o.limit, "limit", 10, "Number of runs to list")
	return cmd
}

func (o *runsOptions) run(cmd *cobra.Command, args []string) error {
	cfg := o.root.cfg
	path := cfg.Output.Journal
	if cmd.Flags().Changed("journal") {
		path = o.journal
	}
	if path == "" {
		return fmt.Errorf("no journal configured: pass --journal")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("journal %s: %w", path, err)
	}

	j, err := store.Open(path, logging.For(o.root.logger, cfg.Logging, logging.CategoryStore))
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		return showRun(cmd, j, args[0], out)
	}

	runs, err := j.Runs(cmd.Context())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("no runs journaled"))
		return nil
	}
	if o.limit > 0 && len(runs) > o.limit {
		runs = runs[:o.limit]
	}
	for _, r := range runs {
		outcome := warnStyle.Render("no plan")
		if r.Found {
			outcome = successStyle.Render("plan")
		}
		imax := "none"
		if r.IMax != nil {
			imax = fmt.Sprint(*r.IMax)
		}
		fmt.Fprintf(out, "%s  %s  %s\n", r.ID, outcome,
			mutedStyle.Render(fmt.Sprintf("steps=%d last=%s imin=%d imax=%s istop=%s rate=%g seed=%d %s",
				r.Steps, r.Status, r.IMin, imax, r.IStop, r.DelayRate, r.Seed,
				r.StartedAt.Format("2006-01-02 15:04:05"))))
	}
	return nil
}

func showRun(cmd *cobra.Command, j *store.Journal, runID string, out io.Writer) error {
	ctx := cmd.Context()
	steps, err := j.Steps(ctx, runID)
	if err != nil {
		return err
	}
	delays, err := j.Delays(ctx, runID)
	if err != nil {
		return err
	}
	facts, err := j.PlanFacts(ctx, runID)
	if err != nil {
		return err
	}
	if len(steps) == 0 && len(facts) == 0 {
		return fmt.Errorf("run %s has no journaled steps", runID)
	}

	fmt.Fprintln(out, successStyle.Render("Steps"))
	for _, s := range steps {
		fmt.Fprintf(out, "  %3d  %-7s model=%d  %s\n", s.Step, s.Status, s.ModelSize, s.Elapsed)
	}
	if len(delays) > 0 {
		fmt.Fprintln(out, successStyle.Render("Delays"))
		for _, ev := range delays {
			fmt.Fprintf(out, "  %s\n", ev.LogLine())
		}
	}
	if len(facts) > 0 {
		fmt.Fprintln(out, successStyle.Render("Plan"))
		fmt.Fprintf(out, "  %s.\n", strings.Join(facts, ".\n  "))
	}
	return nil
}
