package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rcpsched/core/runlog"
)

var runsOpts struct {
	since    time.Duration
	instance string
	feasible string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List logged runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func init() {
	f := runsCmd.Flags()
	f.DurationVar(&runsOpts.since, "since", 0, "only runs newer than this duration")
	f.StringVar(&runsOpts.instance, "instance", "", "only runs of this instance")
	f.StringVar(&runsOpts.feasible, "feasible", "", "filter on feasibility: yes or no")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Logging.Backend == "none" {
		return fmt.Errorf("no run log configured")
	}
	store, err := runlog.Open(cfg.Logging.RunLog())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := runlog.Query{Instance: runsOpts.instance}
	if runsOpts.since > 0 {
		q.Start = time.Now().Add(-runsOpts.since)
	}
	switch runsOpts.feasible {
	case "":
	case "yes", "no":
		v := runsOpts.feasible == "yes"
		q.Feasible = &v
	default:
		return fmt.Errorf("--feasible must be yes or no")
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tID\tINSTANCE\tSEED\tOBJECTIVE\tFEASIBLE\tITERATIONS\tELAPSED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\t%d\t%s\n",
			r.Time.Format(time.RFC3339), r.ID, r.Instance, r.Seed, r.Objective, r.Feasible, r.Iterations, r.Elapsed.Round(time.Millisecond))
	}
	return tw.Flush()
}
