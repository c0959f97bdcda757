package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/spf13/cobra"
)

func scheduleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Show the configured cadences and their next fire times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			loc, err := cfg.Recurrence.Location()
			if err != nil {
				return err
			}

			s, err := scheduler.NewRecurrenceScheduler(scheduler.RecurrenceSchedulerConfig{
				Location:        loc,
				MonthlySchedule: cfg.Recurrence.MonthlySchedule,
				YearlySchedule:  cfg.Recurrence.YearlySchedule,
			}, func(context.Context) error { return nil }, log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Timezone: %s (scheduler enabled: %t)\n\n", loc, cfg.Recurrence.Enabled)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CADENCE\tSCHEDULE\tNEXT RUN")
			for _, e := range s.Entries() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Trigger, e.Schedule, e.Next.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
