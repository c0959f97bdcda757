package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/invoicing/backend/internal/application/recurrence"
	"github.com/invoicing/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

func runCmd(opts *rootOptions) *cobra.Command {
	var (
		date   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the recurring invoice engine once",
		Long: `Selects every recurring invoice due on the billing date, advances it to the
next period, requests a payment link and emails the customer.

--date freezes the billing date (YYYY-MM-DD); it defaults to today in the
configured recurrence timezone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var today time.Time
			if date != "" {
				parsed, err := parseBillingDate(date)
				if err != nil {
					return err
				}
				today = parsed
			}

			return opts.withApp(cmd.Context(), func(app *bootstrap.App) error {
				svc := app.RecurrenceService(nil)
				if today.IsZero() {
					today = svc.Today()
				}
				report, err := svc.Run(cmd.Context(), today)
				if report != nil {
					if asJSON {
						if werr := writeReportJSON(cmd.OutOrStdout(), report); werr != nil {
							return werr
						}
					} else {
						writeReportTable(cmd.OutOrStdout(), report)
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Billing date to run for (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full run report as JSON")
	return cmd
}

func parseBillingDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func writeReportJSON(w io.Writer, report *recurrence.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*recurrence.RunReport
		Counts recurrence.RunCounts `json:"counts"`
	}{report, report.Counts()})
}

func writeReportTable(w io.Writer, report *recurrence.RunReport) {
	counts := report.Counts()
	fmt.Fprintf(w, "Run %s for %s\n", report.RunID, report.Today.Format(time.DateOnly))
	fmt.Fprintf(w, "candidates=%d generated=%d skipped=%d failed=%d\n",
		counts.Candidates, counts.Generated, counts.Skipped, counts.Failed)
	fmt.Fprintf(w, "payments created=%d skipped=%d failed=%d, emails sent=%d failed=%d\n\n",
		counts.PaymentsCreated, counts.PaymentsSkipped, counts.PaymentsFailed,
		counts.NotificationsSent, counts.NotificationsFailed)
	if len(report.Outcomes) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tFREQUENCY\tSTATUS\tNEXT ISSUE\tPAYMENT\tEMAIL\tERROR")
	for _, o := range report.Outcomes {
		next := "-"
		if o.NextIssueDate != nil {
			next = o.NextIssueDate.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.InvoiceID, o.Frequency, o.Status, next,
			stepLabel(o.Payment.Status), stepLabel(o.Notification.Status), o.Error)
	}
	_ = tw.Flush()
}

func stepLabel(s recurrence.StepStatus) string {
	if s == recurrence.StepNotAttempted {
		return "-"
	}
	return string(s)
}
