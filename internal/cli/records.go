package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/spf13/cobra"
)

type filterFlags struct {
	agentID   string
	contactID string
	date      string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.agentID, "agent", "", "only this agent")
	cmd.Flags().StringVar(&f.contactID, "contact", "", "only this contact")
	cmd.Flags().StringVar(&f.date, "date", "", "only this day (YYYY-MM-DD)")
}

func (f *filterFlags) query() url.Values {
	q := url.Values{}
	if f.agentID != "" {
		q.Set("agentId", f.agentID)
	}
	if f.contactID != "" {
		q.Set("contactId", f.contactID)
	}
	if f.date != "" {
		q.Set("date", f.date)
	}
	return q
}

func newRecordsCmd(opts *options) *cobra.Command {
	filter := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List closed calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []types.CallRecord
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/records", filter.query(), nil, &records); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), records)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tAGENT\tCONTACT\tOUTCOME\tDISPOSITION\tDURATION\tCOMPLETED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%ds\t%s\n",
					r.SessionID, r.AgentID, r.ContactID, r.Outcome, r.Disposition, r.Duration, r.CompleteTime)
			}
			return w.Flush()
		},
	}
	filter.bind(cmd)
	return cmd
}

func newAnalyticsCmd(opts *options) *cobra.Command {
	filter := &filterFlags{}
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show call analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var a types.Analytics
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/analytics", filter.query(), nil, &a); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), a)
			}
			out := cmd.OutOrStdout()
			printf(out, "calls      %d\n", a.TotalCalls)
			printf(out, "answered   %d (%.1f%%)\n", a.AnsweredCalls, a.AnswerRate*100)
			printf(out, "avg length %.0fs\n", a.AvgDuration)
			for _, d := range types.AllDispositions {
				if n := a.ByDisposition[d]; n > 0 {
					printf(out, "  %-15s %d\n", d, n)
				}
			}
			return nil
		},
	}
	filter.bind(cmd)
	return cmd
}
