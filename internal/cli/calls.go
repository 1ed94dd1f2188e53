package cli

import (
	"fmt"
	"net/http"
	"text/tabwriter"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/spf13/cobra"
)

func newCallCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place and control calls",
	}

	cmd.AddCommand(
		newCallStartCmd(opts),
		newCallIncomingCmd(opts),
		newCallRouteCmd(opts),
		newCallListCmd(opts),
		newCallGetCmd(opts),
		newCallDeclineCmd(opts),
		newCallWrapUpCmd(opts),
	)
	for _, action := range []struct{ name, short string }{
		{"answer", "Answer a ringing call"},
		{"hold", "Put a call on hold"},
		{"resume", "Take a call off hold"},
		{"mute", "Toggle mute"},
		{"record", "Toggle recording"},
		{"end", "Hang up and start wrap-up"},
	} {
		cmd.AddCommand(newCallActionCmd(opts, action.name, action.short))
	}
	return cmd
}

func newCallStartCmd(opts *options) *cobra.Command {
	var agentID, contactID string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Place an outbound call to a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap types.CallSession
			body := map[string]string{"agentId": agentID, "contactId": contactID}
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/sessions", nil, body, &snap); err != nil {
				return err
			}
			return printSession(cmd, opts, snap)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id (defaults to the token's agent)")
	cmd.Flags().StringVar(&contactID, "contact", "", "contact id")
	cmd.MarkFlagRequired("contact")
	return cmd
}

func newCallIncomingCmd(opts *options) *cobra.Command {
	var agentID, phone, contactID string
	cmd := &cobra.Command{
		Use:   "incoming",
		Short: "Offer an inbound call to an agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap types.CallSession
			body := map[string]string{"agentId": agentID, "phone": phone, "contactId": contactID}
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/sessions/incoming", nil, body, &snap); err != nil {
				return err
			}
			return printSession(cmd, opts, snap)
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id (defaults to the token's agent)")
	cmd.Flags().StringVar(&phone, "phone", "", "caller number")
	cmd.Flags().StringVar(&contactID, "contact", "", "known contact id")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func newCallRouteCmd(opts *options) *cobra.Command {
	var phone, contactID string
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Offer an inbound call to the longest idle agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap types.CallSession
			body := map[string]string{"phone": phone, "contactId": contactID}
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/sessions/route", nil, body, &snap); err != nil {
				return err
			}
			return printSession(cmd, opts, snap)
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "caller number")
	cmd.Flags().StringVar(&contactID, "contact", "", "known contact id")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func newCallActionCmd(opts *options, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <session-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap types.CallSession
			path := "/api/sessions/" + args[0] + "/" + action
			if err := opts.client().Do(cmd.Context(), http.MethodPost, path, nil, nil, &snap); err != nil {
				return err
			}
			return printSession(cmd, opts, snap)
		},
	}
}

func newCallDeclineCmd(opts *options) *cobra.Command {
	var outcome string
	cmd := &cobra.Command{
		Use:   "decline <session-id>",
		Short: "Reject a ringing call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec types.CallRecord
			body := map[string]string{"outcome": outcome}
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/sessions/"+args[0]+"/decline", nil, body, &rec); err != nil {
				return err
			}
			return printRecord(cmd, opts, rec)
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", string(types.OutcomeNoAnswer), "no-answer, busy or voicemail")
	return cmd
}

func newCallWrapUpCmd(opts *options) *cobra.Command {
	var draft types.WrapUpDraft
	var outcome, disposition string
	cmd := &cobra.Command{
		Use:   "wrapup <session-id>",
		Short: "Complete wrap-up and close the call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Outcome = types.Outcome(outcome)
			draft.Disposition = types.Disposition(disposition)
			var rec types.CallRecord
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/sessions/"+args[0]+"/wrapup", nil, draft, &rec); err != nil {
				return err
			}
			return printRecord(cmd, opts, rec)
		},
	}
	cmd.Flags().StringVar(&outcome, "outcome", "", "call outcome")
	cmd.Flags().StringVar(&disposition, "disposition", "", "business disposition")
	cmd.Flags().StringVar(&draft.Category, "category", "", "free-form category")
	cmd.Flags().StringVar(&draft.Notes, "notes", "", "operator notes")
	cmd.Flags().BoolVar(&draft.FollowUp, "follow-up", false, "flag the contact for follow-up")
	cmd.MarkFlagRequired("outcome")
	cmd.MarkFlagRequired("disposition")
	return cmd
}

func newCallListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sessions []types.CallSession
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/sessions", nil, nil, &sessions); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), sessions)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tAGENT\tDIRECTION\tSTATE\tELAPSED\tCONTACT")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0fs\t%s\n", s.SessionID, s.AgentID, s.Direction, s.State, s.ElapsedSeconds, s.ContactName)
			}
			return w.Flush()
		},
	}
}

func newCallGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show one live session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap types.CallSession
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/sessions/"+args[0], nil, nil, &snap); err != nil {
				return err
			}
			return printSession(cmd, opts, snap)
		},
	}
}

func printSession(cmd *cobra.Command, opts *options, s types.CallSession) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), s)
	}
	printf(cmd.OutOrStdout(), "%s  %s  agent=%s  elapsed=%.0fs muted=%t recording=%t\n",
		s.SessionID, s.State, s.AgentID, s.ElapsedSeconds, s.IsMuted, s.IsRecording)
	return nil
}

func printRecord(cmd *cobra.Command, opts *options, r types.CallRecord) error {
	if opts.json {
		return printJSON(cmd.OutOrStdout(), r)
	}
	printf(cmd.OutOrStdout(), "%s  closed  outcome=%s disposition=%s duration=%ds\n",
		r.SessionID, r.Outcome, r.Disposition, r.Duration)
	return nil
}
