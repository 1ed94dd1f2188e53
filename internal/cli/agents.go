package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/spf13/cobra"
)

func newAgentCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Inspect and manage agents",
	}
	cmd.AddCommand(
		newAgentListCmd(opts),
		newAgentStatusCmd(opts),
		newAgentRegisterCmd(opts),
		newAgentDeactivateCmd(opts),
	)
	return cmd
}

func newAgentListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agents and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var agents []types.Agent
			if err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/agents", nil, nil, &agents); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), agents)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tNAME\tSTATUS\tSINCE\tCALLS\tSESSION")
			for _, a := range agents {
				status := string(a.Status)
				if a.PendingStatus != "" {
					status += " -> " + string(a.PendingStatus)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					a.AgentID, a.DisplayName, status, a.StatusSince.Format(time.Kitchen), a.TotalCalls, a.CurrentSessionID)
			}
			return w.Flush()
		},
	}
}

func newAgentStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status <agent-id> <available|break|offline>",
		Short: "Request a status change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Agent  types.Agent `json:"agent"`
				Queued bool        `json:"queued"`
			}
			body := map[string]string{"status": args[1]}
			if err := opts.client().Do(cmd.Context(), http.MethodPut, "/api/agents/"+url.PathEscape(args[0])+"/status", nil, body, &resp); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if resp.Queued {
				printf(cmd.OutOrStdout(), "%s is in a call; %s queued\n", resp.Agent.AgentID, resp.Agent.PendingStatus)
				return nil
			}
			printf(cmd.OutOrStdout(), "%s is now %s\n", resp.Agent.AgentID, resp.Agent.Status)
			return nil
		},
	}
}

func newAgentRegisterCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "register <agent-id> [display-name]",
		Short: "Register or reactivate an agent",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := types.RosterEntry{AgentID: args[0]}
			if len(args) == 2 {
				entry.DisplayName = args[1]
			}
			var resp map[string]int
			if err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/agents", nil, []types.RosterEntry{entry}, &resp); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "registered %d agent(s)\n", resp["registered"])
			return nil
		},
	}
}

func newAgentDeactivateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <agent-id>",
		Short: "Take an agent offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var agent types.Agent
			if err := opts.client().Do(cmd.Context(), http.MethodDelete, "/api/agents/"+url.PathEscape(args[0]), nil, nil, &agent); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), agent)
			}
			printf(cmd.OutOrStdout(), "%s deactivated (status %s)\n", agent.AgentID, agent.Status)
			return nil
		},
	}
}
