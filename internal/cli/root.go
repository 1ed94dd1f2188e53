package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	server string
	token  string
	json   bool
}

func (o *options) client() *Client {
	return NewClient(o.server, o.token)
}

// NewRootCmd builds the consolectl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "consolectl",
		Short:         "Operate the softphone engine from the terminal",
		Long:          `Place and control calls, manage agent status and read call records through the engine's REST API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("SOFTPHONE_URL", "http://localhost:8080"), "engine base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("SOFTPHONE_TOKEN"), "bearer token")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	root.AddCommand(
		newCallCmd(opts),
		newAgentCmd(opts),
		newRecordsCmd(opts),
		newAnalyticsCmd(opts),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, format, args...)
}
