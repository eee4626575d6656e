package main

import (
	"os"
	"time"

	"call-console/internal/config"

	"github.com/spf13/cobra"
)

// backendFlags are shared by the one-shot commands, which need no other config.
type backendFlags struct {
	baseURL string
	timeout time.Duration
}

func (f *backendFlags) bind(cmd *cobra.Command) {
	def := os.Getenv("BACKEND_BASE_URL")
	if def == "" {
		def = config.DefaultBackendBaseURL
	}
	cmd.Flags().StringVar(&f.baseURL, "backend", def, "Remote call service base URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", config.DefaultBackendTimeout, "Per-request timeout")
}

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the call service and serve the console HTTP surface",
		Long: `Start the operator console.

Configuration comes from the environment (APP_ENV, APP_PORT, BACKEND_BASE_URL,
POLL_INTERVAL, TRANSCRIPT_POLL_INTERVAL, ...). Setting DB_HOST enables the
Postgres audit trail; setting REDIS_HOST publishes notifications to Redis.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func buildCallsCmd() *cobra.Command {
	var (
		flags  backendFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Print the active and incoming calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalls(cmd.Context(), cmd.OutOrStdout(), flags, asJSON)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func buildCallCmd() *cobra.Command {
	var (
		flags   backendFlags
		message string
	)
	cmd := &cobra.Command{
		Use:   "call <phone-number>",
		Short: "Place an outbound call",
		Example: `  console call 5551234567
  console call +15551234567 --message "Your appointment is tomorrow"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), cmd.OutOrStdout(), flags, args[0], message)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message spoken when the call connects")
	return cmd
}

func buildBookCmd() *cobra.Command {
	var (
		flags   backendFlags
		name    string
		at      string
		purpose string
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		Example: `  console book --name "Ada Lovelace" --at 2026-11-02T10:30 --purpose "consultation"
  console book list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBook(cmd.Context(), cmd.OutOrStdout(), flags, name, at, purpose)
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Client name")
	cmd.Flags().StringVar(&at, "at", "", "Local date and time, e.g. 2026-11-02T10:30")
	cmd.Flags().StringVar(&purpose, "purpose", "", "Purpose of the visit")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("at")

	cmd.AddCommand(buildBookListCmd())
	return cmd
}

func buildBookListCmd() *cobra.Command {
	var flags backendFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List booked appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBookList(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	flags.bind(cmd)
	return cmd
}
