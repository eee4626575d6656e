// Command console runs the operator call console.
//
//	console serve                 start polling and the local HTTP surface
//	console calls                 print active and incoming calls once
//	console call +15551234567     place an outbound call
//	console book --name ... --at 2026-01-02T15:04
//	console book list
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Root context that cancels on shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Operator console for the call service",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(
		buildServeCmd(),
		buildCallsCmd(),
		buildCallCmd(),
		buildBookCmd(),
	)
	return root
}
