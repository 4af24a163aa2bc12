package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/daemon"
	"github.com/zero-day-ai/conductor/internal/types"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <thread-id>",
	Short: "Cancel a running or suspended workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemonAddress())

	if err := client.Cancel(cmd.Context(), types.ID(args[0])); err != nil {
		return err
	}
	color.Yellow("cancellation requested")
	return nil
}
