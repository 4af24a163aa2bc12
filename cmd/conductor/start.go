package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/daemon"
	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/types"
)

var (
	startTenant     string
	startWorkspace  string
	startMode       string
	startAutoPush   bool
	startConversion string
)

var startCmd = &cobra.Command{
	Use:   "start [request text]",
	Short: "Submit a workflow request",
	Long: `Submit a request to the daemon. The request is accepted or
rejected immediately; use 'conductor status' to follow progress.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startTenant, "tenant", "", "Tenant id (required)")
	startCmd.Flags().StringVar(&startWorkspace, "workspace", "", "Workspace id")
	startCmd.Flags().StringVar(&startMode, "mode", "steps", "Execution mode: steps or delegation")
	startCmd.Flags().BoolVar(&startAutoPush, "auto-push", false, "Skip the push approval gate")
	startCmd.Flags().StringVar(&startConversion, "conversation", "", "Prior conversation context")
	_ = startCmd.MarkFlagRequired("tenant")
}

func runStart(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemonAddress())

	resp, err := client.Start(cmd.Context(), engine.WorkflowRequest{
		Text:         strings.Join(args, " "),
		TenantID:     types.ID(startTenant),
		WorkspaceID:  types.ID(startWorkspace),
		Conversation: startConversion,
		Mode:         engine.Mode(startMode),
		AutoPush:     startAutoPush,
	})
	if err != nil {
		return err
	}

	color.Green("workflow accepted")
	fmt.Printf("thread id: %s\n", resp.ThreadID)
	if resp.PollInterval > 0 {
		fmt.Printf("suggested poll interval: %s\n", resp.PollInterval)
	}
	return nil
}
