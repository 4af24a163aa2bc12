package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/daemon"
	"github.com/zero-day-ai/conductor/internal/types"
)

var (
	approveReject bool
	approveReason string
)

var approveCmd = &cobra.Command{
	Use:   "approve <thread-id>",
	Short: "Answer a pending approval gate",
	Long: `Answer the pending approval of an interrupted workflow. For a
clarification gate, pass the answer via --reason.`,
	Args: cobra.ExactArgs(1),
	RunE: runApprove,
}

func init() {
	approveCmd.Flags().BoolVar(&approveReject, "reject", false, "Reject instead of approving")
	approveCmd.Flags().StringVar(&approveReason, "reason", "", "Reason or clarification answer")
}

func runApprove(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemonAddress())

	err := client.Approve(cmd.Context(), types.ID(args[0]), !approveReject, approveReason)
	if err != nil {
		return err
	}

	if approveReject {
		color.Yellow("rejected; the workflow will proceed accordingly")
	} else {
		color.Green("approved; the workflow is resuming")
	}
	return nil
}
