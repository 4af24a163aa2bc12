package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/conductor/internal/daemon"
	"github.com/zero-day-ai/conductor/internal/engine"
	"github.com/zero-day-ai/conductor/internal/types"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [thread-id]",
	Short: "Show workflow status, or daemon health without arguments",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := daemon.NewClient(daemonAddress())

	if len(args) == 0 {
		health, err := client.Health(cmd.Context())
		if err != nil {
			return err
		}
		if statusJSON {
			return json.NewEncoder(os.Stdout).Encode(health)
		}
		color.Green("daemon: %s", health.Status)
		if health.Busy {
			color.Yellow("a workflow is currently running")
		} else {
			fmt.Println("idle")
		}
		return nil
	}

	report, err := client.Status(cmd.Context(), types.ID(args[0]))
	if err != nil {
		return err
	}
	if statusJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	printReport(report)
	return nil
}

func printReport(report *engine.StatusReport) {
	fmt.Printf("thread:  %s\n", report.ThreadID)
	fmt.Printf("status:  %s\n", colorStatus(report.Status))
	if report.Node != "" {
		fmt.Printf("node:    %s\n", report.Node)
	}
	if report.Summary != "" {
		fmt.Printf("summary: %s\n", report.Summary)
	}
	if report.Error != "" {
		fmt.Printf("error:   %s\n", color.RedString(report.Error))
	}
	for _, warning := range report.Warnings {
		fmt.Printf("warning: %s\n", color.YellowString(warning))
	}

	if report.Interrupt != nil {
		fmt.Println()
		color.Yellow("awaiting approval: %s (%s risk)", report.Interrupt.Action, report.Interrupt.Risk)
		fmt.Println(report.Interrupt.Description)
		for _, question := range report.Interrupt.Questions {
			fmt.Printf("  - %s\n", question)
		}
		fmt.Printf("\nanswer with: conductor approve %s [--reject] [--reason ...]\n", report.ThreadID)
	}
}

func colorStatus(status types.WorkflowStatus) string {
	switch status {
	case types.WorkflowStatusDone:
		return color.GreenString(status.String())
	case types.WorkflowStatusError:
		return color.RedString(status.String())
	case types.WorkflowStatusInterrupted:
		return color.YellowString(status.String())
	case types.WorkflowStatusCancelled:
		return color.HiBlackString(status.String())
	default:
		return color.CyanString(status.String())
	}
}
