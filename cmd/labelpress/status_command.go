package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"labelpress/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp *ipc.StatusResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var err error
				resp, err = client.Status()
				return err
			})
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("State", stateKind(resp.State), resp.State, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Transport", statusInfo, resp.TransportAddr, colorize))
			fmt.Fprintln(stdout, renderStatusLine("PID", statusInfo, strconv.Itoa(resp.PID), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Printing", statusInfo, yesNo(resp.PrintEnabled), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Pipeline", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Queued", statusInfo, strconv.Itoa(resp.QueueDepth), colorize))
			fmt.Fprintln(stdout, renderStatusLine("In flight", statusInfo, strconv.Itoa(resp.InFlight), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Succeeded", okWhenZero(resp.Succeeded, statusOK), strconv.Itoa(resp.Succeeded), colorize))
			failedKind := statusOK
			if resp.Failed > 0 {
				failedKind = statusWarn
			}
			fmt.Fprintln(stdout, renderStatusLine("Failed", failedKind, strconv.Itoa(resp.Failed), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Journal", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Recorded", statusInfo, strconv.Itoa(resp.JournalTotal), colorize))
			abandonedKind := statusOK
			if resp.Abandoned > 0 {
				abandonedKind = statusWarn
			}
			fmt.Fprintln(stdout, renderStatusLine("Abandoned", abandonedKind, strconv.Itoa(resp.Abandoned), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, resp.JournalPath, colorize))
			return nil
		},
	}
}

func stateKind(state string) statusKind {
	switch state {
	case "running":
		return statusOK
	case "draining":
		return statusWarn
	case "stopped":
		return statusError
	default:
		return statusInfo
	}
}

func okWhenZero(count int, nonZero statusKind) statusKind {
	if count == 0 {
		return statusInfo
	}
	return nonZero
}
