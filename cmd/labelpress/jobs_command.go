package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"labelpress/internal/ipc"
	"labelpress/internal/journal"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recorded label jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp *ipc.JobsResponse
			err := ctx.withClient(func(client *ipc.Client) error {
				var err error
				resp, err = client.Jobs(ipc.JobsRequest{Statuses: statuses, Limit: limit})
				return err
			})
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(stdout, "No jobs recorded")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					journal.DisplayTitle(job.SourceFile),
					strconv.Itoa(job.Page),
					job.Status,
					jobDetail(job),
					formatDuration(job.DurationMS),
				})
			}
			fmt.Fprintln(stdout, renderTable(
				[]tableColumn{
					{Title: "ID", Numeric: true},
					{Title: "Document"},
					{Title: "Page", Numeric: true},
					{Title: "Status"},
					{Title: "Detail"},
					{Title: "Duration", Numeric: true},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs to list")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (succeeded, failed, abandoned)")
	return cmd
}

func jobDetail(job ipc.Job) string {
	if job.Error != "" {
		detail := job.Error
		if job.Stage != "" {
			detail = job.Stage + ": " + detail
		}
		return detail
	}
	if job.OutputPath != "" {
		return filepath.Base(job.OutputPath)
	}
	return ""
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}
