package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"stitch/internal/api"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.StatusResponse
			if err := ctx.getJSON("/api/status", &status); err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			headline := "Stitch Daemon"
			if shouldColorize(out) {
				headline = ansiBlue + headline + ansiReset
			}
			fmt.Fprintln(out, headline)
			fmt.Fprintf(out, "Running:  %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:      %d\n", status.PID)
			fmt.Fprintf(out, "Workers:  %d\n", status.Workers)
			if status.QueueDB != "" {
				fmt.Fprintf(out, "Queue DB: %s\n", status.QueueDB)
			}
			if status.LockFile != "" {
				fmt.Fprintf(out, "Lock:     %s\n", status.LockFile)
			}

			rows := buildQueueStatsRows(status.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func buildQueueStatsRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count == 0 {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{key, fmt.Sprintf("%d", stats[key])})
	}
	return rows
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
