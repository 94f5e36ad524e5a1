package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := cmdCtx.client().Status(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:    %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:        %d\n", status.PID)
			fmt.Fprintf(out, "Uptime:     %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
			fmt.Fprintf(out, "Jobs:       %d total, %d processing, %d completed, %d errored\n",
				status.Jobs.Total, status.Jobs.Processing, status.Jobs.Completed, status.Jobs.Errored)
			fmt.Fprintf(out, "Job DB:     %s\n", status.JobDBPath)
			fmt.Fprintf(out, "Lock file:  %s\n", status.LockFilePath)
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
