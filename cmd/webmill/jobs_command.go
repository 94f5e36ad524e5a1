package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newJobsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List conversion jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := cmdCtx.client().Jobs(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(listing.Jobs) == 0 {
				fmt.Fprintln(out, "No conversion jobs.")
				return nil
			}

			rows := make([][]string, 0, len(listing.Jobs))
			for _, job := range listing.Jobs {
				size := ""
				if job.OutputSize > 0 {
					size = humanize.IBytes(uint64(job.OutputSize))
				}
				detail := job.Error
				if job.Status == "completed" {
					detail = fmt.Sprintf("%.1f%% smaller", job.CompressionRatio)
				}
				rows = append(rows, []string{
					job.ConversionID,
					job.Filename,
					job.Status,
					fmt.Sprintf("%.1f%%", job.Progress),
					size,
					detail,
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "File", "Status", "Progress", "Output", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
