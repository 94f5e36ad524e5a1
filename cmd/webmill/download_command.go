package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDownloadCommand(cmdCtx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:   "download <conversion-id>",
		Short: "Download a completed conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cmdCtx.client()

			target := outputFlag
			if target == "" {
				progress, err := client.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if progress.Filename == "" {
					return fmt.Errorf("conversion %s has no output yet", args[0])
				}
				target = progress.Filename
			}

			file, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			defer file.Close()

			if _, err := client.Download(cmd.Context(), args[0], file); err != nil {
				_ = os.Remove(target)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Destination path (defaults to the converted filename)")
	return cmd
}
