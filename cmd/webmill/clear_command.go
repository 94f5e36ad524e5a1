package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed conversions and their output files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cleared, err := cmdCtx.client().ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed conversions\n", cleared.Removed)
			return nil
		},
	}
}

func newRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <conversion-id>",
		Short: "Remove one conversion and its output file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := cmdCtx.client().Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), removed.Message)
			return nil
		},
	}
}
