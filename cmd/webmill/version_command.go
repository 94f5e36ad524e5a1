package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"webmill/internal/daemon"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the webmill version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "webmill %s\n", daemon.Version)
		},
	}
}
