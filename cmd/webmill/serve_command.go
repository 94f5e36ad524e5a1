package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"webmill/internal/daemonrun"
)

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var configPath string
			if cmdCtx.configFlag != nil {
				configPath = strings.TrimSpace(*cmdCtx.configFlag)
			}
			return daemonrun.Run(ctx, configPath)
		},
	}
}
