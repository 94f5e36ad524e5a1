package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"webmill/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(cmdCtx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Listen address:      %s\n", cfg.Bind())
			fmt.Fprintf(out, "Base URL:            %s\n", cfg.Server.BaseURL)
			fmt.Fprintf(out, "Upload directory:    %s\n", cfg.Paths.UploadDir)
			fmt.Fprintf(out, "Output directory:    %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "Log directory:       %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "ffmpeg binary:       %s\n", cfg.FFmpegBinary())
			fmt.Fprintf(out, "ffprobe binary:      %s\n", cfg.FFprobeBinary())
			fmt.Fprintf(out, "Supported formats:   %s\n", strings.Join(cfg.Conversion.SupportedFormats, ", "))
			fmt.Fprintf(out, "Default preset:      %s\n", cfg.Conversion.DefaultPreset)
			fmt.Fprintf(out, "Presets:             %s\n", strings.Join(cfg.PresetNames(), ", "))
			fmt.Fprintf(out, "Max concurrent jobs: %d\n", cfg.Conversion.MaxConcurrentJobs)
			fmt.Fprintf(out, "Logging:             %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}
