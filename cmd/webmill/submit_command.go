package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSubmitCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		preset     string
		quality    int
		bitrate    int
		resolution string
		frameRate  int
		twoPass    bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Upload a video for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := map[string]any{}
			flags := cmd.Flags()
			if flags.Changed("preset") {
				settings["preset"] = preset
			}
			if flags.Changed("quality") {
				settings["quality"] = quality
			}
			if flags.Changed("bitrate") {
				settings["bitrate"] = bitrate
			}
			if flags.Changed("resolution") {
				settings["resolution"] = resolution
			}
			if flags.Changed("frame-rate") {
				settings["frameRate"] = frameRate
			}
			if flags.Changed("two-pass") {
				settings["twoPass"] = twoPass
			}

			settingsJSON := ""
			if len(settings) > 0 {
				encoded, err := json.Marshal(settings)
				if err != nil {
					return fmt.Errorf("encode settings: %w", err)
				}
				settingsJSON = string(encoded)
			}

			client := cmdCtx.client()
			accepted, err := client.Submit(cmd.Context(), args[0], settingsJSON)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversion started: %s\n", accepted.ConversionID)

			if !watch {
				return nil
			}

			for {
				progress, err := client.Progress(cmd.Context(), accepted.ConversionID)
				if err != nil {
					return err
				}
				switch progress.Status {
				case "completed":
					fmt.Fprintf(out, "\rCompleted: %.1f%% smaller, download with `webmill download %s`\n",
						progress.CompressionRatio, accepted.ConversionID)
					return nil
				case "error":
					fmt.Fprintln(out)
					return fmt.Errorf("conversion failed: %s", progress.Error)
				default:
					fmt.Fprintf(out, "\r%5.1f%%  time=%s fps=%.1f speed=%s eta=%s",
						progress.Progress, progress.Time, progress.FPS, progress.Speed, progress.ETA)
				}

				select {
				case <-cmd.Context().Done():
					fmt.Fprintln(out)
					return cmd.Context().Err()
				case <-time.After(time.Second):
				}
			}
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Preset name (web-standard, high-quality, max-compression, custom)")
	cmd.Flags().IntVar(&quality, "quality", 0, "CRF quality value")
	cmd.Flags().IntVar(&bitrate, "bitrate", 0, "Target bitrate in kbit/s")
	cmd.Flags().StringVar(&resolution, "resolution", "", "Output resolution (original, 1920x1080, 1280x720, 854x480)")
	cmd.Flags().IntVar(&frameRate, "frame-rate", 0, "Output frame rate")
	cmd.Flags().BoolVar(&twoPass, "two-pass", false, "Use two-pass encoding")
	cmd.Flags().BoolVar(&watch, "watch", false, "Poll progress until the conversion finishes")

	return cmd
}
