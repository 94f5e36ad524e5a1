package convert

import (
	"context"
	"log/slog"

	"webmill/internal/logging"
	"webmill/internal/media/ffprobe"
)

// fallbackDurationSeconds is assumed when every probe strategy fails. The
// conversion still runs; only the progress mapping degrades.
const fallbackDurationSeconds = 60.0

// ProbeDuration determines the input duration in seconds. It prefers the
// per-stream duration from a JSON inspection, then the container duration,
// then a minimal plain-text probe. When everything fails it logs a warning
// and returns the fallback.
func ProbeDuration(ctx context.Context, binary, path string, logger *slog.Logger) float64 {
	if logger == nil {
		logger = logging.NewNop()
	}

	result, err := ffprobe.Inspect(ctx, binary, path)
	if err == nil {
		if duration := result.StreamDurationSeconds(); duration > 0 {
			return duration
		}
		if duration := result.DurationSeconds(); duration > 0 {
			return duration
		}
	}

	if duration, quickErr := ffprobe.QuickDuration(ctx, binary, path); quickErr == nil && duration > 0 {
		return duration
	}

	logger.Warn("could not probe input duration, assuming fallback",
		logging.Args(
			logging.String("input", path),
			logging.Float64("fallback_seconds", fallbackDurationSeconds),
		)...)
	return fallbackDurationSeconds
}
