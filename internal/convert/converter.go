package convert

import (
	"context"
	"log/slog"
	"path/filepath"

	"webmill/internal/config"
	"webmill/internal/fileutil"
	"webmill/internal/logging"
	"webmill/internal/services"
)

// Request describes one conversion to run.
type Request struct {
	ID         string
	InputPath  string
	OutputPath string
	Settings   Settings
}

// Result carries the measurements of a finished conversion.
type Result struct {
	InputSize        int64
	OutputSize       int64
	CompressionRatio float64
}

// Converter runs ffmpeg conversions according to resolved settings.
type Converter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs a Converter.
func New(cfg *config.Config, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Converter{cfg: cfg, logger: logging.WithComponent(logger, "convert")}
}

// Convert probes the input, runs one or two encoder passes, and verifies the
// output. Progress callbacks fire for every progress-bearing encoder line.
func (c *Converter) Convert(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error) {
	durationSeconds := ProbeDuration(ctx, c.cfg.FFprobeBinary(), req.InputPath, c.logger)
	if durationSeconds <= 0 {
		return Result{}, services.Wrap(services.ErrExternalTool, "convert", "probe", "could not determine duration", nil)
	}

	binary := c.cfg.FFmpegBinary()
	settings := req.Settings

	c.logger.Info("starting conversion",
		logging.Args(
			logging.String("conversion_id", req.ID),
			logging.String("input", req.InputPath),
			logging.String("output", req.OutputPath),
			logging.Float64("duration_seconds", durationSeconds),
			logging.Bool("two_pass", settings.TwoPass),
		)...)

	if settings.TwoPass {
		passLogPrefix := filepath.Join(filepath.Dir(req.OutputPath), req.ID+".ffmpeg2pass")
		defer cleanupPassLogs(passLogPrefix)

		if err := runPass(ctx, binary, FirstPassArgs(req.InputPath, passLogPrefix, settings), durationSeconds, passWindow{lo: 0, hi: 50}, onProgress); err != nil {
			return Result{}, err
		}
		if err := runPass(ctx, binary, SecondPassArgs(req.InputPath, req.OutputPath, passLogPrefix, settings), durationSeconds, passWindow{lo: 50, hi: 100}, onProgress); err != nil {
			return Result{}, err
		}
	} else {
		if err := runPass(ctx, binary, SinglePassArgs(req.InputPath, req.OutputPath, settings), durationSeconds, passWindow{lo: 0, hi: 100}, onProgress); err != nil {
			return Result{}, err
		}
	}

	// A clean exit without an output file is still a failure.
	if !fileutil.Exists(req.OutputPath) {
		return Result{}, services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", "no output file produced", nil)
	}

	inputSize, err := fileutil.Size(req.InputPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInternal, "convert", "stat input", "", err)
	}
	outputSize, err := fileutil.Size(req.OutputPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInternal, "convert", "stat output", "", err)
	}

	result := Result{
		InputSize:        inputSize,
		OutputSize:       outputSize,
		CompressionRatio: compressionRatio(inputSize, outputSize),
	}

	c.logger.Info("conversion finished",
		logging.Args(
			logging.String("conversion_id", req.ID),
			logging.Int64("input_size", result.InputSize),
			logging.Int64("output_size", result.OutputSize),
			logging.Float64("compression_ratio", result.CompressionRatio),
		)...)

	return result, nil
}

// compressionRatio reports the size reduction as a percentage. It goes
// negative when the output is larger than the input.
func compressionRatio(inputSize, outputSize int64) float64 {
	if inputSize <= 0 {
		return 0
	}
	return (1 - float64(outputSize)/float64(inputSize)) * 100
}

func cleanupPassLogs(prefix string) {
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		return
	}
	for _, match := range matches {
		_ = fileutil.RemoveIfExists(match)
	}
}
