package convert

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"webmill/internal/services"
)

var commandContext = exec.CommandContext

// ProgressFunc receives each parsed snapshot together with the overall job
// progress percentage.
type ProgressFunc func(Snapshot, float64)

// passWindow bounds the overall progress contributed by one encoder pass.
type passWindow struct {
	lo float64
	hi float64
}

// runPass launches the encoder with the given arguments and streams its
// diagnostics. Each progress-bearing line is mapped into the pass window and
// reported through onProgress. Success is exit code 0.
func runPass(ctx context.Context, binary string, args []string, durationSeconds float64, window passWindow, onProgress ProgressFunc) error {
	cmd := commandContext(ctx, binary, args...)
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "convert", "start ffmpeg", "", err)
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		snapshot, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}

		fraction := 0.0
		if seconds, parsed := TimeToSeconds(snapshot.Time); parsed && durationSeconds > 0 {
			fraction = seconds / durationSeconds
			snapshot.ETA = ComputeETA(durationSeconds, seconds, snapshot.Speed)
		}
		percent := MapProgress(window.lo, window.hi, fraction)

		if onProgress != nil {
			onProgress(snapshot, percent)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return services.Wrap(services.ErrExternalTool, "convert", "ffmpeg", "", err)
	}
	return nil
}

// scanCRLF splits on either carriage returns or newlines. Mid-encode the
// encoder rewrites its status line with bare CRs, so a plain line scanner
// would see no progress until the process exits.
func scanCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
