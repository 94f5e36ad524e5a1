package daemon_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"webmill/internal/api"
	"webmill/internal/daemon"
	"webmill/internal/jobs"
	"webmill/internal/services"
	"webmill/internal/testsupport"
)

const ffprobeScript = `#!/bin/sh
cat <<'EOF'
{"streams":[{"codec_type":"video","duration":"10.000000"}],"format":{"duration":"10.000000"}}
EOF
exit 0
`

const ffmpegScript = `#!/bin/sh
out=""
for arg in "$@"; do out="$arg"; done
printf 'frame=  100 fps=25.0 q=30.0 time=00:00:10.00 bitrate=1500.0kbits/s speed=1.0x\n' >&2
if [ "$out" != "-" ]; then printf 'webmdata' > "$out"; fi
exit 0
`

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *api.Client) {
	t.Helper()

	opts = append([]testsupport.ConfigOption{
		testsupport.WithScriptedBinaries(map[string]string{
			"ffprobe": ffprobeScript,
			"ffmpeg":  ffmpegScript,
		}),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return d, api.NewClient("http://" + d.Addr())
}

func writeUpload(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func waitForTerminal(t *testing.T, client *api.Client, id string) api.ProgressResponse {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		progress, err := client.Progress(context.Background(), id)
		if err != nil {
			t.Fatalf("Progress: %v", err)
		}
		if progress.Status == "completed" || progress.Status == "error" {
			return progress
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("conversion did not reach a terminal state in time")
	return api.ProgressResponse{}
}

func TestHealthEndpoint(t *testing.T) {
	_, client := startDaemon(t)

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Status != "healthy" {
		t.Fatalf("status = %q", health.Status)
	}
	if health.Version != daemon.Version {
		t.Fatalf("version = %q", health.Version)
	}
	if len(health.Config.SupportedFormats) == 0 {
		t.Fatal("supported formats missing")
	}
	if len(health.Config.Presets) != 3 {
		t.Fatalf("presets = %v", health.Config.Presets)
	}
}

func TestConvertRejectsMissingFile(t *testing.T) {
	d, _ := startDaemon(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("settings", "{}"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post("http://"+d.Addr()+"/api/convert", writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestConvertRejectsUnsupportedExtension(t *testing.T) {
	_, client := startDaemon(t)

	path := writeUpload(t, "notes.txt", 16)
	_, err := client.Submit(context.Background(), path, "")
	if err == nil {
		t.Fatal("expected unsupported extension rejection")
	}
}

func TestConvertCompletesAndDownloads(t *testing.T) {
	_, client := startDaemon(t)
	ctx := context.Background()

	path := writeUpload(t, "clip.mp4", 16)
	accepted, err := client.Submit(ctx, path, `{"preset":"web-standard"}`)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if accepted.ConversionID == "" {
		t.Fatal("missing conversion id")
	}

	progress := waitForTerminal(t, client, accepted.ConversionID)
	if progress.Status != "completed" {
		t.Fatalf("status = %q, error = %q", progress.Status, progress.Error)
	}
	if progress.Progress != 100 {
		t.Fatalf("progress = %v, want 100", progress.Progress)
	}
	if progress.InputSize != 16 || progress.OutputSize != 8 {
		t.Fatalf("sizes = %d/%d", progress.InputSize, progress.OutputSize)
	}
	if progress.CompressionRatio != 50 {
		t.Fatalf("compression ratio = %v", progress.CompressionRatio)
	}
	if progress.DownloadURL == "" {
		t.Fatal("missing download url")
	}

	var download bytes.Buffer
	filename, err := client.Download(ctx, accepted.ConversionID, &download)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if download.String() != "webmdata" {
		t.Fatalf("download content = %q", download.String())
	}
	if filepath.Ext(filename) != ".webm" {
		t.Fatalf("attachment filename = %q", filename)
	}
}

func TestConvertFailureSurfacesError(t *testing.T) {
	_, client := startDaemon(t, testsupport.WithScriptedBinaries(map[string]string{
		"ffprobe": ffprobeScript,
		"ffmpeg":  "#!/bin/sh\necho boom >&2\nexit 1\n",
	}))
	ctx := context.Background()

	path := writeUpload(t, "clip.mp4", 16)
	accepted, err := client.Submit(ctx, path, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	progress := waitForTerminal(t, client, accepted.ConversionID)
	if progress.Status != "error" {
		t.Fatalf("status = %q, want error", progress.Status)
	}
	if progress.Progress != 0 {
		t.Fatalf("progress = %v, want 0 after error", progress.Progress)
	}
	if progress.Error == "" {
		t.Fatal("missing error message")
	}

	// Failed conversions have nothing to download.
	var sink bytes.Buffer
	if _, err := client.Download(ctx, accepted.ConversionID, &sink); err == nil {
		t.Fatal("expected download of failed conversion to 404")
	}
}

func TestProgressUnknownIDReturnsNotFound(t *testing.T) {
	_, client := startDaemon(t)

	_, err := client.Progress(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("expected not found error")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error not tagged as not found: %v", err)
	}
}

func TestStatusAndJobsEndpoints(t *testing.T) {
	_, client := startDaemon(t)
	ctx := context.Background()

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("daemon should report running")
	}
	if status.PID <= 0 {
		t.Fatalf("pid = %d", status.PID)
	}

	path := writeUpload(t, "clip.mp4", 16)
	accepted, err := client.Submit(ctx, path, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, client, accepted.ConversionID)

	listing, err := client.Jobs(ctx)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(listing.Jobs) != 1 {
		t.Fatalf("jobs = %+v", listing.Jobs)
	}
	if listing.Jobs[0].ConversionID != accepted.ConversionID {
		t.Fatalf("listing id = %q", listing.Jobs[0].ConversionID)
	}
	if listing.Jobs[0].Filename != "clip.mp4" {
		t.Fatalf("listing filename = %q", listing.Jobs[0].Filename)
	}
}

func TestUploadRemovedAfterCompletion(t *testing.T) {
	d, client := startDaemon(t)
	ctx := context.Background()

	path := writeUpload(t, "clip.mp4", 16)
	accepted, err := client.Submit(ctx, path, "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, client, accepted.ConversionID)
	d.WaitForWorkers()

	job, err := d.Job(ctx, accepted.ConversionID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if _, err := os.Stat(job.InputPath); !os.IsNotExist(err) {
		t.Fatalf("staged upload still present at %s", job.InputPath)
	}
}

// gatedFFmpegScript records each invocation in $CONVERT_STARTED and blocks
// until $CONVERT_GATE exists, so tests can observe how many conversions run
// at once.
const gatedFFmpegScript = `#!/bin/sh
out=""
for arg in "$@"; do out="$arg"; done
mkdir -p "$CONVERT_STARTED"
touch "$CONVERT_STARTED/$$"
while [ ! -f "$CONVERT_GATE" ]; do sleep 0.05; done
if [ "$out" != "-" ]; then printf 'webmdata' > "$out"; fi
exit 0
`

func countStarted(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("read started dir: %v", err)
	}
	return len(entries)
}

func waitForStarted(t *testing.T, dir string, want int) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if countStarted(t, dir) >= want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("never saw %d started conversions", want)
}

func TestMaxConcurrentJobsCapsWorkers(t *testing.T) {
	base := t.TempDir()
	startedDir := filepath.Join(base, "started")
	gate := filepath.Join(base, "gate")
	t.Setenv("CONVERT_STARTED", startedDir)
	t.Setenv("CONVERT_GATE", gate)

	_, client := startDaemon(t,
		testsupport.WithMaxConcurrentJobs(1),
		testsupport.WithScriptedBinaries(map[string]string{
			"ffprobe": ffprobeScript,
			"ffmpeg":  gatedFFmpegScript,
		}),
	)
	ctx := context.Background()

	first, err := client.Submit(ctx, writeUpload(t, "one.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	second, err := client.Submit(ctx, writeUpload(t, "two.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}

	waitForStarted(t, startedDir, 1)
	// The second worker must stay queued while the first holds the slot.
	time.Sleep(250 * time.Millisecond)
	if n := countStarted(t, startedDir); n != 1 {
		t.Fatalf("started conversions = %d, want 1 while the slot is held", n)
	}

	if err := os.WriteFile(gate, nil, 0o644); err != nil {
		t.Fatalf("open gate: %v", err)
	}

	for _, accepted := range []api.ConvertResponse{first, second} {
		progress := waitForTerminal(t, client, accepted.ConversionID)
		if progress.Status != "completed" {
			t.Fatalf("status = %q, error = %q", progress.Status, progress.Error)
		}
	}
	if n := countStarted(t, startedDir); n != 2 {
		t.Fatalf("started conversions = %d, want 2 after the gate opened", n)
	}
}

func TestShutdownFailsQueuedJobs(t *testing.T) {
	base := t.TempDir()
	startedDir := filepath.Join(base, "started")
	t.Setenv("CONVERT_STARTED", startedDir)
	// The gate never opens; the running conversion only ends when the
	// daemon shuts down.
	t.Setenv("CONVERT_GATE", filepath.Join(base, "gate"))

	d, client := startDaemon(t,
		testsupport.WithMaxConcurrentJobs(1),
		testsupport.WithScriptedBinaries(map[string]string{
			"ffprobe": ffprobeScript,
			"ffmpeg":  gatedFFmpegScript,
		}),
	)
	ctx := context.Background()

	first, err := client.Submit(ctx, writeUpload(t, "one.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit first: %v", err)
	}
	second, err := client.Submit(ctx, writeUpload(t, "two.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit second: %v", err)
	}
	waitForStarted(t, startedDir, 1)

	d.Stop()

	shutdownMessages := 0
	for _, accepted := range []api.ConvertResponse{first, second} {
		job, err := d.Job(ctx, accepted.ConversionID)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		if job == nil || job.Status != jobs.StatusError {
			t.Fatalf("job %s not failed over on shutdown: %+v", accepted.ConversionID, job)
		}
		if job.ErrorMessage == "daemon shutting down" {
			shutdownMessages++
		}
	}
	if shutdownMessages != 1 {
		t.Fatalf("queued-job shutdown failures = %d, want 1", shutdownMessages)
	}
}

func TestClearCompletedRemovesRecordsAndOutputs(t *testing.T) {
	d, client := startDaemon(t)
	ctx := context.Background()

	accepted, err := client.Submit(ctx, writeUpload(t, "clip.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, client, accepted.ConversionID)
	d.WaitForWorkers()

	job, err := d.Job(ctx, accepted.ConversionID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}

	cleared, err := client.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if cleared.Removed != 1 {
		t.Fatalf("removed = %d, want 1", cleared.Removed)
	}

	listing, err := client.Jobs(ctx)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(listing.Jobs) != 0 {
		t.Fatalf("jobs after clear = %+v", listing.Jobs)
	}
	if _, err := os.Stat(job.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("output still present at %s", job.OutputPath)
	}
}

func TestRemoveConversion(t *testing.T) {
	d, client := startDaemon(t)
	ctx := context.Background()

	accepted, err := client.Submit(ctx, writeUpload(t, "clip.mp4", 16), "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForTerminal(t, client, accepted.ConversionID)
	d.WaitForWorkers()

	job, err := d.Job(ctx, accepted.ConversionID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}

	removed, err := client.Remove(ctx, accepted.ConversionID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.ConversionID != accepted.ConversionID {
		t.Fatalf("removed id = %q", removed.ConversionID)
	}

	if _, err := client.Progress(ctx, accepted.ConversionID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("progress after removal: %v", err)
	}
	if _, err := os.Stat(job.OutputPath); !os.IsNotExist(err) {
		t.Fatalf("output still present at %s", job.OutputPath)
	}
	if _, err := client.Remove(ctx, accepted.ConversionID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second removal: %v", err)
	}
}

func TestRemoveRefusesProcessingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	d, err := daemon.New(cfg, store, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	job := testsupport.NewJob(t, store, "clip.mp4",
		filepath.Join(cfg.Paths.UploadDir, "clip.mp4"),
		filepath.Join(cfg.Paths.OutputDir, "clip.webm"),
	)
	if _, err := d.RemoveJob(context.Background(), job.ID); !errors.Is(err, daemon.ErrJobProcessing) {
		t.Fatalf("RemoveJob error = %v, want ErrJobProcessing", err)
	}
}
