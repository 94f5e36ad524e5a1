// Package daemon hosts the webmill HTTP API and the conversion workers
// behind it, enforcing single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"webmill/internal/config"
	"webmill/internal/convert"
	"webmill/internal/fileutil"
	"webmill/internal/jobs"
	"webmill/internal/logging"
)

// Version is the daemon version reported by the health endpoint.
const Version = "1.0.0"

// progressPersistInterval throttles how often live progress snapshots are
// written back to the job store.
const progressPersistInterval = 2 * time.Second

// ErrJobProcessing rejects removal of a job whose worker is still running.
var ErrJobProcessing = errors.New("job still processing")

// Daemon coordinates conversion workers and the HTTP API.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	converter *convert.Converter

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc

	api *apiServer

	workers sync.WaitGroup
	slots   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	UptimeSeconds float64
	Jobs          jobs.HealthSummary
	JobDBPath     string
	LockFilePath  string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "webmilld.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		converter: convert.New(cfg, logger),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	if limit := cfg.Conversion.MaxConcurrentJobs; limit > 0 {
		d.slots = make(chan struct{}, limit)
	}

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the daemon lock, fails over stale job records, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another webmill daemon instance is already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	// Conversions do not survive restarts; their records must not claim to
	// still be in flight.
	if stale, err := d.store.MarkStaleProcessing(ctx, "daemon restarted during conversion"); err != nil {
		d.logger.Warn("failed to fail over stale jobs", logging.Error(err))
	} else if stale > 0 {
		d.logger.Info("failed over stale jobs", logging.Int64("count", stale))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("webmill daemon started",
		logging.Args(
			logging.String("lock", d.lockPath),
			logging.String("address", d.Addr()),
		)...)
	return nil
}

// Stop shuts down the HTTP API, waits for in-flight workers, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.workers.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("webmill daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the address the HTTP API is listening on, or empty when not
// started.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("job health query failed", logging.Error(err))
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Jobs:         health,
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		status.UptimeSeconds = time.Since(d.startedAt).Seconds()
	}
	return status
}

// Accept stages an uploaded file, registers the job, and spawns its worker.
func (d *Daemon) Accept(ctx context.Context, filename string, content io.Reader, settings convert.Settings, settingsJSON string) (*jobs.Job, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, errors.New("no file selected")
	}

	id := uuid.NewString()
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	if stem == "" {
		stem = filename
	}

	inputPath := filepath.Join(d.cfg.Paths.UploadDir, id+"_"+filename)
	outputPath := filepath.Join(d.cfg.Paths.OutputDir, id+"_"+stem+".webm")

	if err := saveUpload(inputPath, content); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	job, err := d.store.NewJob(ctx, id, filename, inputPath, outputPath, settingsJSON)
	if err != nil {
		_ = fileutil.RemoveIfExists(inputPath)
		return nil, err
	}

	d.spawnWorker(job, settings)
	return job, nil
}

func (d *Daemon) spawnWorker(job *jobs.Job, settings convert.Settings) {
	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		if d.slots != nil {
			select {
			case d.slots <- struct{}{}:
			case <-ctx.Done():
				d.failJob(job, "daemon shutting down")
				return
			}
			defer func() { <-d.slots }()
		}
		d.runJob(ctx, job, settings)
	}()
}

func (d *Daemon) runJob(ctx context.Context, job *jobs.Job, settings convert.Settings) {
	logger := logging.WithComponent(d.logger, "worker")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("conversion worker panicked",
				logging.Args(
					logging.String("conversion_id", job.ID),
					logging.Any("panic", r),
				)...)
			d.failJob(job, fmt.Sprintf("internal error: %v", r))
		}
	}()

	var lastPersist time.Time
	result, err := d.converter.Convert(ctx, convert.Request{
		ID:         job.ID,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Settings:   settings,
	}, func(snapshot convert.Snapshot, percent float64) {
		job.SetProgress(percent, snapshot.Time, snapshot.FPS, snapshot.Speed, snapshot.ETA, snapshot.Bitrate)
		if time.Since(lastPersist) < progressPersistInterval {
			return
		}
		lastPersist = time.Now()
		if updateErr := d.store.Update(ctx, job); updateErr != nil {
			logger.Warn("persist progress failed",
				logging.Args(
					logging.String("conversion_id", job.ID),
					logging.Error(updateErr),
				)...)
		}
	})

	if err != nil {
		logger.Error("conversion failed",
			logging.Args(
				logging.String("conversion_id", job.ID),
				logging.Error(err),
			)...)
		d.failJob(job, err.Error())
	} else {
		job.SetCompleted(result.InputSize, result.OutputSize, result.CompressionRatio)
		if updateErr := d.store.Update(context.Background(), job); updateErr != nil {
			logger.Error("persist completion failed",
				logging.Args(
					logging.String("conversion_id", job.ID),
					logging.Error(updateErr),
				)...)
		}
	}

	// The staged upload is only needed while the conversion runs.
	if removeErr := fileutil.RemoveIfExists(job.InputPath); removeErr != nil {
		logger.Warn("remove upload failed",
			logging.Args(
				logging.String("conversion_id", job.ID),
				logging.Error(removeErr),
			)...)
	}
}

func (d *Daemon) failJob(job *jobs.Job, message string) {
	job.SetError(message)
	if err := d.store.Update(context.Background(), job); err != nil {
		d.logger.Error("persist job failure failed",
			logging.Args(
				logging.String("conversion_id", job.ID),
				logging.Error(err),
			)...)
	}
}

// WaitForWorkers blocks until every in-flight conversion finished.
func (d *Daemon) WaitForWorkers() {
	d.workers.Wait()
}

// Jobs lists jobs filtered by optional statuses.
func (d *Daemon) Jobs(ctx context.Context, statuses ...jobs.Status) ([]*jobs.Job, error) {
	return d.store.List(ctx, statuses...)
}

// Job fetches one job by conversion id.
func (d *Daemon) Job(ctx context.Context, id string) (*jobs.Job, error) {
	return d.store.GetByID(ctx, id)
}

// ClearCompleted removes completed jobs from the registry along with their
// output files.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	completed, err := d.store.List(ctx, jobs.StatusCompleted)
	if err != nil {
		return 0, err
	}
	removed, err := d.store.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range completed {
		if removeErr := fileutil.RemoveIfExists(job.OutputPath); removeErr != nil {
			d.logger.Warn("remove output failed",
				logging.Args(
					logging.String("conversion_id", job.ID),
					logging.Error(removeErr),
				)...)
		}
	}
	return removed, nil
}

// RemoveJob deletes one job record and its output file. A job whose worker
// may still be writing the output cannot be removed.
func (d *Daemon) RemoveJob(ctx context.Context, id string) (bool, error) {
	job, err := d.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	if job.Status == jobs.StatusProcessing {
		return false, fmt.Errorf("%w: conversion %s is still processing", ErrJobProcessing, id)
	}

	removed, err := d.store.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		if removeErr := fileutil.RemoveIfExists(job.OutputPath); removeErr != nil {
			d.logger.Warn("remove output failed",
				logging.Args(
					logging.String("conversion_id", job.ID),
					logging.Error(removeErr),
				)...)
		}
	}
	return removed, nil
}

func saveUpload(path string, content io.Reader) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, content); err != nil {
		_ = file.Close()
		_ = fileutil.RemoveIfExists(path)
		return err
	}
	return file.Close()
}
