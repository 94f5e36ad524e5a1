package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"webmill/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "jobs.db"))
}

// OpenPath connects to the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a processing job under the given conversion id. An empty id
// gets a fresh UUID.
func (s *Store) NewJob(ctx context.Context, id, sourceName, inputPath, outputPath, settingsJSON string) (*Job, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, source_name, input_path, output_path, status, progress,
            time_position, fps, speed, eta, settings_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sourceName,
		inputPath,
		outputPath,
		StatusProcessing,
		0.0,
		"00:00:00",
		0.0,
		"0x",
		"00:00:00",
		nullableString(settingsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by conversion id. A missing id yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job. The write replaces the whole
// row so readers never observe a partially-updated record.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET source_name = ?, input_path = ?, output_path = ?, status = ?,
             progress = ?, time_position = ?, fps = ?, speed = ?, eta = ?,
             bitrate = ?, error_message = ?, input_size = ?, output_size = ?,
             compression_ratio = ?, settings_json = ?, updated_at = ?
         WHERE id = ?`,
		job.SourceName,
		job.InputPath,
		job.OutputPath,
		job.Status,
		job.Progress,
		nullableString(job.TimePosition),
		job.FPS,
		nullableString(job.Speed),
		nullableString(job.ETA),
		nullableString(job.Bitrate),
		nullableString(job.ErrorMessage),
		job.InputSize,
		job.OutputSize,
		job.CompressionRatio,
		nullableString(job.SettingsJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), newest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusError:
			health.Errored += count
		}
	}
	return health, nil
}

// Remove deletes a job by conversion id.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// MarkStaleProcessing fails jobs that were still processing at startup.
// A conversion does not survive a daemon restart, so its record must not
// claim to be in flight.
func (s *Store) MarkStaleProcessing(ctx context.Context, message string) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress = 0, error_message = ?, updated_at = ?
         WHERE status = ?`,
		StatusError,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, source_name, input_path, output_path, status, progress, time_position, fps, speed, eta, bitrate, error_message, input_size, output_size, compression_ratio, settings_json, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		sourceName   string
		inputPath    string
		outputPath   string
		statusStr    string
		progress     float64
		timePosition sql.NullString
		fps          float64
		speed        sql.NullString
		eta          sql.NullString
		bitrate      sql.NullString
		errorMessage sql.NullString
		inputSize    int64
		outputSize   int64
		ratio        float64
		settingsJSON sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&sourceName,
		&inputPath,
		&outputPath,
		&statusStr,
		&progress,
		&timePosition,
		&fps,
		&speed,
		&eta,
		&bitrate,
		&errorMessage,
		&inputSize,
		&outputSize,
		&ratio,
		&settingsJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		SourceName:       sourceName,
		InputPath:        inputPath,
		OutputPath:       outputPath,
		Status:           Status(statusStr),
		Progress:         progress,
		TimePosition:     timePosition.String,
		FPS:              fps,
		Speed:            speed.String,
		ETA:              eta.String,
		Bitrate:          bitrate.String,
		ErrorMessage:     errorMessage.String,
		InputSize:        inputSize,
		OutputSize:       outputSize,
		CompressionRatio: ratio,
		SettingsJSON:     settingsJSON.String,
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
