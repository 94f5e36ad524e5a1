package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var allStatuses = []Status{
	StatusProcessing,
	StatusCompleted,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Job represents a conversion job persisted in SQLite. Progress fields hold
// the most recent snapshot parsed from the encoder; result fields are set
// only once the job reaches a terminal status.
type Job struct {
	ID               string
	SourceName       string
	InputPath        string
	OutputPath       string
	Status           Status
	Progress         float64
	TimePosition     string
	FPS              float64
	Speed            string
	ETA              string
	Bitrate          string
	ErrorMessage     string
	InputSize        int64
	OutputSize       int64
	CompressionRatio float64
	SettingsJSON     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsTerminal reports whether the job has finished, successfully or not.
func (j Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// SetProgress updates the live progress fields from an encoder snapshot.
func (j *Job) SetProgress(percent float64, timePosition string, fps float64, speed, eta, bitrate string) {
	j.Progress = percent
	j.TimePosition = timePosition
	j.FPS = fps
	j.Speed = speed
	j.ETA = eta
	j.Bitrate = bitrate
}

// SetCompleted marks the job finished with its result measurements.
func (j *Job) SetCompleted(inputSize, outputSize int64, compressionRatio float64) {
	j.Status = StatusCompleted
	j.Progress = 100
	j.ErrorMessage = ""
	j.InputSize = inputSize
	j.OutputSize = outputSize
	j.CompressionRatio = compressionRatio
}

// SetError marks the job failed with the given message.
func (j *Job) SetError(message string) {
	j.Status = StatusError
	j.Progress = 0
	j.ErrorMessage = message
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Processing int
	Completed  int
	Errored    int
}
