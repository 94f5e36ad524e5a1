// Package api defines the JSON types exchanged between the webmill daemon
// and its clients, plus an HTTP client used by the CLI.
package api

// HealthConfig reports the advertised daemon configuration.
type HealthConfig struct {
	Port             int      `json:"port"`
	SupportedFormats []string `json:"supported_formats"`
	Presets          []string `json:"presets"`
}

// HealthResponse is the payload of GET /api/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Version string       `json:"version"`
	Config  HealthConfig `json:"config"`
}

// ConvertResponse is the payload of a successful POST /api/convert.
type ConvertResponse struct {
	ConversionID string `json:"conversion_id"`
	Message      string `json:"message"`
}

// ErrorResponse is the payload of any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ProgressResponse is the payload of GET /api/progress/{id}. Result fields
// are present only once the conversion completed.
type ProgressResponse struct {
	Status           string  `json:"status"`
	Progress         float64 `json:"progress"`
	Time             string  `json:"time"`
	FPS              float64 `json:"fps"`
	Speed            string  `json:"speed"`
	ETA              string  `json:"eta"`
	Bitrate          string  `json:"bitrate,omitempty"`
	Error            string  `json:"error,omitempty"`
	Filename         string  `json:"filename,omitempty"`
	InputSize        int64   `json:"input_size,omitempty"`
	OutputSize       int64   `json:"output_size,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	DownloadURL      string  `json:"download_url,omitempty"`
}

// JobSummary is one row of GET /api/jobs.
type JobSummary struct {
	ConversionID     string  `json:"conversion_id"`
	Filename         string  `json:"filename"`
	Status           string  `json:"status"`
	Progress         float64 `json:"progress"`
	InputSize        int64   `json:"input_size"`
	OutputSize       int64   `json:"output_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	Error            string  `json:"error,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// JobsResponse is the payload of GET /api/jobs.
type JobsResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// ClearResponse is the payload of DELETE /api/jobs.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// RemoveResponse is the payload of DELETE /api/jobs/{id}.
type RemoveResponse struct {
	ConversionID string `json:"conversion_id"`
	Message      string `json:"message"`
}

// JobCounts aggregates job totals per lifecycle state.
type JobCounts struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Errored    int `json:"errored"`
}

// StatusResponse is the payload of GET /api/status.
type StatusResponse struct {
	Running       bool      `json:"running"`
	PID           int       `json:"pid"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Jobs          JobCounts `json:"jobs"`
	JobDBPath     string    `json:"job_db_path"`
	LockFilePath  string    `json:"lock_file_path"`
}
