package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"webmill/internal/services"
)

// jsonRequestTimeout bounds the small JSON endpoints. Uploads and downloads
// move whole video files and run on the caller's context instead.
const jsonRequestTimeout = 30 * time.Second

// Client talks to a running webmill daemon over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
	}
}

// Health fetches the daemon health report.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var payload HealthResponse
	err := c.getJSON(ctx, "/api/health", &payload)
	return payload, err
}

// Status fetches the daemon runtime status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var payload StatusResponse
	err := c.getJSON(ctx, "/api/status", &payload)
	return payload, err
}

// Jobs lists the daemon's conversion jobs.
func (c *Client) Jobs(ctx context.Context) (JobsResponse, error) {
	var payload JobsResponse
	err := c.getJSON(ctx, "/api/jobs", &payload)
	return payload, err
}

// ClearCompleted removes completed conversions and their output files from
// the daemon.
func (c *Client) ClearCompleted(ctx context.Context) (ClearResponse, error) {
	var payload ClearResponse
	err := c.doJSON(ctx, http.MethodDelete, "/api/jobs", &payload)
	return payload, err
}

// Remove deletes one conversion record and its output file.
func (c *Client) Remove(ctx context.Context, conversionID string) (RemoveResponse, error) {
	var payload RemoveResponse
	err := c.doJSON(ctx, http.MethodDelete, "/api/jobs/"+conversionID, &payload)
	return payload, err
}

// Progress fetches the progress snapshot for one conversion.
func (c *Client) Progress(ctx context.Context, conversionID string) (ProgressResponse, error) {
	var payload ProgressResponse
	err := c.getJSON(ctx, "/api/progress/"+conversionID, &payload)
	return payload, err
}

// Submit uploads a file for conversion. settingsJSON may be empty to use the
// daemon's defaults.
func (c *Client) Submit(ctx context.Context, filePath, settingsJSON string) (ConvertResponse, error) {
	var payload ConvertResponse

	file, err := os.Open(filePath)
	if err != nil {
		return payload, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return payload, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return payload, fmt.Errorf("copy upload: %w", err)
	}
	if strings.TrimSpace(settingsJSON) != "" {
		if err := writer.WriteField("settings", settingsJSON); err != nil {
			return payload, fmt.Errorf("write settings field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return payload, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/convert", &body)
	if err != nil {
		return payload, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return payload, fmt.Errorf("submit conversion: %w", err)
	}
	defer resp.Body.Close()

	if err := decodeResponse(resp, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Download streams a completed conversion's output into w and returns the
// suggested filename from the attachment header.
func (c *Client) Download(ctx context.Context, conversionID string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/download/"+conversionID, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	filename := attachmentFilename(resp.Header.Get("Content-Disposition"))
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read download: %w", err)
	}
	return filename, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, jsonRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func responseError(resp *http.Response) error {
	var payload ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		if resp.StatusCode == http.StatusNotFound {
			return services.Wrap(services.ErrNotFound, "api", "", payload.Error, nil)
		}
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}

func attachmentFilename(disposition string) string {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		if value, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(value, `"`)
		}
	}
	return ""
}
