package convert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Snapshot is one normalized progress reading parsed from the encoder's
// diagnostic stream. String fields keep the encoder's own formatting so the
// API can relay them untouched; Bitrate is empty when the line omits it.
type Snapshot struct {
	Time    string
	FPS     float64
	Speed   string
	ETA     string
	Bitrate string
}

const (
	defaultTime  = "00:00:00"
	defaultSpeed = "0x"
	defaultETA   = "00:00:00"
)

var (
	timePattern    = regexp.MustCompile(`time=(\d{1,2}:\d{2}:\d{2}(?:\.\d{1,2})?)`)
	fpsPattern     = regexp.MustCompile(`fps=(\d+\.?\d*)`)
	speedPattern   = regexp.MustCompile(`speed=(\d+\.?\d*x)`)
	bitratePattern = regexp.MustCompile(`bitrate=(\d+\.?\d*(?:k|M)?bits/s)`)
)

// ParseLine extracts a progress snapshot from one encoder stderr line. The
// second return value reports whether the line carries progress at all; only
// lines containing a time= field do.
func ParseLine(line string) (Snapshot, bool) {
	if !strings.Contains(line, "time=") {
		return Snapshot{}, false
	}

	snapshot := Snapshot{
		Time:  defaultTime,
		Speed: defaultSpeed,
		ETA:   defaultETA,
	}

	if match := timePattern.FindStringSubmatch(line); match != nil {
		snapshot.Time = match[1]
	}
	if match := fpsPattern.FindStringSubmatch(line); match != nil {
		if fps, err := strconv.ParseFloat(match[1], 64); err == nil {
			snapshot.FPS = fps
		}
	}
	if match := speedPattern.FindStringSubmatch(line); match != nil {
		snapshot.Speed = match[1]
	}
	if match := bitratePattern.FindStringSubmatch(line); match != nil {
		snapshot.Bitrate = match[1]
	}

	return snapshot, true
}

// TimeToSeconds converts an encoder timestamp to seconds. Three components
// are read as h:m:s, two as m:s. The boolean is false when the value cannot
// be parsed.
func TimeToSeconds(value string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")

	var hours, minutes, seconds float64
	var err error
	switch len(parts) {
	case 3:
		if hours, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return 0, false
		}
		if minutes, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, false
		}
		if seconds, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0, false
		}
	case 2:
		if minutes, err = strconv.ParseFloat(parts[0], 64); err != nil {
			return 0, false
		}
		if seconds, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}

	return hours*3600 + minutes*60 + seconds, true
}

// MapProgress remaps a completion fraction into the [lo,hi] window of the
// current pass. The result never exceeds hi.
func MapProgress(lo, hi, fraction float64) float64 {
	if fraction < 0 {
		fraction = 0
	}
	span := hi - lo
	advance := fraction * span
	if advance > span {
		advance = span
	}
	return lo + advance
}

// ComputeETA estimates remaining wall-clock time from the current position
// and the encoder's reported speed multiplier. An unusable speed yields the
// default zero ETA.
func ComputeETA(durationSeconds, currentSeconds float64, speed string) string {
	multiplier, err := strconv.ParseFloat(strings.TrimSuffix(speed, "x"), 64)
	if err != nil || multiplier <= 0 {
		return defaultETA
	}

	remaining := durationSeconds - currentSeconds
	if remaining < 0 {
		remaining = 0
	}
	return formatSeconds(remaining / multiplier)
}

func formatSeconds(total float64) string {
	if total < 0 {
		total = 0
	}
	whole := int(total)
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	seconds := whole % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
