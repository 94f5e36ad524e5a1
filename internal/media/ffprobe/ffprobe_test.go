package ffprobe

import (
	"encoding/json"
	"testing"
)

func mustResult(t *testing.T, payload string) Result {
	t.Helper()
	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return result
}

func TestDurationSeconds(t *testing.T) {
	result := mustResult(t, `{"format":{"duration":"123.456"}}`)
	if got := result.DurationSeconds(); got != 123.456 {
		t.Fatalf("DurationSeconds = %v", got)
	}

	result = mustResult(t, `{"format":{"duration":"N/A"}}`)
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("unparseable duration = %v, want 0", got)
	}

	result = mustResult(t, `{"format":{}}`)
	if got := result.DurationSeconds(); got != 0 {
		t.Fatalf("missing duration = %v, want 0", got)
	}
}

func TestStreamDurationSecondsPrefersVideo(t *testing.T) {
	result := mustResult(t, `{
		"streams": [
			{"codec_type": "audio", "duration": "99.0"},
			{"codec_type": "video", "duration": "42.5"}
		]
	}`)
	if got := result.StreamDurationSeconds(); got != 42.5 {
		t.Fatalf("StreamDurationSeconds = %v, want video stream duration", got)
	}
}

func TestStreamDurationSecondsFallsBackToAnyStream(t *testing.T) {
	result := mustResult(t, `{
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio", "duration": "17.25"}
		]
	}`)
	if got := result.StreamDurationSeconds(); got != 17.25 {
		t.Fatalf("StreamDurationSeconds = %v, want audio fallback", got)
	}
}

func TestStreamDurationSecondsZeroWhenAbsent(t *testing.T) {
	result := mustResult(t, `{"streams":[{"codec_type":"video"}]}`)
	if got := result.StreamDurationSeconds(); got != 0 {
		t.Fatalf("StreamDurationSeconds = %v, want 0", got)
	}
}

func TestVideoStreamCount(t *testing.T) {
	result := mustResult(t, `{
		"streams": [
			{"codec_type": "video"},
			{"codec_type": "audio"},
			{"codec_type": "Video"}
		]
	}`)
	if got := result.VideoStreamCount(); got != 2 {
		t.Fatalf("VideoStreamCount = %d, want 2", got)
	}
}
