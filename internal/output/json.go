package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// formatBytes formats bytes into human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// JSONHandler writes one JSON object per line
type JSONHandler struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

type resultEvent struct {
	Type string `json:"type"`
	Result
}

type progressEvent struct {
	Type string `json:"type"`
	Progress
}

// NewJSONHandler creates a new JSON handler
func NewJSONHandler(w io.Writer) *JSONHandler {
	return &JSONHandler{
		encoder: json.NewEncoder(w),
	}
}

// HandleResult handles an upload result in JSON format
func (j *JSONHandler) HandleResult(result Result) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(resultEvent{Type: "result", Result: result})
}

// HandleProgress handles progress information in JSON format
func (j *JSONHandler) HandleProgress(progress Progress) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.encoder.Encode(progressEvent{Type: "progress", Progress: progress})
}

// Close closes the JSON handler
func (j *JSONHandler) Close() error {
	return nil
}
