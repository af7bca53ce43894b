package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// TextHandler implements Handler for human-readable text output
type TextHandler struct {
	mu     sync.Mutex
	output io.Writer
}

// NewTextHandler creates a new text handler
func NewTextHandler(w io.Writer) *TextHandler {
	return &TextHandler{
		output: w,
	}
}

// HandleResult handles an upload result in text format
func (t *TextHandler) HandleResult(result Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if result.Error != "" {
		_, err := fmt.Fprintf(t.output, "ERROR %s: %s\n", result.Name, result.Error)
		return err
	}

	names := make([]string, 0, len(result.Links))
	for name := range result.Links {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, provider := range names {
		if _, err := fmt.Fprintf(t.output, "SUCCESS %s (%s, %d files, %d folders) via %s -> %s\n",
			result.Name,
			formatBytes(result.Size),
			result.Files,
			result.Folders,
			provider,
			result.Links[provider],
		); err != nil {
			return err
		}
	}
	return nil
}

// HandleProgress handles progress information in text format
func (t *TextHandler) HandleProgress(progress Progress) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	barWidth := 40

	percentage := progress.Percentage
	if percentage < 0 {
		percentage = 0
	} else if percentage > 100 {
		percentage = 100
	}

	filled := int(percentage / 100.0 * float64(barWidth))
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)

	_, err := fmt.Fprintf(t.output, "[%s] %s %.1f%% (%s/%s) %s/s via %s\n",
		bar,
		progress.Name,
		percentage,
		formatBytes(progress.Bytes),
		formatBytes(progress.Total),
		formatBytes(int64(progress.Speed)),
		progress.Engine,
	)
	return err
}

// Close closes the text handler
func (t *TextHandler) Close() error {
	return nil
}
