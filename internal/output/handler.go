package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Result is the rendered outcome of one upload job
type Result struct {
	Name     string            `json:"name"`
	Path     string            `json:"path"`
	Links    map[string]string `json:"links,omitempty"`
	Size     int64             `json:"size"`
	Files    int               `json:"files"`
	Folders  int               `json:"folders"`
	MimeType string            `json:"mime_type,omitempty"`
	Error    string            `json:"error,omitempty"`
	Time     time.Time         `json:"time"`
}

// Progress is a point-in-time view of a running job
type Progress struct {
	Name       string  `json:"name"`
	Engine     string  `json:"engine"`
	Bytes      int64   `json:"bytes"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percent"`
	Speed      float64 `json:"speed"` // bytes per second
}

// Handler interface for different output formats
type Handler interface {
	HandleResult(result Result) error
	HandleProgress(progress Progress) error
	Close() error
}

// Observable is the read side of a running upload job
type Observable interface {
	Name() string
	Engine() string
	ProcessedBytes() int64
	Size() int64
	Speed() float64
}

// NewHandler creates a new output handler for the specified format
func NewHandler(format string, w io.Writer) (Handler, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONHandler(w), nil
	case "text":
		return NewTextHandler(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Snapshot samples the observable state of a job
func Snapshot(o Observable) Progress {
	p := Progress{
		Name:   o.Name(),
		Engine: o.Engine(),
		Bytes:  o.ProcessedBytes(),
		Total:  o.Size(),
		Speed:  o.Speed(),
	}
	if p.Total > 0 {
		p.Percentage = float64(p.Bytes) / float64(p.Total) * 100
	}
	return p
}

// JobListener forwards the terminal notification of one job to a Handler
type JobListener struct {
	handler Handler
	name    string
	path    string

	mu     sync.Mutex
	result *Result
}

// NewJobListener creates a listener for the job uploading path
func NewJobListener(h Handler, name, path string) *JobListener {
	return &JobListener{handler: h, name: name, path: path}
}

// OnUploadComplete renders a successful upload
func (l *JobListener) OnUploadComplete(links map[string]string, size int64, files, folders int, mimeType, name string) {
	l.emit(Result{
		Name:     name,
		Path:     l.path,
		Links:    links,
		Size:     size,
		Files:    files,
		Folders:  folders,
		MimeType: mimeType,
		Time:     time.Now(),
	})
}

// OnUploadError renders a failed or cancelled upload
func (l *JobListener) OnUploadError(message string) {
	l.emit(Result{
		Name:  l.name,
		Path:  l.path,
		Error: message,
		Time:  time.Now(),
	})
}

// Result returns the rendered result, or nil while the job is running
func (l *JobListener) Result() *Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

func (l *JobListener) emit(r Result) {
	l.mu.Lock()
	l.result = &r
	l.mu.Unlock()
	_ = l.handler.HandleResult(r)
}
