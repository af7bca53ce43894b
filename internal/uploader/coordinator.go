package uploader

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/parnexcodes/ddl/internal/providers"
)

var sanitizer = strings.NewReplacer("<", "", ">", "")

// Coordinator drives one upload job across the enabled providers.
// The first provider that returns a link wins.
type Coordinator struct {
	id       string
	path     string
	userID   string
	listener Listener
	settings Settings
	registry Registry
	now      func() time.Time

	mu         sync.Mutex
	name       string
	engine     string
	size       int64
	started    time.Time
	finished   time.Time
	processed  int64
	lastOffset int64
	files      int
	folders    int
	cancelled  bool
	errored    bool
	cancel     context.CancelFunc

	terminal sync.Once
}

// Option customizes a Coordinator
type Option func(*Coordinator)

// WithClock replaces the time source used for speed calculations
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithID sets the job id instead of generating one
func WithID(id string) Option {
	return func(c *Coordinator) {
		c.id = id
	}
}

// New creates a coordinator for the file or folder at path
func New(listener Listener, name, path string, settings Settings, registry Registry, userID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		path:     path,
		userID:   userID,
		listener: listener,
		settings: settings,
		registry: registry,
		now:      time.Now,
		name:     name,
		engine:   DefaultEngine,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	return c
}

// Upload runs the job to completion. The listener has been notified by
// the time it returns; the returned error mirrors that notification.
func (c *Coordinator) Upload(ctx context.Context, name string, size int64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return providers.NewCancelledError(CancelledMessage, nil)
	}
	if name != "" {
		c.name = name
	}
	c.size = size
	c.started = c.now()
	c.cancel = cancel
	c.mu.Unlock()

	logging.UploadStart(c.id, c.path, size)

	configs, err := c.settings.ProviderConfig(c.userID)
	if err != nil {
		return c.fail(providers.NewConfigurationError(fmt.Sprintf("failed to load provider settings: %v", err), err))
	}
	adapters := c.registry.Build(configs)

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, a.Name())
	}
	logging.ProviderSelection(c.id, names)

	result, winner, err := c.tryProviders(ctx, adapters)
	if providers.GetErrorType(err) == providers.ErrorTypeCancelled {
		c.Cancel()
		return err
	}
	if err != nil {
		return c.fail(err)
	}

	c.complete(result, winner)
	return nil
}

func (c *Coordinator) tryProviders(ctx context.Context, adapters []providers.Adapter) (*providers.Result, string, error) {
	var lastErr error

	for _, adapter := range adapters {
		if c.Cancelled() || ctx.Err() != nil {
			return nil, "", providers.NewCancelledError(CancelledMessage, ctx.Err())
		}

		c.beginAttempt(adapter.Engine())
		logging.ProviderAttempt(c.id, adapter.Name(), adapter.Engine())

		result, err := adapter.Upload(ctx, c.path, c)
		if c.Cancelled() || ctx.Err() != nil {
			return nil, "", providers.NewCancelledError(CancelledMessage, ctx.Err())
		}
		if err == nil && (result == nil || result.Link == "") {
			err = providers.NewAPIError("MISSING_URL", adapter.Name()+" returned no link", nil)
		}
		if err != nil {
			logging.UploadError(c.Name(), adapter.Name(), err)
			lastErr = err
			continue
		}

		c.mu.Lock()
		c.files = result.Files
		c.folders = result.Folders
		c.mu.Unlock()
		return result, adapter.Name(), nil
	}

	return nil, "", providers.NewExhaustedError(ExhaustedMessage, lastErr)
}

func (c *Coordinator) beginAttempt(engine string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = engine
	c.processed = 0
	c.lastOffset = 0
	c.files = 0
	c.folders = 0
}

func (c *Coordinator) complete(result *providers.Result, provider string) {
	c.mu.Lock()
	c.finished = c.now()
	elapsed := c.finished.Sub(c.started)
	name, size, files, folders := c.name, c.size, c.files, c.folders
	c.mu.Unlock()

	logging.UploadComplete(name, result.Link, elapsed)
	logging.Info("Upload statistics", map[string]interface{}{
		"job":      c.id,
		"provider": provider,
		"speed":    c.Speed(),
		"mime":     result.MimeType,
	})

	c.terminal.Do(func() {
		if c.Cancelled() {
			c.listener.OnUploadError(CancelledMessage)
			return
		}
		links := map[string]string{provider: result.Link}
		c.listener.OnUploadComplete(links, size, files, folders, CompletedMimeType, name)
	})
}

func (c *Coordinator) fail(err error) error {
	message := err.Error()

	c.mu.Lock()
	c.errored = true
	c.finished = c.now()
	c.mu.Unlock()

	logging.Error("Upload job failed", map[string]interface{}{
		"job":   c.id,
		"name":  c.Name(),
		"error": err.Error(),
	})
	logging.ErrorContext("upload_job", err, map[string]interface{}{
		"job":  c.id,
		"path": c.path,
	})

	c.terminal.Do(func() {
		c.listener.OnUploadError(Sanitize(message))
	})
	return err
}

// Cancel stops the job. The in-flight request is aborted and the listener
// is told the upload was stopped, unless it was already notified.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	c.cancelled = true
	cancel := c.cancel
	name := c.name
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	logging.UploadCancelled(c.id, name)

	c.terminal.Do(func() {
		c.listener.OnUploadError(CancelledMessage)
	})
}

// TransferStarted implements providers.Observer
func (c *Coordinator) TransferStarted(path string, size int64) {
	c.mu.Lock()
	c.lastOffset = 0
	c.mu.Unlock()
}

// TransferProgress implements providers.Observer
func (c *Coordinator) TransferProgress(offset int64) {
	c.mu.Lock()
	if offset > c.lastOffset {
		c.processed += offset - c.lastOffset
		c.lastOffset = offset
	}
	name, processed, size := c.name, c.processed, c.size
	c.mu.Unlock()

	logging.UploadProgress(name, processed, size)
}

// ID returns the job id
func (c *Coordinator) ID() string {
	return c.id
}

// Name returns the display name
func (c *Coordinator) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Engine returns the label of the provider currently in use
func (c *Coordinator) Engine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// ProcessedBytes returns the bytes sent during the current provider attempt
func (c *Coordinator) ProcessedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processed
}

// Size returns the expected job size in bytes
func (c *Coordinator) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Speed returns the average throughput in bytes per second
func (c *Coordinator) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return 0
	}
	end := c.finished
	if end.IsZero() {
		end = c.now()
	}
	elapsed := end.Sub(c.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(c.processed) / elapsed
}

// Cancelled reports whether Cancel was called
func (c *Coordinator) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Errored reports whether the job ended with an error
func (c *Coordinator) Errored() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errored
}

// Sanitize strips angle brackets so messages are safe to render as markup
func Sanitize(message string) string {
	return sanitizer.Replace(message)
}
