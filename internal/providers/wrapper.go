package providers

import (
	"context"
	"time"

	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/sirupsen/logrus"
)

// ValidatingAdapter wraps an Adapter so every result it hands out carries a link
type ValidatingAdapter struct {
	adapter Adapter
}

// NewValidatingAdapter wraps adapter. Wrapping an already wrapped adapter returns it unchanged.
func NewValidatingAdapter(adapter Adapter) *ValidatingAdapter {
	if va, ok := adapter.(*ValidatingAdapter); ok {
		return va
	}
	return &ValidatingAdapter{adapter: adapter}
}

// Name returns the wrapped adapter's name
func (va *ValidatingAdapter) Name() string {
	return va.adapter.Name()
}

// Engine returns the wrapped adapter's engine label
func (va *ValidatingAdapter) Engine() string {
	return va.adapter.Engine()
}

// Unwrap returns the wrapped adapter
func (va *ValidatingAdapter) Unwrap() Adapter {
	return va.adapter
}

// Upload delegates to the wrapped adapter and rejects results without a link
func (va *ValidatingAdapter) Upload(ctx context.Context, path string, progress Observer) (*Result, error) {
	logging.Debug("Provider upload start", logrus.Fields{
		"provider": va.adapter.Name(),
		"path":     path,
	})

	start := time.Now()
	result, err := va.adapter.Upload(ctx, path, progress)
	if err == nil {
		err = validateResult(result)
		if err != nil {
			result = nil
		}
	}

	logging.Debug("Provider upload complete", logrus.Fields{
		"provider":    va.adapter.Name(),
		"path":        path,
		"success":     err == nil,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return result, err
}

func validateResult(result *Result) error {
	if result == nil {
		return NewAPIError("NULL_RESPONSE", "provider returned null response", nil)
	}
	if result.Link == "" {
		return NewAPIError("MISSING_URL", "provider response missing download URL", nil)
	}
	return nil
}
