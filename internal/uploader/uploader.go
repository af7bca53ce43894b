package uploader

import (
	"github.com/parnexcodes/ddl/internal/config"
	"github.com/parnexcodes/ddl/internal/providers"
)

const (
	// DefaultEngine is the engine label before any provider is tried
	DefaultEngine = "DDL v1"

	// CompletedMimeType is reported with every successful upload
	CompletedMimeType = "application/octet-stream"

	// CancelledMessage is delivered to the listener when a job is stopped
	CancelledMessage = "Your upload has been stopped!"

	// ExhaustedMessage is delivered when no provider produced a link
	ExhaustedMessage = "No DDL Enabled to Upload."
)

// Listener receives the terminal notification of an upload job.
// Exactly one of its methods is called per job. Links are keyed by the
// display name of the provider that produced them.
type Listener interface {
	OnUploadComplete(links map[string]string, size int64, files, folders int, mimeType, name string)
	OnUploadError(message string)
}

// Settings supplies the ordered provider list for a user
type Settings interface {
	ProviderConfig(userID string) ([]config.ProviderConfig, error)
}

// Registry turns provider configuration into ready adapters
type Registry interface {
	Build(configs []config.ProviderConfig) []providers.Adapter
}
