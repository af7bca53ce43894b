package providers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parnexcodes/ddl/internal/config"
	"github.com/parnexcodes/ddl/internal/logging"
	"github.com/parnexcodes/ddl/internal/providers"
	"github.com/parnexcodes/ddl/pkg/providers/gofile"
	"github.com/parnexcodes/ddl/pkg/providers/streamtape"
)

// Constructor builds an adapter from a provider configuration entry
type Constructor func(pc config.ProviderConfig, transport *providers.Transport) (providers.Adapter, error)

var builtins = map[string]Constructor{
	"gofile": func(pc config.ProviderConfig, transport *providers.Transport) (providers.Adapter, error) {
		var opts []gofile.Option
		if transport != nil {
			opts = append(opts, gofile.WithTransport(transport))
		}
		return gofile.New(pc.Credential, settingsOf(pc), opts...)
	},
	"streamtape": func(pc config.ProviderConfig, transport *providers.Transport) (providers.Adapter, error) {
		var opts []streamtape.Option
		if transport != nil {
			opts = append(opts, streamtape.WithTransport(transport))
		}
		return streamtape.New(pc.Credential, settingsOf(pc), opts...)
	},
}

// Factory creates provider instances based on configuration
type Factory struct {
	transport    *providers.Transport
	constructors map[string]Constructor
}

// NewFactory creates a new provider factory. All adapters it builds share
// transport; a nil transport lets every adapter create its own.
func NewFactory(transport *providers.Transport) *Factory {
	constructors := make(map[string]Constructor, len(builtins))
	for name, fn := range builtins {
		constructors[name] = fn
	}
	return &Factory{
		transport:    transport,
		constructors: constructors,
	}
}

// Register adds or replaces a named constructor
func (f *Factory) Register(name string, fn Constructor) {
	f.constructors[strings.ToLower(name)] = fn
}

// Names lists the registered provider names in sorted order
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateProvider creates a provider instance from configuration
func (f *Factory) CreateProvider(providerConfig config.ProviderConfig) (providers.Adapter, error) {
	logging.ProviderConfig(providerConfig.Name, map[string]interface{}{
		"enabled":        providerConfig.Enabled,
		"has_credential": providerConfig.Credential != "",
	})

	fn, ok := f.constructors[strings.ToLower(providerConfig.Name)]
	if !ok {
		err := fmt.Errorf("unknown provider: %s", providerConfig.Name)
		logging.ErrorContext("provider_creation", err, map[string]interface{}{
			"provider": providerConfig.Name,
		})
		return nil, err
	}

	adapter, err := fn(providerConfig, f.transport)
	if err != nil {
		logging.ErrorContext("provider_creation", err, map[string]interface{}{
			"provider": providerConfig.Name,
		})
		return nil, fmt.Errorf("failed to create provider '%s': %w", providerConfig.Name, err)
	}

	return providers.NewValidatingAdapter(adapter), nil
}

// Build resolves the enabled entries into adapters, preserving order.
// Entries that cannot be built are logged and skipped.
func (f *Factory) Build(providerConfigs []config.ProviderConfig) []providers.Adapter {
	var adapters []providers.Adapter

	for _, providerConfig := range providerConfigs {
		if !providerConfig.Enabled {
			continue
		}

		adapter, err := f.CreateProvider(providerConfig)
		if err != nil {
			logging.Warn("Skipping provider", map[string]interface{}{
				"provider": providerConfig.Name,
				"error":    err.Error(),
			})
			continue
		}

		adapters = append(adapters, adapter)
	}

	return adapters
}

// CreateProvidersFromNames creates providers for a specific list of provider names
func (f *Factory) CreateProvidersFromNames(providerNames []string, allConfigs []config.ProviderConfig) ([]providers.Adapter, error) {
	nameSet := make(map[string]bool)
	for _, name := range providerNames {
		nameSet[strings.ToLower(name)] = true
	}

	var selected []providers.Adapter
	for _, providerConfig := range allConfigs {
		key := strings.ToLower(providerConfig.Name)
		if !nameSet[key] {
			continue
		}
		delete(nameSet, key)

		adapter, err := f.CreateProvider(providerConfig)
		if err != nil {
			return nil, err
		}
		selected = append(selected, adapter)
	}

	// Check if any requested providers were not found
	if len(nameSet) > 0 {
		var missing []string
		for name := range nameSet {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown providers: %v", missing)
	}

	return selected, nil
}

func settingsOf(pc config.ProviderConfig) map[string]interface{} {
	if pc.Settings == nil {
		return map[string]interface{}{}
	}
	return pc.Settings
}
