package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/parnexcodes/ddl/internal/providers"
)

// Config holds the application configuration
type Config struct {
	Concurrency int                   `mapstructure:"concurrency"`
	Verbose     bool                  `mapstructure:"verbose"`
	Output      string                `mapstructure:"output"`
	User        string                `mapstructure:"user"`
	Providers   []ProviderConfig      `mapstructure:"providers"`
	Users       map[string]UserConfig `mapstructure:"users"`
	Upload      UploadConfig          `mapstructure:"upload"`
}

// ProviderConfig holds configuration for a DDL provider
type ProviderConfig struct {
	Name       string                 `mapstructure:"name"`
	Enabled    bool                   `mapstructure:"enabled"`
	Credential string                 `mapstructure:"credential"`
	Settings   map[string]interface{} `mapstructure:"settings"`
}

// UserConfig holds per-user overrides
type UserConfig struct {
	Providers []ProviderConfig `mapstructure:"providers"`
}

// UploadConfig holds upload-specific configuration
type UploadConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load reads configuration from v after applying defaults
func Load(v *viper.Viper) (*Config, error) {
	config := &Config{}

	setDefaults(v)

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Upload.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (u UploadConfig) validate() error {
	if u.MaxAttempts < 1 {
		return fmt.Errorf("upload.max_attempts must be at least 1, got %d", u.MaxAttempts)
	}
	if u.InitialInterval <= 0 {
		return fmt.Errorf("upload.initial_interval must be positive, got %s", u.InitialInterval)
	}
	if u.Multiplier < 1 {
		return fmt.Errorf("upload.multiplier must be at least 1, got %g", u.Multiplier)
	}
	if u.MaxInterval < u.InitialInterval {
		return fmt.Errorf("upload.max_interval %s is shorter than upload.initial_interval %s", u.MaxInterval, u.InitialInterval)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Global defaults
	v.SetDefault("concurrency", 2)
	v.SetDefault("verbose", false)
	v.SetDefault("output", "text")
	v.SetDefault("user", "default")

	// Upload defaults
	policy := providers.DefaultRetryPolicy()
	v.SetDefault("upload.initial_interval", policy.InitialInterval)
	v.SetDefault("upload.max_interval", policy.MaxInterval)
	v.SetDefault("upload.multiplier", policy.Multiplier)
	v.SetDefault("upload.max_attempts", policy.MaxAttempts)
	v.SetDefault("upload.timeout", "30m")

	// Provider defaults
	v.SetDefault("providers", []map[string]interface{}{
		{
			"name":       "gofile",
			"enabled":    true,
			"credential": "",
		},
		{
			"name":       "streamtape",
			"enabled":    false,
			"credential": "",
		},
	})
}

// GetEnabledProviders returns a list of enabled provider configurations
func (c *Config) GetEnabledProviders() []ProviderConfig {
	var enabled []ProviderConfig
	for _, provider := range c.Providers {
		if provider.Enabled {
			enabled = append(enabled, provider)
		}
	}
	return enabled
}

// ProviderConfig returns a private copy of the provider list for userID.
// Users without overrides get the top-level providers.
func (c *Config) ProviderConfig(userID string) ([]ProviderConfig, error) {
	source := c.Providers
	if user, ok := c.Users[strings.ToLower(userID)]; ok && len(user.Providers) > 0 {
		source = user.Providers
	}
	return snapshot(source), nil
}

// RetryPolicy converts the upload settings into a transport retry policy
func (u UploadConfig) RetryPolicy() providers.RetryPolicy {
	return providers.RetryPolicy{
		InitialInterval: u.InitialInterval,
		Multiplier:      u.Multiplier,
		MaxInterval:     u.MaxInterval,
		MaxAttempts:     u.MaxAttempts,
	}
}

func snapshot(in []ProviderConfig) []ProviderConfig {
	out := make([]ProviderConfig, len(in))
	for i, p := range in {
		out[i] = p
		if p.Settings != nil {
			out[i].Settings = make(map[string]interface{}, len(p.Settings))
			for k, v := range p.Settings {
				out[i].Settings[k] = v
			}
		}
	}
	return out
}
