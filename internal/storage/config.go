// Manages server configuration stored in server_config.json.

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ServerConfigFileName is the name of the configuration file in the data directory.
const ServerConfigFileName = "server_config.json"

// ServerConfig stores all server-wide configuration.
// Loaded from server_config.json, created with defaults if missing.
type ServerConfig struct {
	// Quotas defines request and entry size limits.
	Quotas Quotas `json:"quotas"`

	// RateLimits defines rate limiting configuration.
	RateLimits RateLimits `json:"rate_limits"`
}

// Quotas defines size limits. 0 means unlimited.
type Quotas struct {
	// MaxRequestBodyBytes limits the size of any single HTTP request body.
	MaxRequestBodyBytes int64 `json:"max_request_body_bytes"`

	// MaxKeyBytes limits the length of an entry key.
	MaxKeyBytes int `json:"max_key_bytes"`

	// MaxContentBytes limits the length of an entry content.
	MaxContentBytes int `json:"max_content_bytes"`
}

// Validate checks that all quota values are non-negative.
func (q *Quotas) Validate() error {
	if q.MaxRequestBodyBytes < 0 {
		return errors.New("max_request_body_bytes must be non-negative")
	}
	if q.MaxKeyBytes < 0 {
		return errors.New("max_key_bytes must be non-negative")
	}
	if q.MaxContentBytes < 0 {
		return errors.New("max_content_bytes must be non-negative")
	}
	return nil
}

// DefaultQuotas returns the default quotas.
func DefaultQuotas() Quotas {
	return Quotas{
		MaxRequestBodyBytes: 10 * 1024 * 1024, // 10 MiB
		MaxKeyBytes:         1024,
		MaxContentBytes:     1024 * 1024, // 1 MiB
	}
}

// RateLimits defines rate limiting configuration (requests per minute per
// client IP). 0 means unlimited.
type RateLimits struct {
	// WriteRatePerMin limits POST requests.
	WriteRatePerMin int `json:"write_rate_per_min"`

	// ReadRatePerMin limits GET requests.
	ReadRatePerMin int `json:"read_rate_per_min"`
}

// Validate checks that rate limit values are non-negative.
func (r *RateLimits) Validate() error {
	if r.WriteRatePerMin < 0 {
		return errors.New("write_rate_per_min must be non-negative")
	}
	if r.ReadRatePerMin < 0 {
		return errors.New("read_rate_per_min must be non-negative")
	}
	return nil
}

// DefaultRateLimits returns the default rate limits.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		WriteRatePerMin: 120,
		ReadRatePerMin:  6000,
	}
}

// DefaultServerConfig returns the configuration written on first start.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{Quotas: DefaultQuotas(), RateLimits: DefaultRateLimits()}
}

// Validate checks that the configuration is valid.
func (c *ServerConfig) Validate() error {
	if err := c.Quotas.Validate(); err != nil {
		return fmt.Errorf("quotas: %w", err)
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, ServerConfigFileName)
	cfg := DefaultServerConfig()

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", ServerConfigFileName, err)
		}
		if err := cfg.Save(dataDir); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ServerConfigFileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", ServerConfigFileName, err)
	}
	return cfg, nil
}

// Save saves configuration to dataDir/server_config.json.
func (c *ServerConfig) Save(dataDir string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(dataDir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, ServerConfigFileName), data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", ServerConfigFileName, err)
	}
	return nil
}
