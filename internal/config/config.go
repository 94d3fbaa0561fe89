// Package config loads the routerd configuration from defaults, a TOML
// file and ROUTERD_ environment variables, in that priority order.
package config

import (
	"fmt"
	"path/filepath"
)

// Config is the complete routerd configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" mapstructure:"server"`
	Storage StorageConfig `toml:"storage" mapstructure:"storage"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Auth    AuthConfig    `toml:"auth" mapstructure:"auth"`
	Logging LoggingConfig `toml:"logging" mapstructure:"logging"`

	// GenesisFile seeds venues, pools and balances on first start. If
	// empty and no persisted state exists, the node starts empty.
	GenesisFile string `toml:"genesis_file" mapstructure:"genesis_file"`

	configPath string `toml:"-" mapstructure:"-"`
}

// ServerConfig holds the listener addresses.
type ServerConfig struct {
	GRPCAddress string `toml:"grpc_address" mapstructure:"grpc_address"`
	HTTPAddress string `toml:"http_address" mapstructure:"http_address"`

	// MetricsEnabled exposes /metrics on the HTTP listener.
	MetricsEnabled bool `toml:"metrics_enabled" mapstructure:"metrics_enabled"`
}

// StorageConfig selects the key-value backend holding venue state and
// archived traces.
type StorageConfig struct {
	// Backend is "pebble" or "leveldb".
	Backend string `toml:"backend" mapstructure:"backend"`
	Path    string `toml:"path" mapstructure:"path"`

	// TraceCacheSize bounds the in-memory trace read cache.
	TraceCacheSize int `toml:"trace_cache_size" mapstructure:"trace_cache_size"`

	// TraceCompression is "lz4" or "none".
	TraceCompression string `toml:"trace_compression" mapstructure:"trace_compression"`
}

// HistoryConfig selects the relational execution journal.
type HistoryConfig struct {
	// Driver is "sqlite", "postgres" or empty to disable the journal.
	Driver string `toml:"driver" mapstructure:"driver"`
	DSN    string `toml:"dsn" mapstructure:"dsn"`
}

// AuthConfig controls batch authentication.
type AuthConfig struct {
	// RequireSignature rejects submissions without a valid owner
	// signature over the batch digest.
	RequireSignature bool `toml:"require_signature" mapstructure:"require_signature"`
}

// LoggingConfig mirrors the CLI logging flags.
type LoggingConfig struct {
	Debug   bool   `toml:"debug" mapstructure:"debug"`
	Quiet   bool   `toml:"quiet" mapstructure:"quiet"`
	LogFile string `toml:"log_file" mapstructure:"log_file"`
}

// ConfigPath returns the path of the file the config was loaded from,
// or empty when only defaults and environment applied.
func (c *Config) ConfigPath() string {
	return c.configPath
}

// TracePath is the directory of the trace database under the storage root.
func (c *Config) TracePath() string {
	return filepath.Join(c.Storage.Path, "traces")
}

// Validate rejects configurations the node cannot start with.
func Validate(c *Config) error {
	switch c.Storage.Backend {
	case "pebble", "leveldb":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path cannot be empty")
	}
	switch c.Storage.TraceCompression {
	case "lz4", "none":
	default:
		return fmt.Errorf("unknown trace compression %q", c.Storage.TraceCompression)
	}
	switch c.History.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown history driver %q", c.History.Driver)
	}
	if c.History.Driver != "" && c.History.DSN == "" {
		return fmt.Errorf("history driver %q needs a dsn", c.History.Driver)
	}
	if c.Server.GRPCAddress == "" {
		return fmt.Errorf("grpc address cannot be empty")
	}
	return nil
}
