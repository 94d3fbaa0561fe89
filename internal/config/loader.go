package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the configuration in priority order: built-in defaults,
// then the TOML file at path (optional when empty), then ROUTERD_
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("ROUTERD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.configPath = path

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_address", "127.0.0.1:7450")
	v.SetDefault("server.http_address", "127.0.0.1:7451")
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("storage.backend", "pebble")
	v.SetDefault("storage.path", "data")
	v.SetDefault("storage.trace_cache_size", 4096)
	v.SetDefault("storage.trace_compression", "lz4")

	v.SetDefault("history.driver", "")
	v.SetDefault("history.dsn", "")

	v.SetDefault("auth.require_signature", false)

	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.quiet", false)
	v.SetDefault("logging.log_file", "")
}
