// Package config loads the ambient settings shared by the Manager and
// Feeder binaries: a TOML file as the lower-priority source, overridden by
// the environment variables spec §6 names for worker lifecycle
// (STORE_HOST, STORE_USER, STORE_PASSWORD) plus the additive
// LEASE_REDIS_ADDR from SPEC_FULL §4.5.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the union of settings either binary may need; each binary reads
// only the fields relevant to it.
type Config struct {
	// Manager HTTP ingress
	BindAddress string `toml:"bind_address"`
	BindPort    string `toml:"bind_port"`

	// Graph store
	StoreHost     string `toml:"store_host"`
	StoreUser     string `toml:"store_user"`
	StorePassword string `toml:"store_password"`
	StoreDatabase string `toml:"store_database"`

	// Lease coordinator (SPEC_FULL §4.5); empty means disabled
	LeaseRedisAddr string `toml:"lease_redis_addr"`

	// Network probe
	UserAgent string `toml:"user_agent"`
}

// Default returns the baseline configuration before any file or environment
// override is applied.
func Default() Config {
	return Config{
		BindAddress:   "127.0.0.1",
		BindPort:      "8080",
		StoreHost:     "127.0.0.1:27017",
		StoreDatabase: "crawler",
	}
}

// Load reads path (if non-empty and present) as a TOML overlay on Default(),
// then applies environment variable overrides, matching the teacher's and
// matzehuels-stacktower's layered config precedence (file, then env).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STORE_HOST"); v != "" {
		cfg.StoreHost = v
	}
	if v := os.Getenv("STORE_USER"); v != "" {
		cfg.StoreUser = v
	}
	if v := os.Getenv("STORE_PASSWORD"); v != "" {
		cfg.StorePassword = v
	}
	if v := os.Getenv("LEASE_REDIS_ADDR"); v != "" {
		cfg.LeaseRedisAddr = v
	}
}
