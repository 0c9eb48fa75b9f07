// Package config provides YAML configuration loading and flag overrides
// for the miner, plus the validation that turns a bad placeholder wallet
// into a fatal ConfigError at startup.
package config

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// placeholderWallet is the sentinel value rejected by Validate, matching
// spec.md §6 ("rejected if equal to the placeholder sentinel").
const placeholderWallet = "YOUR_WALLET_ADDRESS_HERE"

// defaultAgent is sent at login to identify this miner to the pool.
const defaultAgent = "rxminer/1.0"

// Config holds the miner's full runtime configuration.
type Config struct {
	Pool        PoolConfig    `yaml:"pool"`
	Threads     int           `yaml:"threads"`
	Agent       string        `yaml:"agent"`
	MetricsAddr string        `yaml:"metrics_addr"`
	Logging     LoggingConfig `yaml:"logging"`
}

// PoolConfig holds upstream pool connection settings.
type PoolConfig struct {
	Host   string `yaml:"host"`
	Port   string `yaml:"port"`
	Wallet string `yaml:"wallet"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with every field set to its default value.
func Default() *Config {
	return &Config{
		Threads: runtime.NumCPU(),
		Agent:   defaultAgent,
		Pool: PoolConfig{
			Wallet: placeholderWallet,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file at path, applying its values on top of
// Default. An empty path is not an error: Default alone is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// BindFlags registers flag overrides for cfg's scalar fields on fs.
// Call fs.Parse after BindFlags, then re-read cfg's fields.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Pool.Host, "pool-host", cfg.Pool.Host, "mining pool hostname")
	fs.StringVar(&cfg.Pool.Port, "pool-port", cfg.Pool.Port, "mining pool port")
	fs.StringVar(&cfg.Pool.Wallet, "wallet", cfg.Pool.Wallet, "wallet address to mine to")
	fs.IntVar(&cfg.Threads, "threads", cfg.Threads, "number of hashing workers")
	fs.StringVar(&cfg.Agent, "agent", cfg.Agent, "agent string sent at login")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus /metrics listen address (empty disables)")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "logrus log level")
}

// Validate rejects a placeholder wallet, missing pool address, or an
// invalid thread count. This is the ConfigError path from spec.md §7: the
// caller is expected to exit(1) on a non-nil return.
func (c *Config) Validate() error {
	if c.Pool.Host == "" {
		return fmt.Errorf("config: pool.host is required")
	}
	if c.Pool.Port == "" {
		return fmt.Errorf("config: pool.port is required")
	}
	if c.Pool.Wallet == "" || c.Pool.Wallet == placeholderWallet {
		return fmt.Errorf("config: pool.wallet must be set to a real wallet address")
	}
	if c.Threads < 1 {
		return fmt.Errorf("config: threads must be >= 1, got %d", c.Threads)
	}
	return nil
}
