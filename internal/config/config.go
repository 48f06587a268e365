// Package config loads the server configuration from an HCL file.
// A missing file yields the defaults, so the server runs with no
// configuration at all.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerSettings      `hcl:"server,block"`
	Store       StoreSettings       `hcl:"store,block"`
	Leaderboard LeaderboardSettings `hcl:"leaderboard,block"`
}

// ServerSettings covers the websocket listener and logging.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// StoreSettings covers the sqlite persistence layer.
type StoreSettings struct {
	Path string `hcl:"path,optional"`
}

// LeaderboardSettings covers the Redis projection. An empty address
// selects the in-memory store, for single-node and development use.
type LeaderboardSettings struct {
	RedisAddr        string `hcl:"redis_addr,optional"`
	RedisPassword    string `hcl:"redis_password,optional"`
	RedisDB          int    `hcl:"redis_db,optional"`
	ReconcileSeconds int    `hcl:"reconcile_seconds,optional"`
}

// Default returns the configuration the server runs with when no file is
// given.
func Default() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Store: StoreSettings{
			Path: "okeyd.db",
		},
		Leaderboard: LeaderboardSettings{
			ReconcileSeconds: 300,
		},
	}
}

// Load reads an HCL configuration file. A missing file is not an error;
// the defaults apply.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %s", filename, diags.Error())
	}

	def := Default()
	if cfg.Server.Address == "" {
		cfg.Server.Address = def.Server.Address
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = def.Server.LogLevel
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Leaderboard.ReconcileSeconds == 0 {
		cfg.Leaderboard.ReconcileSeconds = def.Leaderboard.ReconcileSeconds
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path required")
	}
	if c.Leaderboard.ReconcileSeconds < 0 {
		return fmt.Errorf("reconcile_seconds must not be negative")
	}
	return nil
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
