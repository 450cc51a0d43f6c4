// Package config defines the indexer's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"MemeLedger/internal/state"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration. Fields come from a TOML file and are then
// optionally overridden by MEMELEDGER_* environment variables.
type Config struct {
	Chain       ChainConfig       `toml:"chain"`
	Decimals    DecimalsConfig    `toml:"decimals"`
	Source      string            `toml:"source"`
	NATS        NATSConfig        `toml:"nats"`
	Store       StoreConfig       `toml:"store"`
	Reconcile   ReconcileConfig   `toml:"reconcile"`
	Idempotency IdempotencyConfig `toml:"idempotency"`
	Server      ServerConfig      `toml:"server"`
}

// ChainConfig locates the contracts and the RPC endpoint logs are read from.
type ChainConfig struct {
	BaseAddress     string   `toml:"base_address"`
	RPCURL          string   `toml:"rpc_url"`
	FactoryAddress  string   `toml:"factory_address"`
	DatabaseAddress string   `toml:"database_address"`
	StartBlock      uint64   `toml:"start_block"`
	Confirmations   uint64   `toml:"confirmations"`
	PollInterval    duration `toml:"poll_interval"`
	BatchSize       uint64   `toml:"batch_size"`
}

// DecimalsConfig maps token addresses to their unit exponent.
type DecimalsConfig struct {
	Default   int            `toml:"default"`
	Overrides map[string]int `toml:"overrides"`
}

type NATSConfig struct {
	URL      string `toml:"url"`
	Consumer string `toml:"consumer"`
}

// StoreConfig selects the entity store backend.
type StoreConfig struct {
	Backend       string `toml:"backend"`
	PostgresDSN   string `toml:"postgres_dsn"`
	MigrationsDir string `toml:"migrations_dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix"`
}

type ReconcileConfig struct {
	TransferMode string `toml:"transfer_mode"`
}

type IdempotencyConfig struct {
	LRUSize int `toml:"lru_size"`
}

type ServerConfig struct {
	HTTPAddr    string `toml:"http_addr"`
	GRPCAddr    string `toml:"grpc_addr"`
	MetricsAddr string `toml:"metrics_addr"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like "4s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chain: ChainConfig{
			BaseAddress:   "0x6100E367285b01F48D07953803A2d8dCA5D19873",
			Confirmations: 2,
			PollInterval:  duration{4 * time.Second},
			BatchSize:     2000,
		},
		Decimals: DecimalsConfig{Default: 18},
		Source:   "nats",
		NATS: NATSConfig{
			URL:      "nats://127.0.0.1:4222",
			Consumer: "memeledger-processor",
		},
		Store: StoreConfig{
			Backend:       "memory",
			PostgresDSN:   "postgres://localhost:5432/memeledger?sslmode=disable",
			MigrationsDir: "migrations",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "memeledger",
		},
		Reconcile:   ReconcileConfig{TransferMode: "holders"},
		Idempotency: IdempotencyConfig{LRUSize: 100_000},
		Server: ServerConfig{
			HTTPAddr:    ":8080",
			GRPCAddr:    ":9090",
			MetricsAddr: ":9091",
		},
	}
}

var (
	validSources       = map[string]bool{"nats": true, "rpc": true}
	validBackends      = map[string]bool{"memory": true, "postgres": true, "redis": true}
	validTransferModes = map[string]bool{"holders": true, "positions": true, "both": true}
)

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if !common.IsHexAddress(c.Chain.BaseAddress) {
		errs = append(errs, fmt.Sprintf("chain: base_address %q is not a hex address", c.Chain.BaseAddress))
	}

	if !validSources[c.Source] {
		errs = append(errs, fmt.Sprintf("unknown source %q (valid: nats, rpc)", c.Source))
	}
	if c.Source == "rpc" {
		if c.Chain.RPCURL == "" {
			errs = append(errs, "chain: rpc_url is required for source rpc")
		}
		for name, addr := range map[string]string{
			"factory_address":  c.Chain.FactoryAddress,
			"database_address": c.Chain.DatabaseAddress,
		} {
			if !common.IsHexAddress(addr) {
				errs = append(errs, fmt.Sprintf("chain: %s %q is not a hex address", name, addr))
			}
		}
		if c.Chain.PollInterval.Duration <= 0 {
			errs = append(errs, "chain: poll_interval must be positive")
		}
		if c.Chain.BatchSize == 0 {
			errs = append(errs, "chain: batch_size must be >= 1")
		}
	}
	if c.Source == "nats" {
		if c.NATS.URL == "" {
			errs = append(errs, "nats: url must not be empty")
		}
		if c.NATS.Consumer == "" {
			errs = append(errs, "nats: consumer must not be empty")
		}
	}

	if c.Decimals.Default < 1 || c.Decimals.Default > 36 {
		errs = append(errs, fmt.Sprintf("decimals: default must be 1-36, got %d", c.Decimals.Default))
	}
	for addr, d := range c.Decimals.Overrides {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("decimals: override key %q is not a hex address", addr))
		}
		if d < 1 || d > 36 {
			errs = append(errs, fmt.Sprintf("decimals: override for %s must be 1-36, got %d", addr, d))
		}
	}

	if !validBackends[c.Store.Backend] {
		errs = append(errs, fmt.Sprintf("unknown store backend %q (valid: memory, postgres, redis)", c.Store.Backend))
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		errs = append(errs, "store: postgres_dsn must not be empty")
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		errs = append(errs, "store: redis_addr must not be empty")
	}

	if !validTransferModes[c.Reconcile.TransferMode] {
		errs = append(errs, fmt.Sprintf("unknown reconcile transfer_mode %q (valid: holders, positions, both)", c.Reconcile.TransferMode))
	}
	if c.Idempotency.LRUSize < 1 {
		errs = append(errs, "idempotency: lru_size must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// BaseAddress returns the parsed base (WETH) address. Call after Validate.
func (c *Config) BaseAddress() common.Address {
	return common.HexToAddress(c.Chain.BaseAddress)
}

// DecimalsTable builds the resolver the processor and query service use.
func (c *Config) DecimalsTable() state.DecimalsTable {
	overrides := make(map[common.Address]uint8, len(c.Decimals.Overrides))
	for addr, d := range c.Decimals.Overrides {
		overrides[common.HexToAddress(addr)] = uint8(d)
	}
	return state.DecimalsTable{Default: uint8(c.Decimals.Default), Overrides: overrides}
}
