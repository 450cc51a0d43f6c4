package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load starts from Default, decodes the TOML file at path when path is not
// empty, then applies MEMELEDGER_* environment overrides. The result has NOT
// been validated; call Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.BaseAddress, "MEMELEDGER_CHAIN_BASE_ADDRESS")
	setStr(&cfg.Chain.RPCURL, "MEMELEDGER_CHAIN_RPC_URL")
	setStr(&cfg.Chain.FactoryAddress, "MEMELEDGER_CHAIN_FACTORY_ADDRESS")
	setStr(&cfg.Chain.DatabaseAddress, "MEMELEDGER_CHAIN_DATABASE_ADDRESS")
	setUint64(&cfg.Chain.StartBlock, "MEMELEDGER_CHAIN_START_BLOCK")
	setUint64(&cfg.Chain.Confirmations, "MEMELEDGER_CHAIN_CONFIRMATIONS")
	setDuration(&cfg.Chain.PollInterval, "MEMELEDGER_CHAIN_POLL_INTERVAL")
	setUint64(&cfg.Chain.BatchSize, "MEMELEDGER_CHAIN_BATCH_SIZE")

	setInt(&cfg.Decimals.Default, "MEMELEDGER_DECIMALS_DEFAULT")

	// ── Source ──
	setStr(&cfg.Source, "MEMELEDGER_SOURCE")
	setStr(&cfg.NATS.URL, "MEMELEDGER_NATS_URL")
	setStr(&cfg.NATS.Consumer, "MEMELEDGER_NATS_CONSUMER")

	// ── Store ──
	setStr(&cfg.Store.Backend, "MEMELEDGER_STORE_BACKEND")
	setStr(&cfg.Store.PostgresDSN, "MEMELEDGER_STORE_POSTGRES_DSN")
	setStr(&cfg.Store.MigrationsDir, "MEMELEDGER_STORE_MIGRATIONS_DIR")
	setStr(&cfg.Store.RedisAddr, "MEMELEDGER_STORE_REDIS_ADDR")
	setStr(&cfg.Store.RedisPassword, "MEMELEDGER_STORE_REDIS_PASSWORD")
	setInt(&cfg.Store.RedisDB, "MEMELEDGER_STORE_REDIS_DB")
	setStr(&cfg.Store.RedisPrefix, "MEMELEDGER_STORE_REDIS_PREFIX")

	setStr(&cfg.Reconcile.TransferMode, "MEMELEDGER_RECONCILE_TRANSFER_MODE")
	setInt(&cfg.Idempotency.LRUSize, "MEMELEDGER_IDEMPOTENCY_LRU_SIZE")

	// ── Server ──
	setStr(&cfg.Server.HTTPAddr, "MEMELEDGER_SERVER_HTTP_ADDR")
	setStr(&cfg.Server.GRPCAddr, "MEMELEDGER_SERVER_GRPC_ADDR")
	setStr(&cfg.Server.MetricsAddr, "MEMELEDGER_SERVER_METRICS_ADDR")
}

// Each helper only mutates the target when the variable is set and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
