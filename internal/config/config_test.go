package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"MemeLedger/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "holders", cfg.Reconcile.TransferMode)
	assert.Equal(t, 100_000, cfg.Idempotency.LRUSize)
	assert.Equal(t, common.HexToAddress("0x6100E367285b01F48D07953803A2d8dCA5D19873"), cfg.BaseAddress())
}

func TestLoad_TOMLAndEnv(t *testing.T) {
	token := "0x00000000000000000000000000000000000000aa"
	path := filepath.Join(t.TempDir(), "memeledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
source = "rpc"

[chain]
rpc_url = "http://localhost:8545"
factory_address = "0x0000000000000000000000000000000000000001"
database_address = "0x0000000000000000000000000000000000000002"
poll_interval = "2s"

[decimals]
default = 18
[decimals.overrides]
"`+token+`" = 6

[store]
backend = "postgres"
`), 0o600))

	t.Setenv("MEMELEDGER_STORE_BACKEND", "redis")
	t.Setenv("MEMELEDGER_CHAIN_CONFIRMATIONS", "12")
	t.Setenv("MEMELEDGER_CHAIN_POLL_INTERVAL", "not-a-duration")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "rpc", cfg.Source)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, uint64(12), cfg.Chain.Confirmations)
	// unparsable override leaves the file value in place
	assert.Equal(t, 2*time.Second, cfg.Chain.PollInterval.Duration)

	table := cfg.DecimalsTable()
	assert.Equal(t, uint8(6), table.DecimalsFor(common.HexToAddress(token)))
	assert.Equal(t, uint8(18), table.DecimalsFor(common.HexToAddress("0x01")))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"bad base address", func(c *config.Config) { c.Chain.BaseAddress = "weth" }, "base_address"},
		{"decimals too large", func(c *config.Config) { c.Decimals.Default = 37 }, "decimals: default"},
		{"bad override", func(c *config.Config) { c.Decimals.Overrides = map[string]int{"0x01": 0} }, "override"},
		{"unknown source", func(c *config.Config) { c.Source = "kafka" }, "unknown source"},
		{"rpc needs url", func(c *config.Config) { c.Source = "rpc" }, "rpc_url"},
		{"unknown backend", func(c *config.Config) { c.Store.Backend = "sqlite" }, "store backend"},
		{"unknown transfer mode", func(c *config.Config) { c.Reconcile.TransferMode = "all" }, "transfer_mode"},
		{"lru size", func(c *config.Config) { c.Idempotency.LRUSize = 0 }, "lru_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
