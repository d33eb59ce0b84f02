package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
engine:
  pairs: ["WETH/USDC"]
venues:
  - name: uniswap_v2
    chain_id: 1
  - name: sushiswap
    chain_id: 1
`))
	require.NoError(t, err)

	assert.Equal(t, "arbengine", cfg.App.Name)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.Interval)
	assert.InDelta(t, 0.01, cfg.Engine.SlippageTolerance, 1e-12)
	assert.InDelta(t, 0.0001, cfg.Engine.TransactionFee, 1e-12)
	assert.InDelta(t, 0.0005, cfg.Engine.GasCost, 1e-12)
	assert.InDelta(t, 100.0, cfg.Engine.LiquidityThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Engine.Concurrency)
	assert.True(t, cfg.Engine.Triangular)
	assert.Equal(t, uint64(1), cfg.Relay.TargetBlockOffset)

	assert.InDelta(t, 0.5, cfg.Weights.Swap.GasPrice, 1e-12)
	assert.InDelta(t, 0.3, cfg.Weights.Swap.Liquidity, 1e-12)
	assert.InDelta(t, 0.4, cfg.Weights.Bridge.Fee, 1e-12)
	assert.InDelta(t, 0.2, cfg.Weights.Bridge.Latency, 1e-12)
}

func TestLoadParsesFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
scheduler:
  interval: 30s
engine:
  pairs: ["WETH/USDC", "WBTC/USDC"]
  slippage_tolerance: 0.02
  notional: 2500
venues:
  - name: uniswap_v2
    chain_id: 1
    quote_url: https://quotes.example/uni
    taker_fee_bps: 30
  - name: pancakeswap
    chain_id: 56
    quote_url: https://quotes.example/cake
bridges:
  - name: stargate
    chain_ids: [1, 56]
    fee_usd: 1.5
    latency_sec: 60
    available: true
ethereum:
  rpc_urls:
    "1": https://rpc.example/eth
    "56": https://rpc.example/bsc
`))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Len(t, cfg.Engine.Pairs, 2)
	assert.InDelta(t, 0.02, cfg.Engine.SlippageTolerance, 1e-12)
	require.Len(t, cfg.Venues, 2)
	assert.Equal(t, int64(56), cfg.Venues[1].ChainID)
	require.Len(t, cfg.Bridges, 1)
	assert.True(t, cfg.Bridges[0].Available)
	assert.Equal(t, "https://rpc.example/bsc", cfg.Ethereum.RPCURLFor(56))
	assert.Empty(t, cfg.Ethereum.RPCURLFor(137))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, "scheduler.interval"},
		{"slippage out of range", func(c *Config) { c.Engine.SlippageTolerance = 1.5 }, "slippage_tolerance"},
		{"negative fee", func(c *Config) { c.Engine.TransactionFee = -1 }, "transaction_fee"},
		{"zero notional", func(c *Config) { c.Engine.Notional = 0 }, "notional"},
		{"fraction above one", func(c *Config) { c.Engine.MaxLiquidityFraction = 2 }, "max_liquidity_fraction"},
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, "concurrency"},
		{"negative weight", func(c *Config) { c.Weights.Swap.GasPrice = -0.5 }, "weights.swap"},
		{"duplicate venue", func(c *Config) { c.Venues = append(c.Venues, c.Venues[0]) }, "duplicate venue"},
		{"venue without chain", func(c *Config) { c.Venues[0].ChainID = 0 }, "chain_id"},
		{"live relay without key", func(c *Config) {
			c.Relay.BaseURL = "https://relay.example"
			c.Relay.DryRun = false
			c.Ethereum.PrivateKey = ""
		}, "private_key"},
		{"telegram without token", func(c *Config) {
			c.Alerting.Telegram.Enabled = true
			c.Alerting.Telegram.ChatID = "chat"
		}, "bot_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidConfigPasses(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func validConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{Interval: time.Minute},
		Engine: EngineConfig{
			Pairs:                []string{"WETH/USDC"},
			SlippageTolerance:    0.01,
			TransactionFee:       0.0001,
			GasCost:              0.0005,
			LiquidityThreshold:   100,
			Notional:             1000,
			MaxLiquidityFraction: 0.1,
			Concurrency:          10,
		},
		Fetch:  FetchConfig{MaxAttempts: 3},
		Export: ExportConfig{MaxDataPoints: 1000},
		Venues: []VenueConfig{
			{Name: "uniswap_v2", ChainID: 1},
			{Name: "sushiswap", ChainID: 1},
		},
		Weights: WeightsConfig{
			Swap:   WeightTable{GasPrice: 0.5, Liquidity: 0.3, Extras: 0.2},
			Bridge: WeightTable{GasPrice: 0.3, Fee: 0.4, Latency: 0.2, Extras: 0.1},
		},
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}
	assert.Equal(t, 500, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 50, cfg.ResolveMaxPoints(50))
}
