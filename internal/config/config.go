package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"arb-engine/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Venues    []VenueConfig   `mapstructure:"venues"`
	Bridges   []BridgeConfig  `mapstructure:"bridges"`
	Weights   WeightsConfig   `mapstructure:"weights"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates the optional PostgreSQL audit store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// EngineConfig holds the profitability and sizing parameters.
type EngineConfig struct {
	Pairs                []string `mapstructure:"pairs"`
	SlippageTolerance    float64  `mapstructure:"slippage_tolerance"`
	TransactionFee       float64  `mapstructure:"transaction_fee"`
	GasCost              float64  `mapstructure:"gas_cost"`
	LiquidityThreshold   float64  `mapstructure:"liquidity_threshold"`
	Notional             float64  `mapstructure:"notional"`
	MaxLiquidityFraction float64  `mapstructure:"max_liquidity_fraction"`
	Concurrency          int      `mapstructure:"concurrency"`
	Triangular           bool     `mapstructure:"triangular"`
}

// FetchConfig bounds the quote-fetch collaborator.
type FetchConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
}

// VenueConfig describes one decentralized exchange quoting prices.
type VenueConfig struct {
	Name        string  `mapstructure:"name"`
	ChainID     int64   `mapstructure:"chain_id"`
	QuoteURL    string  `mapstructure:"quote_url"`
	TakerFeeBps float64 `mapstructure:"taker_fee_bps"`
}

// BridgeConfig describes one cross-chain transfer candidate.
type BridgeConfig struct {
	Name       string  `mapstructure:"name"`
	ChainIDs   []int64 `mapstructure:"chain_ids"`
	FeeUSD     float64 `mapstructure:"fee_usd"`
	LatencySec float64 `mapstructure:"latency_sec"`
	Available  bool    `mapstructure:"available"`
}

// WeightTable names the factors of one scoring decision.
type WeightTable struct {
	GasPrice  float64 `mapstructure:"gas_price"`
	Fee       float64 `mapstructure:"fee"`
	Liquidity float64 `mapstructure:"liquidity"`
	Latency   float64 `mapstructure:"latency"`
	Extras    float64 `mapstructure:"extras"`
}

// WeightsConfig carries one weight table per decision kind.
type WeightsConfig struct {
	Swap   WeightTable `mapstructure:"swap"`
	Bridge WeightTable `mapstructure:"bridge"`
}

// EthereumConfig covers on-chain data access and signing. PrivateKey is a
// reference resolved from the environment and is never logged.
type EthereumConfig struct {
	RPCURLs         map[string]string `mapstructure:"rpc_urls"`
	PrivateKey      string            `mapstructure:"private_key"`
	ContractAddress string            `mapstructure:"contract_address"`
	Recipient       string            `mapstructure:"recipient"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
}

// RelayConfig captures private-relay submission behaviour.
type RelayConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	TargetBlockOffset   uint64        `mapstructure:"target_block_offset"`
	SubmitTimeout       time.Duration `mapstructure:"submit_timeout"`
	AttemptDeadline     time.Duration `mapstructure:"attempt_deadline"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	UserAgent           string        `mapstructure:"user_agent"`
	DryRun              bool          `mapstructure:"dry_run"`
}

// AlertingConfig defines trade notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram notification channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// MetricsConfig enables the Prometheus endpoint when a listen address is set.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ARBENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "arbengine")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("engine.slippage_tolerance", 0.01)
	v.SetDefault("engine.transaction_fee", 0.0001)
	v.SetDefault("engine.gas_cost", 0.0005)
	v.SetDefault("engine.liquidity_threshold", 100.0)
	v.SetDefault("engine.notional", 1000.0)
	v.SetDefault("engine.max_liquidity_fraction", 0.1)
	v.SetDefault("engine.concurrency", 10)
	v.SetDefault("engine.triangular", true)

	v.SetDefault("fetch.request_timeout", "10s")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff", "500ms")
	v.SetDefault("fetch.rate_per_second", 5.0)
	v.SetDefault("fetch.burst", 5)

	// Scoring weights; one named table per decision kind so the same
	// scorer evaluates swap venues and bridges.
	v.SetDefault("weights.swap.gas_price", 0.5)
	v.SetDefault("weights.swap.liquidity", 0.3)
	v.SetDefault("weights.swap.extras", 0.2)
	v.SetDefault("weights.bridge.gas_price", 0.3)
	v.SetDefault("weights.bridge.fee", 0.4)
	v.SetDefault("weights.bridge.latency", 0.2)
	v.SetDefault("weights.bridge.extras", 0.1)

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("relay.target_block_offset", 1)
	v.SetDefault("relay.submit_timeout", "10s")
	v.SetDefault("relay.attempt_deadline", "90s")
	v.SetDefault("relay.confirm_poll_interval", "3s")
	v.SetDefault("relay.user_agent", "arbengine/1.0")
	v.SetDefault("relay.dry_run", false)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs sanity checks; failures here abort before the loop starts.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Engine.SlippageTolerance < 0 || c.Engine.SlippageTolerance >= 1 {
		return fmt.Errorf("engine.slippage_tolerance must be in [0, 1)")
	}
	if c.Engine.TransactionFee < 0 {
		return fmt.Errorf("engine.transaction_fee cannot be negative")
	}
	if c.Engine.GasCost < 0 {
		return fmt.Errorf("engine.gas_cost cannot be negative")
	}
	if c.Engine.LiquidityThreshold < 0 {
		return fmt.Errorf("engine.liquidity_threshold cannot be negative")
	}
	if c.Engine.Notional <= 0 {
		return fmt.Errorf("engine.notional must be greater than zero")
	}
	if c.Engine.MaxLiquidityFraction <= 0 || c.Engine.MaxLiquidityFraction > 1 {
		return fmt.Errorf("engine.max_liquidity_fraction must be in (0, 1]")
	}
	if c.Engine.Concurrency <= 0 {
		return fmt.Errorf("engine.concurrency must be greater than zero")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if err := c.Weights.Swap.validate("weights.swap"); err != nil {
		return err
	}
	if err := c.Weights.Bridge.validate("weights.bridge"); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Venues))
	for _, venue := range c.Venues {
		if venue.Name == "" {
			return fmt.Errorf("venue name cannot be empty")
		}
		if _, dup := seen[venue.Name]; dup {
			return fmt.Errorf("duplicate venue %q", venue.Name)
		}
		seen[venue.Name] = struct{}{}
		if venue.ChainID <= 0 {
			return fmt.Errorf("venue %q: chain_id must be positive", venue.Name)
		}
	}
	if c.Relay.BaseURL != "" && !c.Relay.DryRun {
		if c.Ethereum.PrivateKey == "" {
			return fmt.Errorf("ethereum.private_key is required when relay submission is enabled")
		}
		if c.Ethereum.ContractAddress == "" {
			return fmt.Errorf("ethereum.contract_address is required when relay submission is enabled")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

func (w WeightTable) validate(name string) error {
	if w.GasPrice < 0 || w.Fee < 0 || w.Liquidity < 0 || w.Latency < 0 || w.Extras < 0 {
		return fmt.Errorf("%s weights cannot be negative", name)
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// RPCURLFor returns the configured RPC endpoint for a chain, if any.
func (c *EthereumConfig) RPCURLFor(chainID int64) string {
	if c.RPCURLs == nil {
		return ""
	}
	return c.RPCURLs[fmt.Sprintf("%d", chainID)]
}
