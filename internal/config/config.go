// Package config loads the YAML configuration shared by the binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"regime-trader/internal/domain"
	"regime-trader/internal/logging"
	"regime-trader/internal/regime"
	"regime-trader/internal/risk"
	"regime-trader/internal/sizing"
)

var validate = validator.New()

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration.
type Config struct {
	Log      logging.Config `yaml:"log"`
	Backtest BacktestConfig `yaml:"backtest"`
	Regime   RegimeConfig   `yaml:"regime"`
	Sizing   SizingConfig   `yaml:"sizing"`
	Risk     RiskConfig     `yaml:"risk"`
	Strategy StrategyConfig `yaml:"strategy"`
	Decision DecisionConfig `yaml:"decision"`
	Storage  StorageConfig  `yaml:"storage"`
	Live     LiveConfig     `yaml:"live"`
	Feed     FeedConfig     `yaml:"feed"`
}

// BacktestConfig holds run-level settings.
type BacktestConfig struct {
	StrategyID     string  `yaml:"strategy_id" default:"adaptive" validate:"required"`
	InitialCapital float64 `yaml:"initial_capital" default:"100000" validate:"gt=0"`
	SlippageBps    float64 `yaml:"slippage_bps" default:"5" validate:"gte=0"`
	CommissionBps  float64 `yaml:"commission_bps" default:"2" validate:"gte=0"`
	Scenario       string  `yaml:"scenario" validate:"omitempty,oneof=optimistic realistic pessimistic degraded"` // overrides the bps fields
	Sizing         string  `yaml:"sizing" default:"unit" validate:"oneof=unit notional"`
	MarketFile     string  `yaml:"market_file"`
	SignalsFile    string  `yaml:"signals_file"`
}

// RegimeConfig mirrors regime.Config.
type RegimeConfig struct {
	VolatilityWindow    int     `yaml:"volatility_window" default:"20" validate:"gte=2"`
	TrendFastWindow     int     `yaml:"trend_fast_window" default:"10" validate:"gte=1"`
	TrendSlowWindow     int     `yaml:"trend_slow_window" default:"30" validate:"gtefield=TrendFastWindow"`
	AutocorrLag         int     `yaml:"autocorr_lag" default:"5" validate:"gte=1"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" default:"0.7" validate:"gte=0,lte=1"`
}

// SizingConfig mirrors sizing.Config.
type SizingConfig struct {
	BasePositionPct  float64 `yaml:"base_position_pct" default:"0.1" validate:"gt=0,lte=1"`
	MaxPositionPct   float64 `yaml:"max_position_pct" default:"0.2" validate:"gt=0,lte=1"`
	MinConfidence    float64 `yaml:"min_confidence" default:"0.3" validate:"gte=0,lte=1"`
	MaxTotalExposure float64 `yaml:"max_total_exposure" default:"0.8" validate:"gt=0,lte=1"`
	MinStrength      float64 `yaml:"min_strength" default:"0.01" validate:"gte=0,lte=1"`
	TargetVol        float64 `yaml:"target_vol" default:"0.15" validate:"gt=0"`
}

// RiskConfig holds limiter and drawdown settings.
type RiskConfig struct {
	MaxPositionPct      float64 `yaml:"max_position_pct" default:"0.2" validate:"gt=0,lte=1"`
	MaxTotalExposurePct float64 `yaml:"max_total_exposure_pct" default:"0.8" validate:"gt=0,lte=1"`
	ReductionThreshold  float64 `yaml:"reduction_threshold" default:"0.15" validate:"gt=0,lte=1"`
	SafeModeThreshold   float64 `yaml:"safe_mode_threshold" default:"0.25" validate:"gtfield=ReductionThreshold,lte=1"`
}

// StrategyConfig overrides the adaptive table per regime wire name.
type StrategyConfig struct {
	Overrides map[string]RegimeOverride `yaml:"overrides" validate:"dive,keys,oneof=trending mean-reverting high-volatility low-volatility uncertain,endkeys"`
}

// RegimeOverride replaces individual fields of one regime entry.
type RegimeOverride struct {
	PositionMultiplier *float64           `yaml:"position_multiplier"`
	StopLossPct        *float64           `yaml:"stop_loss_pct"`
	TakeProfitPct      *float64           `yaml:"take_profit_pct"`
	SignalThreshold    *float64           `yaml:"signal_threshold"`
	MaxHoldingPeriod   *time.Duration     `yaml:"max_holding_period"`
	SignalWeights      map[string]float64 `yaml:"signal_weights"`
}

// DecisionConfig holds GO/NO-GO thresholds.
type DecisionConfig struct {
	MinSharpe       float64 `yaml:"min_sharpe" default:"1.0"`
	MaxDrawdown     float64 `yaml:"max_drawdown" default:"0.25" validate:"gte=0,lte=1"`
	MinTrades       int     `yaml:"min_trades" default:"10" validate:"gte=0"`
	MinWinRate      float64 `yaml:"min_win_rate" default:"0.4" validate:"gte=0,lte=1"`
	ConfidenceLevel float64 `yaml:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
}

// StorageConfig selects where results are persisted.
type StorageConfig struct {
	Backend       string     `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
	PostgresDSN   string     `yaml:"postgres_dsn" validate:"required_if=Backend postgres"`
	ClickHouseDSN string     `yaml:"clickhouse_dsn" validate:"required_if=Backend postgres"`
	PostgresPool  PoolConfig `yaml:"postgres_pool"`
}

// PoolConfig sizes the Postgres connection pool.
type PoolConfig struct {
	MaxConns          int32         `yaml:"max_conns" default:"10" validate:"gte=1"`
	MinConns          int32         `yaml:"min_conns" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime" default:"1h" validate:"gte=0"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" default:"5m" validate:"gte=0"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" validate:"gte=0"`
}

// LiveConfig holds paper/live trading settings.
type LiveConfig struct {
	AccountID       string        `yaml:"account_id" default:"paper"`
	Symbols         []string      `yaml:"symbols"`
	PositionLimit   float64       `yaml:"position_limit" default:"200" validate:"gt=0"`
	MaxRetries      int           `yaml:"max_retries" default:"3" validate:"gte=1"`
	RetryPriceStep  float64       `yaml:"retry_price_step" default:"0.001" validate:"gte=0"`
	MaxRejections   int           `yaml:"max_rejections" default:"3" validate:"gte=1"`
	OrdersPerSecond float64       `yaml:"orders_per_second" default:"5" validate:"gt=0"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"30s"`
	ReconcileEvery  time.Duration `yaml:"reconcile_every" default:"1m"`
	MetricsAddr     string        `yaml:"metrics_addr" default:":9102"`
}

// FeedConfig holds websocket feed settings.
type FeedConfig struct {
	URL            string        `yaml:"url" validate:"omitempty,url"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"15s"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"1s"`
	MaxReconnect   time.Duration `yaml:"max_reconnect_delay" default:"30s"`
	BufferSize     int           `yaml:"buffer_size" default:"256" validate:"gte=1"`
}

// Default returns the configuration with every documented default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// Static tags; a failure here is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file. Defaults are applied
// before decoding so explicit zero values in the file are kept.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes into a validated Config.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REGIME_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("REGIME_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("REGIME_CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("REGIME_FEED_URL"); v != "" {
		c.Feed.URL = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ExecutionScenario resolves the cost model for a backtest run.
func (b BacktestConfig) ExecutionScenario() (domain.ExecutionScenario, error) {
	if b.Scenario != "" {
		return domain.ScenarioByID(b.Scenario)
	}
	return domain.ExecutionScenario{
		ScenarioID:    "custom",
		SlippageBps:   b.SlippageBps,
		CommissionBps: b.CommissionBps,
	}, nil
}

// Detector converts to regime.Config.
func (r RegimeConfig) Detector() regime.Config {
	return regime.Config{
		VolatilityWindow:    r.VolatilityWindow,
		TrendFastWindow:     r.TrendFastWindow,
		TrendSlowWindow:     r.TrendSlowWindow,
		AutocorrLag:         r.AutocorrLag,
		ConfidenceThreshold: r.ConfidenceThreshold,
	}
}

// Sizer converts to sizing.Config.
func (s SizingConfig) Sizer() sizing.Config {
	return sizing.Config{
		BasePositionPct:  s.BasePositionPct,
		MaxPositionPct:   s.MaxPositionPct,
		MinConfidence:    s.MinConfidence,
		MaxTotalExposure: s.MaxTotalExposure,
		MinStrength:      s.MinStrength,
		TargetVol:        s.TargetVol,
	}
}

// Limits converts to risk.LimitConfig.
func (r RiskConfig) Limits() risk.LimitConfig {
	return risk.LimitConfig{
		MaxPositionPct:      r.MaxPositionPct,
		MaxTotalExposurePct: r.MaxTotalExposurePct,
	}
}

// Drawdown converts to risk.DrawdownConfig.
func (r RiskConfig) Drawdown() risk.DrawdownConfig {
	return risk.DrawdownConfig{
		ReductionThreshold: r.ReductionThreshold,
		SafeModeThreshold:  r.SafeModeThreshold,
	}
}
