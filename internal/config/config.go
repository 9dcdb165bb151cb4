// Package config provides configuration management for the trading engine.
// Invalid configuration fails at load time, never mid-cycle.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/errors"
)

// Config holds all engine configuration.
type Config struct {
	Trading     TradingConfig  `mapstructure:"trading"`
	Risk        RiskConfig     `mapstructure:"risk"`
	Detectors   DetectorConfig `mapstructure:"detectors"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Security    SecurityConfig `mapstructure:"security"`
	Credentials Credentials    `mapstructure:"-"` // loaded separately
}

// TradingConfig holds execution-loop configuration.
type TradingConfig struct {
	Mode               string   `mapstructure:"mode" validate:"omitempty,oneof=live paper"`
	Symbols            []string `mapstructure:"symbols" validate:"min=1,dive,required"`
	MinConfidence      float64  `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	SignalIntervalSec  int      `mapstructure:"signal_interval_sec" validate:"gt=0"`
	MonitorIntervalSec int      `mapstructure:"monitor_interval_sec" validate:"gt=0"`
	InitialBalance     float64  `mapstructure:"initial_balance" validate:"gt=0"`
	ProviderTimeoutSec int      `mapstructure:"provider_timeout_sec" validate:"gt=0"`
}

// RiskConfig holds the risk manager thresholds.
type RiskConfig struct {
	MaxPositions    int     `mapstructure:"max_positions" validate:"gt=0"`
	MaxDailyLoss    float64 `mapstructure:"max_daily_loss" validate:"gt=0"`
	RiskPerTrade    float64 `mapstructure:"risk_per_trade" validate:"gt=0,lte=0.1"`
	MaxPositionSize float64 `mapstructure:"max_position_size" validate:"gt=0"`
	MinLeverage     float64 `mapstructure:"min_leverage" validate:"gte=1"`
	MaxLeverage     float64 `mapstructure:"max_leverage" validate:"gtefield=MinLeverage"`
	CooldownBars    int     `mapstructure:"cooldown_bars" validate:"gt=0"`
}

// DetectorConfig carries the per-detector weight table. Keys must name known
// detectors; values may change between cycles via hot reload.
type DetectorConfig struct {
	Weights map[string]float64 `mapstructure:"weights"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error"`
	File    string `mapstructure:"file"`
	Console bool   `mapstructure:"console"`
}

// SecurityConfig holds credential handling configuration.
type SecurityConfig struct {
	EncryptCredentials bool          `mapstructure:"encrypt_credentials"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
}

// Credentials holds API credentials, loaded from credentials.toml or the
// environment.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds the sentiment provider key.
type OpenAICredentials struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/crypto-trader"
	}
	return filepath.Join(home, ".config", "crypto-trader")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			Mode:               "paper",
			Symbols:            []string{"BTCUSDT", "ETHUSDT"},
			MinConfidence:      0.65,
			SignalIntervalSec:  30,
			MonitorIntervalSec: 10,
			InitialBalance:     10000,
			ProviderTimeoutSec: 15,
		},
		Risk: RiskConfig{
			MaxPositions:    3,
			MaxDailyLoss:    500,
			RiskPerTrade:    0.02,
			MaxPositionSize: 10000,
			MinLeverage:     2,
			MaxLeverage:     10,
			CooldownBars:    20,
		},
		Detectors: DetectorConfig{Weights: map[string]float64{}},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

var validate = validator.New()

// Validate checks the whole configuration tree. The first violation is
// returned as a ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			ve := verrs[0]
			return errors.NewConfigError(ve.Namespace(), ve.Value(),
				fmt.Sprintf("failed %q constraint", ve.Tag()))
		}
		return err
	}

	if _, err := detectors.ParseWeights(c.Detectors.Weights); err != nil {
		return errors.NewConfigError("detectors.weights", c.Detectors.Weights, err.Error())
	}
	return nil
}

// DetectorWeights returns the validated weight table. Call Validate first.
func (c *Config) DetectorWeights() detectors.Weights {
	w, err := detectors.ParseWeights(c.Detectors.Weights)
	if err != nil {
		return detectors.DefaultWeights()
	}
	return w
}

// IsPaperMode reports whether paper trading is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode != "live"
}

// ProviderTimeout returns the per-call timeout for external collaborators.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Trading.ProviderTimeoutSec) * time.Second
}

// SignalInterval returns the signal-cycle cadence.
func (c *Config) SignalInterval() time.Duration {
	return time.Duration(c.Trading.SignalIntervalSec) * time.Second
}

// MonitorInterval returns the position-monitor cadence.
func (c *Config) MonitorInterval() time.Duration {
	return time.Duration(c.Trading.MonitorIntervalSec) * time.Second
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	if err := v.Unmarshal(creds); err != nil {
		return err
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}
