package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Manager owns the live configuration. Readers take an immutable snapshot per
// cycle; a reload swaps the snapshot atomically, so a running cycle never
// observes a torn value.
type Manager struct {
	v       *viper.Viper
	dir     string
	log     zerolog.Logger
	current atomic.Value // *Config

	mu       sync.Mutex
	onChange []func(*Config)
}

// NewManager loads configuration from dir (created with a template on first
// run) and validates it. Invalid configuration is fatal here, at startup.
func NewManager(dir string, log zerolog.Logger) (*Manager, error) {
	if dir == "" {
		dir = DefaultConfigDir()
	}

	m := &Manager{
		dir: dir,
		log: log.With().Str("component", "config").Logger(),
	}

	cfg, v, err := loadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m.v = v
	m.current.Store(cfg)
	return m, nil
}

// Config returns the current immutable snapshot.
func (m *Manager) Config() *Config {
	return m.current.Load().(*Config)
}

// OnChange registers a callback invoked with each successfully reloaded
// snapshot.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.onChange = append(m.onChange, fn)
	m.mu.Unlock()
}

// Watch starts watching the config file for changes. A reload that fails
// validation is discarded and the previous snapshot stays live.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(fsnotify.Event) {
		cfg := Default()
		if err := m.v.Unmarshal(cfg); err != nil {
			m.log.Error().Err(err).Msg("config reload failed, keeping previous")
			return
		}
		if err := loadCredentials(m.dir, &cfg.Credentials); err != nil {
			m.log.Error().Err(err).Msg("credentials reload failed, keeping previous")
			return
		}
		applyEnvOverrides(cfg)
		if err := cfg.Validate(); err != nil {
			m.log.Error().Err(err).Msg("reloaded config invalid, keeping previous")
			return
		}

		m.current.Store(cfg)
		m.log.Info().Msg("configuration reloaded")

		m.mu.Lock()
		callbacks := make([]func(*Config), len(m.onChange))
		copy(callbacks, m.onChange)
		m.mu.Unlock()
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	m.v.WatchConfig()
}

func loadDir(dir string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	cfg := Default()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := writeTemplate(dir); werr != nil {
				return nil, nil, fmt.Errorf("creating config template: %w", werr)
			}
			if rerr := v.ReadInConfig(); rerr != nil {
				return nil, nil, rerr
			}
		} else {
			return nil, nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("parsing config.toml: %w", err)
	}
	if err := loadCredentials(dir, &cfg.Credentials); err != nil {
		return nil, nil, fmt.Errorf("loading credentials.toml: %w", err)
	}
	applyEnvOverrides(cfg)

	return cfg, v, nil
}

const configTemplate = `# crypto-trader configuration

[trading]
mode = "paper"               # "live" or "paper"
symbols = ["BTCUSDT", "ETHUSDT"]
min_confidence = 0.65
signal_interval_sec = 30
monitor_interval_sec = 10
initial_balance = 10000.0
provider_timeout_sec = 15

[risk]
max_positions = 3
max_daily_loss = 500.0
risk_per_trade = 0.02
max_position_size = 10000.0
min_leverage = 2.0
max_leverage = 10.0
cooldown_bars = 20

[detectors.weights]
# Override per-detector weights; unknown keys are rejected.
# trend_follow = 1.0
# market_sentiment = 1.0

[logging]
level = "info"
console = true

[security]
encrypt_credentials = false
`

func writeTemplate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "config.toml")
	return os.WriteFile(path, []byte(configTemplate), 0o644)
}
