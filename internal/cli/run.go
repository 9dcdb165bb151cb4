package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crypto-trader/internal/advanced"
	"crypto-trader/internal/aggregator"
	"crypto-trader/internal/analysis/detectors"
	"crypto-trader/internal/broker"
	"crypto-trader/internal/config"
	"crypto-trader/internal/errors"
	"crypto-trader/internal/models"
	"crypto-trader/internal/risk"
	"crypto-trader/internal/security"
	"crypto-trader/internal/store"
	"crypto-trader/internal/strategy"
	"crypto-trader/internal/stream"
	"crypto-trader/internal/trading"
)

func newRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the auto-trading engine",
		Long:  "Start the signal, monitor, and housekeeping loops and trade until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(app)
		},
	}
}

func runEngine(app *App) error {
	mgr, err := config.NewManager(app.ConfigDir, app.Logger)
	if err != nil {
		return err
	}
	cfg := mgr.Config()

	if !cfg.IsPaperMode() {
		app.Logger.Warn().Msg("live trading is not wired to an exchange, falling back to paper mode")
	}

	if cfg.Security.EncryptCredentials {
		if err := loadVaultCredentials(app, cfg); err != nil {
			return err
		}
	}
	if key := cfg.Credentials.OpenAI.APIKey; key != "" {
		app.Logger.Debug().Str("openai_key", security.MaskSecret(key)).Msg("sentiment provider configured")
	}

	hub := stream.NewHub()
	defer hub.Close()

	feed := broker.NewSimFeed(0)
	trader := broker.NewPaperTrader(feed, cfg.Trading.InitialBalance)
	sentiment := sentimentProvider(cfg)

	registry := detectors.NewRegistry(cfg.DetectorWeights())
	strategyEngine := strategy.NewEngine(feed, sentiment, registry, app.Logger)
	advancedEngine := advanced.NewEngine(feed, app.Logger)
	riskManager := risk.NewManager(riskConfig(cfg), app.Logger)
	agg := aggregator.New(strategyEngine, advancedEngine, riskManager, hub, app.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	journal, err := store.OpenJournal(filepath.Join(app.ConfigDir, "journal.db"), app.Logger)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("journal unavailable, trades will not be persisted")
	} else {
		defer journal.Close()
		journal.Consume(ctx, hub)
	}

	audit, err := security.NewAuditLogger(security.DefaultAuditConfig())
	if err != nil {
		app.Logger.Warn().Err(err).Msg("audit log unavailable")
		audit = nil
	} else {
		defer audit.Close()
	}

	engine := trading.NewEngine(mgr.Config, agg, riskManager, trader, feed, hub, audit, app.Logger)

	mgr.OnChange(func(c *config.Config) {
		registry.SetWeights(c.DetectorWeights())
		hub.Emit(stream.EventConfigUpdated, "", nil)
		if audit != nil {
			audit.LogConfigReloaded(ctx, true, "")
		}
		app.Logger.Info().Msg("configuration reloaded")
	})
	mgr.Watch()

	engine.Start()

	color.Green("engine running (mode: %s, symbols: %v)", cfg.Trading.Mode, cfg.Trading.Symbols)
	color.Yellow("press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	color.Yellow("stopping...")
	engine.Stop()
	color.Green("stopped cleanly")
	return nil
}

// loadVaultCredentials unlocks the encrypted credential store and copies the
// keys into the runtime config. A plain credentials.toml found alongside the
// vault is migrated on first unlock.
func loadVaultCredentials(app *App, cfg *config.Config) error {
	passphrase := os.Getenv("CRYPTO_TRADER_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("CRYPTO_TRADER_PASSPHRASE is required when encrypt_credentials is enabled")
	}

	vault := security.NewVault(app.ConfigDir, cfg.Security.SessionTimeout)
	if err := vault.Unlock(passphrase); err != nil {
		return errors.Wrap(err, "unlocking credential vault")
	}
	creds, err := vault.Load()
	if err != nil {
		return errors.Wrap(err, "loading credentials from vault")
	}
	if creds.OpenAI.APIKey != "" {
		cfg.Credentials.OpenAI.APIKey = creds.OpenAI.APIKey
	}
	app.Logger.Info().Msg("credential vault unlocked")
	return nil
}

func sentimentProvider(cfg *config.Config) broker.SentimentProvider {
	if cfg.Credentials.OpenAI.APIKey != "" {
		return broker.NewOpenAISentiment(cfg.Credentials.OpenAI.APIKey, cfg.Credentials.OpenAI.Model)
	}
	return &broker.StaticSentiment{}
}

func riskConfig(cfg *config.Config) risk.Config {
	return risk.Config{
		MaxPositions:    cfg.Risk.MaxPositions,
		MaxDailyLoss:    cfg.Risk.MaxDailyLoss,
		RiskPerTrade:    cfg.Risk.RiskPerTrade,
		MaxPositionSize: cfg.Risk.MaxPositionSize,
		MinLeverage:     cfg.Risk.MinLeverage,
		MaxLeverage:     cfg.Risk.MaxLeverage,
		CooldownBars:    cfg.Risk.CooldownBars,
		BarDuration:     models.AnalysisTimeframes()[1].Duration(),
	}
}
