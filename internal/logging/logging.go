// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "crypto-trader", "logs", "engine.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// LogSignal logs an emitted trading signal.
func LogSignal(logger zerolog.Logger, symbol, side, source string, confidence float64, reasoning string) {
	logger.Info().
		Str("event", "signal").
		Str("symbol", symbol).
		Str("side", side).
		Str("source", source).
		Float64("confidence", confidence).
		Str("reasoning", reasoning).
		Msg("Signal emitted")
}

// LogTradeOpened logs a position being opened.
func LogTradeOpened(logger zerolog.Logger, symbol, side string, amount, entry, stop float64) {
	logger.Info().
		Str("event", "trade_opened").
		Str("symbol", symbol).
		Str("side", side).
		Float64("amount", amount).
		Float64("entry", entry).
		Float64("stop", stop).
		Msg("Position opened")
}

// LogTradeClosed logs a position being closed.
func LogTradeClosed(logger zerolog.Logger, symbol, status, reason string, pnl float64) {
	logger.Info().
		Str("event", "trade_closed").
		Str("symbol", symbol).
		Str("status", status).
		Str("reason", reason).
		Float64("pnl", pnl).
		Msg("Position closed")
}

// LogRiskDenial logs a risk manager refusal.
func LogRiskDenial(logger zerolog.Logger, symbol, rule, reason string) {
	logger.Info().
		Str("event", "risk_denied").
		Str("symbol", symbol).
		Str("rule", rule).
		Str("reason", reason).
		Msg("Trade denied by risk manager")
}

// LogProviderCall logs an external collaborator call.
func LogProviderCall(logger zerolog.Logger, provider, op string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "provider_call").
		Str("provider", provider).
		Str("op", op).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Provider call failed")
	} else {
		event.Msg("Provider call completed")
	}
}
