// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientData  = errors.New("insufficient data")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOrderRejected     = errors.New("order rejected")
	ErrPositionNotFound  = errors.New("position not found")
	ErrTimeout           = errors.New("operation timed out")
	ErrEngineStopped     = errors.New("engine is stopped")
	ErrUnknownDetector   = errors.New("unknown detector")
	ErrVaultLocked       = errors.New("credential vault is locked")
	ErrSessionExpired    = errors.New("session expired")
	ErrBadPassphrase     = errors.New("invalid passphrase")
)

// InsufficientDataError reports a bar window below the required minimum.
// It is scoped to one (symbol, timeframe) cycle.
type InsufficientDataError struct {
	Symbol    string
	Timeframe string
	Got       int
	Need      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s %s: got %d bars, need %d", e.Symbol, e.Timeframe, e.Got, e.Need)
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// NewInsufficientData creates a new InsufficientDataError.
func NewInsufficientData(symbol, timeframe string, got, need int) *InsufficientDataError {
	return &InsufficientDataError{Symbol: symbol, Timeframe: timeframe, Got: got, Need: need}
}

// ProviderError represents a failed call to an external collaborator
// (market data, trading execution, sentiment). It aborts the current symbol's
// cycle only and never alters risk state.
type ProviderError struct {
	Provider string
	Op       string
	Symbol   string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s] %s %s: %v", e.Provider, e.Op, e.Symbol, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError.
func NewProviderError(provider, op, symbol string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Symbol: symbol, Err: err}
}

// OrderError represents a failure on the order path. It is captured as a
// structured event so that "trade attempted but failed" stays distinguishable
// from "no signal generated".
type OrderError struct {
	Symbol string
	Side   string
	Reason string
	Err    error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error %s %s: %s: %v", e.Side, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error %s %s: %s", e.Side, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(symbol, side, reason string, err error) *OrderError {
	return &OrderError{Symbol: symbol, Side: side, Reason: reason, Err: err}
}

// RiskDenial is a normal, reported outcome: the risk manager refused a trade.
// It carries a human-readable reason and is not treated as a failure.
type RiskDenial struct {
	Symbol string
	Rule   string
	Reason string
}

func (e *RiskDenial) Error() string {
	return fmt.Sprintf("risk denied [%s] %s: %s", e.Rule, e.Symbol, e.Reason)
}

// NewRiskDenial creates a new RiskDenial.
func NewRiskDenial(symbol, rule, reason string) *RiskDenial {
	return &RiskDenial{Symbol: symbol, Rule: rule, Reason: reason}
}

// DetectorError reports a single scoring function failure. The detector is
// degraded to a neutral score and the cycle continues.
type DetectorError struct {
	Detector string
	Err      error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("detector error [%s]: %v", e.Detector, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}

// NewDetectorError creates a new DetectorError.
func NewDetectorError(detector string, err error) *DetectorError {
	return &DetectorError{Detector: detector, Err: err}
}

// ConfigError reports invalid or missing configuration. This is the only
// fatal class: it fails fast at engine construction, never mid-cycle.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
