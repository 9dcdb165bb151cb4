package security

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"crypto-trader/internal/errors"
)

// AuditEventType identifies the kind of action recorded in the audit trail.
type AuditEventType string

const (
	AuditEngineStarted AuditEventType = "ENGINE_STARTED"
	AuditEngineStopped AuditEventType = "ENGINE_STOPPED"

	AuditSignalEmitted AuditEventType = "SIGNAL_EMITTED"
	AuditRiskDenied    AuditEventType = "RISK_DENIED"

	AuditOrderPlaced    AuditEventType = "ORDER_PLACED"
	AuditOrderRejected  AuditEventType = "ORDER_REJECTED"
	AuditPositionOpened AuditEventType = "POSITION_OPENED"
	AuditPositionClosed AuditEventType = "POSITION_CLOSED"

	AuditConfigReloaded   AuditEventType = "CONFIG_RELOADED"
	AuditCredentialAccess AuditEventType = "CREDENTIAL_ACCESS"
	AuditAuthFailed       AuditEventType = "AUTH_FAILED"
)

// AuditEvent is a single append-only audit record.
type AuditEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	EventType AuditEventType         `json:"event_type"`
	Symbol    string                 `json:"symbol,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Success   bool                   `json:"success"`
	ErrorMsg  string                 `json:"error,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// AuditLogger appends trading actions to a size-rotated JSON-lines file.
type AuditLogger struct {
	writer    *lumberjack.Logger
	mu        sync.Mutex
	sessionID string
}

// AuditConfig holds audit logger configuration.
type AuditConfig struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultAuditConfig keeps a year of compressed audit history under the
// user config directory.
func DefaultAuditConfig() AuditConfig {
	home, _ := os.UserHomeDir()
	return AuditConfig{
		LogDir:     filepath.Join(home, ".config", "crypto-trader", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewAuditLogger creates an audit logger writing to cfg.LogDir.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating audit directory")
	}
	return &AuditLogger{
		writer: &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "audit.log"),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		},
		sessionID: newSessionID(),
	}, nil
}

// Log appends an audit event. Timestamp and session ID are filled in here.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.Timestamp = time.Now().UTC()
	event.SessionID = al.sessionID

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "serializing audit event")
	}
	if _, err := al.writer.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "writing audit event")
	}
	return nil
}

// LogSignal records an emitted trade signal and whether it was auto-executed.
func (al *AuditLogger) LogSignal(ctx context.Context, symbol, action, source string, confidence float64, executed bool) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditSignalEmitted,
		Symbol:    symbol,
		Action:    action,
		Success:   true,
		Details: map[string]interface{}{
			"source":     source,
			"confidence": confidence,
			"executed":   executed,
		},
	})
}

// LogRiskDenial records a trade blocked by the risk manager.
func (al *AuditLogger) LogRiskDenial(ctx context.Context, symbol, rule, reason string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditRiskDenied,
		Symbol:    symbol,
		Action:    rule,
		Success:   false,
		ErrorMsg:  reason,
	})
}

// LogOrderPlaced records an order submission.
func (al *AuditLogger) LogOrderPlaced(ctx context.Context, orderID, symbol, side string, amount, price float64, success bool, errorMsg string) error {
	eventType := AuditOrderPlaced
	if !success {
		eventType = AuditOrderRejected
	}
	return al.Log(ctx, AuditEvent{
		EventType: eventType,
		Symbol:    symbol,
		Action:    side,
		Success:   success,
		ErrorMsg:  errorMsg,
		Details: map[string]interface{}{
			"order_id": orderID,
			"amount":   amount,
			"price":    price,
		},
	})
}

// LogPositionClosed records a position exit and its realized PnL.
func (al *AuditLogger) LogPositionClosed(ctx context.Context, symbol, reason string, pnl float64) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditPositionClosed,
		Symbol:    symbol,
		Action:    reason,
		Success:   true,
		Details: map[string]interface{}{
			"pnl": pnl,
		},
	})
}

// LogConfigReloaded records a live configuration change.
func (al *AuditLogger) LogConfigReloaded(ctx context.Context, success bool, errorMsg string) error {
	return al.Log(ctx, AuditEvent{
		EventType: AuditConfigReloaded,
		Success:   success,
		ErrorMsg:  errorMsg,
	})
}

// Close flushes and closes the underlying log file.
func (al *AuditLogger) Close() error {
	return al.writer.Close()
}

func newSessionID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
