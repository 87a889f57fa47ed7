// Package storage provides the optional audit trail: a durable record of
// reminder operations (create/delete/fire/trigger) and bill/presence
// events, separate from the reminder snapshot itself.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "chorebot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free JSONL backend
//   - "sqlite": SQLite database file (build with -tags sqlite)
//
// If Driver is empty or "none", the audit trail is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one reminder or subsystem action. Keep it compact and
// schema-stable.
type AuditEntry struct {
	At         time.Time
	ActorID    int64
	Action     string
	ReminderID int64
	Detail     string
	Error      string
}

// Store is the minimal audit persistence API.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) if the
// audit trail is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
