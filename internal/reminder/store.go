package reminder

import (
	"context"
	"errors"
	"strings"
	"time"

	"remindbot/pkg/logx"
)

// StoreConfig configures the reminder store.
//
// Driver values:
//   - "memory": in-process map backend (tests, throwaway runs)
//   - "sqlite": SQLite database file (survives restarts; safe across
//     multiple dispatcher processes via conditional UPDATEs)
//
// An empty driver defaults to "memory".
type StoreConfig struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence contract for reminder records.
//
// Claim and ClaimLead are atomic conditional transitions: for any record id,
// at most one caller ever gets (true, nil) from each, no matter how many
// workers or processes call concurrently. That CAS is the dispatcher's only
// synchronization point; it must involve no I/O beyond the single
// conditional write and must never be held across delivery.
type Store interface {
	// Create persists a new record and assigns its ID.
	Create(ctx context.Context, r *Record) error
	// Get returns a record by id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*Record, error)
	// Due returns unclaimed records with trigger_at <= now. Order is
	// unspecified.
	Due(ctx context.Context, now time.Time) ([]Record, error)
	// LeadDue returns records whose heads-up window has opened but whose
	// main trigger is still in the future.
	LeadDue(ctx context.Context, now time.Time) ([]Record, error)
	// Claim transitions is_triggered false -> true and stamps triggered_at.
	// Returns false when the record was already claimed or is gone.
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)
	// ClaimLead transitions lead_sent false -> true.
	ClaimLead(ctx context.Context, id int64) (bool, error)
	// ListPending returns unclaimed future reminders for one chat, soonest
	// first.
	ListPending(ctx context.Context, chatID int64, now time.Time) ([]Record, error)
	// Delete removes a pending record owned by chatID. Claimed records are
	// kept for the audit trail.
	Delete(ctx context.Context, id, chatID int64) (bool, error)
	Close() error
}

// OpenStore initializes the configured store.
func OpenStore(cfg StoreConfig, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
