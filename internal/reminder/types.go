package reminder

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("reminder not found")
	ErrEmptyTitle = errors.New("reminder title is empty")
)

// DefaultRemindBefore is the heads-up lead time applied when the caller
// doesn't pick one.
const DefaultRemindBefore = 10 * time.Minute

// PayloadKind tags what a reminder is about. The dispatcher treats all kinds
// uniformly; only delivery-side formatting looks at it.
type PayloadKind string

const (
	KindNote    PayloadKind = "note"
	KindMeal    PayloadKind = "meal"
	KindWorkout PayloadKind = "workout"
)

// ParseKind maps free-form input to a known kind, defaulting to note.
func ParseKind(s string) PayloadKind {
	switch PayloadKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMeal:
		return KindMeal
	case KindWorkout:
		return KindWorkout
	default:
		return KindNote
	}
}

// Record is the persisted reminder entity.
//
// TriggerAt and CreatedAt are always UTC. Title/Payload/Kind belong to the
// creator and are never mutated after creation. IsTriggered is monotonic:
// it flips false -> true exactly once, only via Store.Claim, and TriggeredAt
// is non-nil iff IsTriggered is true. LeadSent carries the same monotonic
// contract for the optional heads-up notification.
type Record struct {
	ID      int64
	ChatID  int64
	Title   string
	Payload string
	Kind    PayloadKind

	TriggerAt    time.Time
	RemindBefore time.Duration
	LeadSent     bool

	IsTriggered bool
	TriggeredAt *time.Time
	CreatedAt   time.Time
}

// Pending reports whether the record is still waiting to fire.
func (r *Record) Pending() bool { return !r.IsTriggered }

// DueAt reports whether the record should fire at the given instant.
func (r *Record) DueAt(now time.Time) bool {
	return !r.IsTriggered && !r.TriggerAt.After(now)
}

// LeadDueAt reports whether the heads-up notification should fire at the
// given instant. No heads-up is sent once the main trigger is itself due;
// the final notification supersedes it.
func (r *Record) LeadDueAt(now time.Time) bool {
	if r.IsTriggered || r.LeadSent || r.RemindBefore <= 0 {
		return false
	}
	return !r.TriggerAt.Add(-r.RemindBefore).After(now) && r.TriggerAt.After(now)
}
