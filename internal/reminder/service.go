package reminder

import (
	"context"
	"strings"
	"sync"
	"time"

	"remindbot/internal/timeintent"
	"remindbot/pkg/logx"
)

// CreateInput is the record creation boundary: a title plus a raw time
// intent, never a pre-computed timestamp.
type CreateInput struct {
	ChatID       int64
	Title        string
	Payload      string
	Kind         PayloadKind
	TimeIntent   string
	RemindBefore time.Duration // 0 disables the heads-up
}

// Service resolves intents and persists records. It owns the process-wide
// display timezone; the dispatcher and bot layer share one instance.
type Service struct {
	store Store
	log   logx.Logger

	mu      sync.RWMutex
	display *time.Location

	// now is swappable for deterministic tests. Only the boundary reads the
	// clock; Resolve itself takes the instant as a parameter.
	now func() time.Time
}

func NewService(store Store, display *time.Location, log logx.Logger) *Service {
	if display == nil {
		display = time.UTC
	}
	return &Service{
		store:   store,
		log:     log,
		display: display,
		now:     time.Now,
	}
}

// DisplayZone returns the current display timezone.
func (s *Service) DisplayZone() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.display
}

// SetDisplayZone swaps the display timezone (config hot reload). Stored
// trigger instants are UTC and are not rewritten.
func (s *Service) SetDisplayZone(loc *time.Location) {
	if loc == nil {
		return
	}
	s.mu.Lock()
	s.display = loc
	s.mu.Unlock()
}

// Create resolves the intent and persists the record. Resolution failures
// surface synchronously and nothing is written (fail-closed).
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	ref := s.now().UTC()

	at, err := timeintent.Resolve(in.TimeIntent, ref, s.DisplayZone())
	if err != nil {
		return nil, err
	}

	kind := in.Kind
	if kind == "" {
		kind = KindNote
	}
	before := in.RemindBefore
	if before < 0 {
		before = 0
	}

	rec := &Record{
		ChatID:       in.ChatID,
		Title:        title,
		Payload:      in.Payload,
		Kind:         kind,
		TriggerAt:    at,
		RemindBefore: before,
		CreatedAt:    ref,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("reminder created",
		logx.Int64("id", rec.ID),
		logx.Int64("chat_id", rec.ChatID),
		logx.Time("trigger_at", rec.TriggerAt),
		logx.String("kind", string(rec.Kind)))
	return rec, nil
}

// ListPending returns the chat's unclaimed future reminders, soonest first.
func (s *Service) ListPending(ctx context.Context, chatID int64) ([]Record, error) {
	return s.store.ListPending(ctx, chatID, s.now().UTC())
}

// Cancel removes a pending reminder owned by the chat. Claimed reminders
// cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id, chatID int64) (bool, error) {
	ok, err := s.store.Delete(ctx, id, chatID)
	if err == nil && ok {
		s.log.Info("reminder cancelled", logx.Int64("id", id), logx.Int64("chat_id", chatID))
	}
	return ok, err
}

// Localize formats an instant in the configured display timezone.
func (s *Service) Localize(t time.Time) string {
	return timeintent.Localize(t, s.DisplayZone())
}

// SetNowFunc overrides the boundary clock. Tests only.
func (s *Service) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}
