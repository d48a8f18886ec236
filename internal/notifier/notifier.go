package notifier

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

// Delivery is what the dispatcher hands over once a claim succeeds. The
// localized time is pre-formatted; the collaborator never re-resolves it.
type Delivery struct {
	Target        transport.ChatTarget
	Title         string
	Payload       string
	Kind          reminder.PayloadKind
	LocalizedTime string
	// Lead marks a heads-up notification ahead of the real trigger.
	Lead bool
}

// Deliverer is the delivery collaborator boundary. Implementations own the
// actual channel (chat message, voice call, ...); the dispatcher only
// guarantees each Delivery is handed over at most once.
type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// OperatorNotifier is the operator-facing error channel for failures that
// happen after a claim succeeded (and therefore will not be retried).
type OperatorNotifier interface {
	NotifyOperator(ctx context.Context, text string)
}

type Config struct {
	// RatePerSec caps outgoing sends (Telegram throttles bots).
	RatePerSec int
}

// Service delivers reminders over a chat adapter.
type Service struct {
	adapter transport.Adapter
	log     logx.Logger

	mu       sync.Mutex
	limiter  *rate.Limiter
	operator transport.ChatTarget
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	s := &Service{adapter: adapter, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 3
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

// SetOperatorTarget points the operator error channel at a chat. A zero
// chat id disables it (errors still go to the log).
func (s *Service) SetOperatorTarget(chatID int64, threadID int) {
	s.mu.Lock()
	s.operator = transport.ChatTarget{ChatID: chatID, ThreadID: threadID}
	s.mu.Unlock()
}

func (s *Service) wait(ctx context.Context) error {
	s.mu.Lock()
	lim := s.limiter
	s.mu.Unlock()
	return lim.Wait(ctx)
}

// Deliver sends one reminder message. Errors bubble up to the dispatcher,
// which decides what a post-claim failure means; Deliver itself never
// retries.
func (s *Service) Deliver(ctx context.Context, d Delivery) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	_, err := s.adapter.SendText(ctx, d.Target, formatDelivery(d), &transport.SendOptions{DisablePreview: true})
	if err != nil {
		return err
	}
	s.log.Debug("reminder delivered",
		logx.Int64("chat_id", d.Target.ChatID),
		logx.Bool("lead", d.Lead),
		logx.String("kind", string(d.Kind)))
	return nil
}

// NotifyOperator is best-effort: the log line is the source of truth, the
// chat message is a convenience.
func (s *Service) NotifyOperator(ctx context.Context, text string) {
	s.mu.Lock()
	to := s.operator
	s.mu.Unlock()
	if to.ChatID == 0 {
		return
	}
	if err := s.wait(ctx); err != nil {
		return
	}
	if _, err := s.adapter.SendText(ctx, to, "🚨 "+text, &transport.SendOptions{DisablePreview: true}); err != nil {
		s.log.Warn("operator notification failed", logx.Err(err))
	}
}

// Kind-specific wording lives here, not in the dispatcher: the dispatcher
// treats every record uniformly.
func formatDelivery(d Delivery) string {
	icon := "⏰"
	switch d.Kind {
	case reminder.KindMeal:
		icon = "🍽"
	case reminder.KindWorkout:
		icon = "💪"
	}

	var b strings.Builder
	if d.Lead {
		b.WriteString(icon)
		b.WriteString(" Heads-up: ")
		b.WriteString(d.Title)
		b.WriteString("\nComing up at ")
		b.WriteString(d.LocalizedTime)
	} else {
		b.WriteString(icon)
		b.WriteString(" Reminder: ")
		b.WriteString(d.Title)
		b.WriteString("\nScheduled for ")
		b.WriteString(d.LocalizedTime)
	}
	if p := strings.TrimSpace(d.Payload); p != "" {
		b.WriteString("\n\n")
		b.WriteString(p)
	}
	return b.String()
}
