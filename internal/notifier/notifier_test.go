package notifier

import (
	"context"
	"strings"
	"sync"
	"testing"

	"remindbot/internal/reminder"
	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
	to   []transport.ChatTarget
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                               { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	f.mu.Unlock()
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func TestDeliverFormatsMessage(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(Config{RatePerSec: 100}, fa, logx.Nop())

	err := s.Deliver(context.Background(), Delivery{
		Target:        transport.ChatTarget{ChatID: 42},
		Title:         "dentist",
		Payload:       "bring insurance card",
		Kind:          reminder.KindNote,
		LocalizedTime: "2025-12-28 at 3:30 PM WAT",
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	want := "⏰ Reminder: dentist\nScheduled for 2025-12-28 at 3:30 PM WAT\n\nbring insurance card"
	if fa.sent[0] != want {
		t.Fatalf("message = %q, want %q", fa.sent[0], want)
	}
	if fa.to[0].ChatID != 42 {
		t.Fatalf("target = %+v", fa.to[0])
	}
}

func TestFormatDelivery(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		d    Delivery
		want []string
	}{
		{
			name: "lead heads-up",
			d:    Delivery{Title: "standup", LocalizedTime: "X", Lead: true},
			want: []string{"⏰ Heads-up: standup", "Coming up at X"},
		},
		{
			name: "meal kind",
			d:    Delivery{Title: "lunch", Kind: reminder.KindMeal, LocalizedTime: "X"},
			want: []string{"🍽 Reminder: lunch"},
		},
		{
			name: "workout kind",
			d:    Delivery{Title: "leg day", Kind: reminder.KindWorkout, LocalizedTime: "X"},
			want: []string{"💪 Reminder: leg day"},
		},
		{
			name: "blank payload omitted",
			d:    Delivery{Title: "x", LocalizedTime: "X", Payload: "   "},
			want: []string{"⏰ Reminder: x\nScheduled for X"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatDelivery(tt.d)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Fatalf("formatDelivery = %q, missing %q", got, w)
				}
			}
			if tt.d.Payload == "   " && strings.Contains(got, "   ") {
				t.Fatalf("blank payload leaked: %q", got)
			}
		})
	}
}

func TestNotifyOperatorRequiresTarget(t *testing.T) {
	t.Parallel()
	fa := &fakeAdapter{}
	s := New(Config{RatePerSec: 100}, fa, logx.Nop())

	s.NotifyOperator(context.Background(), "delivery failed")
	if len(fa.sent) != 0 {
		t.Fatalf("operator message sent without a target: %q", fa.sent)
	}

	s.SetOperatorTarget(-100500, 0)
	s.NotifyOperator(context.Background(), "delivery failed")
	if len(fa.sent) != 1 || fa.sent[0] != "🚨 delivery failed" {
		t.Fatalf("operator messages = %q", fa.sent)
	}
	if fa.to[0].ChatID != -100500 {
		t.Fatalf("operator target = %+v", fa.to[0])
	}
}
