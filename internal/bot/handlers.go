package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"remindbot/internal/reminder"
	"remindbot/internal/timeintent"
)

// Commands builds the reminder command set over the given service.
func Commands(rems *reminder.Service) []Command {
	return []Command{
		{
			Name:        "start",
			Description: "what this bot does",
			Usage:       "/start",
			Handle: func(ctx context.Context, req *Request) error {
				return req.Reply(ctx, "Hi! I keep track of reminders.\n"+
					"Set one with /remind <title> | <time>, e.g.\n"+
					"/remind call mom | in 20 minutes\n"+
					"/remind standup | at 9:30 AM\n"+
					"See /help for everything else.")
			},
		},
		{
			Name:        "remind",
			Description: "set a reminder",
			Usage:       "/remind <title> | <time> [| <notes>]",
			Handle:      handleRemind(rems),
		},
		{
			Name:        "reminders",
			Description: "list your active reminders",
			Usage:       "/reminders",
			Handle:      handleList(rems),
		},
		{
			Name:        "cancel",
			Description: "cancel a reminder by id",
			Usage:       "/cancel <id>",
			Handle:      handleCancel(rems),
		},
	}
}

func handleRemind(rems *reminder.Service) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		parts := strings.Split(req.ArgText, "|")
		if len(parts) < 2 {
			return req.Reply(ctx, "Usage: /remind <title> | <time> [| <notes>]\n"+
				"e.g. /remind dentist | 2025-12-28T15:30 | bring insurance card")
		}
		title := strings.TrimSpace(parts[0])
		intent := strings.TrimSpace(parts[1])
		payload := ""
		if len(parts) > 2 {
			payload = strings.TrimSpace(strings.Join(parts[2:], "|"))
		}

		title, kind := splitKindTag(title)

		rec, err := rems.Create(ctx, reminder.CreateInput{
			ChatID:       req.Chat.ChatID,
			Title:        title,
			Payload:      payload,
			Kind:         kind,
			TimeIntent:   intent,
			RemindBefore: reminder.DefaultRemindBefore,
		})
		if err != nil {
			return req.Reply(ctx, createErrorText(err, intent))
		}
		return req.Reply(ctx, fmt.Sprintf("⏰ Reminder '%s' has been set for %s (ID: %d)",
			rec.Title, rems.Localize(rec.TriggerAt), rec.ID))
	}
}

func handleList(rems *reminder.Service) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		pending, err := rems.ListPending(ctx, req.Chat.ChatID)
		if err != nil {
			req.Log.Warn("list failed")
			return req.Reply(ctx, "⚠️ Couldn't load your reminders, try again.")
		}
		if len(pending) == 0 {
			return req.Reply(ctx, "⏰ You have no active reminders.")
		}
		lines := make([]string, 0, len(pending)+1)
		lines = append(lines, "⏰ Here are your active reminders:")
		for _, r := range pending {
			lines = append(lines, fmt.Sprintf("• %s — %s (ID: %d)", r.Title, rems.Localize(r.TriggerAt), r.ID))
		}
		return req.Reply(ctx, strings.Join(lines, "\n"))
	}
}

func handleCancel(rems *reminder.Service) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		if len(req.Args) != 1 {
			return req.Reply(ctx, "Usage: /cancel <id>")
		}
		id, err := strconv.ParseInt(req.Args[0], 10, 64)
		if err != nil || id <= 0 {
			return req.Reply(ctx, "Usage: /cancel <id>")
		}
		ok, err := rems.Cancel(ctx, id, req.Chat.ChatID)
		if err != nil {
			return req.Reply(ctx, "⚠️ Couldn't cancel that reminder, try again.")
		}
		if !ok {
			return req.Reply(ctx, fmt.Sprintf("⚠️ Sorry, I couldn't find a reminder with ID %d.", id))
		}
		return req.Reply(ctx, fmt.Sprintf("🗑 Reminder %d has been cancelled.", id))
	}
}

// splitKindTag peels an optional leading #meal / #workout tag off the title.
func splitKindTag(title string) (string, reminder.PayloadKind) {
	rest, ok := strings.CutPrefix(title, "#")
	if !ok {
		return title, reminder.KindNote
	}
	tag, remainder, _ := strings.Cut(rest, " ")
	switch k := reminder.ParseKind(tag); k {
	case reminder.KindMeal, reminder.KindWorkout:
		return strings.TrimSpace(remainder), k
	}
	return title, reminder.KindNote
}

func createErrorText(err error, intent string) string {
	if errors.Is(err, reminder.ErrEmptyTitle) {
		return "⚠️ The reminder needs a title before the '|'."
	}
	switch timeintent.KindOf(err) {
	case timeintent.KindAmbiguousMeridiem:
		return fmt.Sprintf("⚠️ '%s' is ambiguous — say 'at 3 PM' or use 24-hour time like 'at 15:00'.", intent)
	case timeintent.KindOutOfRange:
		return fmt.Sprintf("⚠️ '%s' is out of range.", intent)
	case timeintent.KindMalformedISO:
		return fmt.Sprintf("⚠️ '%s' looks like a timestamp but doesn't parse.", intent)
	case timeintent.KindUnrecognized:
		return fmt.Sprintf("⚠️ I couldn't understand '%s'. Try 'in 20 minutes', 'at 6 PM' or '2025-12-28T15:30'.", intent)
	}
	return "⚠️ Couldn't set that reminder, try again."
}
