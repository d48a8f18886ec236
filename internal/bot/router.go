// Package bot routes incoming chat messages to command handlers.
package bot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"remindbot/internal/transport"
	"remindbot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string // command word without the leading slash
	Description string
	Usage       string
	Access      Access
	Handle      HandlerFunc
}

type Request struct {
	Chat   transport.ChatTarget
	FromID int64

	// Args are the whitespace-split tokens after the command word;
	// ArgText is the raw remainder (handlers that take free text, like a
	// reminder title, parse it themselves).
	Args    []string
	ArgText string

	ReqID   string
	Adapter transport.Adapter
	Log     logx.Logger
}

func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{DisablePreview: true})
	return err
}

type Router struct {
	mu     sync.RWMutex
	cmds   map[string]Command
	order  []string
	owners []int64

	adapter transport.Adapter
	log     logx.Logger
	jobs    chan func()
}

func NewRouter(adapter transport.Adapter, log logx.Logger, owners []int64) *Router {
	r := &Router{
		cmds:    map[string]Command{},
		owners:  append([]int64(nil), owners...),
		adapter: adapter,
		log:     log,
		jobs:    make(chan func(), 256),
	}
	r.Register(Command{
		Name:        "help",
		Description: "show help",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, r.helpText())
		},
	})
	return r
}

func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.TrimSpace(strings.TrimPrefix(c.Name, "/"))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		if _, exists := r.cmds[name]; !exists {
			r.order = append(r.order, name)
		}
		r.cmds[name] = c
	}
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

// MenuCommands returns the registry in registration order for the platform
// command menu.
func (r *Router) MenuCommands() []transport.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]transport.BotCommand, 0, len(r.order))
	for _, name := range r.order {
		c := r.cmds[name]
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

func (r *Router) helpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		c := r.cmds[name]
		b.WriteString(c.Usage)
		if c.Description != "" {
			b.WriteString(" — ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// DispatchLoop consumes updates until ctx is cancelled or the channel
// closes. Handlers run on a bounded worker pool so one slow command cannot
// stall the poll loop.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	r.log.Info("command dispatcher started",
		logx.Int("workers", workers), logx.Int("job_queue_cap", cap(r.jobs)))

	var (
		wg        sync.WaitGroup
		closeOnce sync.Once
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("panic in command worker",
						logx.Int("worker", idx),
						logx.Any("panic", rec),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-r.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	// Workers drain the job queue and exit when it closes; without the close,
	// a ctx-independent return (updates channel closed) would wait forever.
	defer func() {
		closeOnce.Do(func() { close(r.jobs) })
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("command dispatcher stopped", logx.Err(ctx.Err()))
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			if up.Kind == transport.UpdateMessage {
				r.routeMessage(ctx, up.Message)
			}
		}
	}
}

func (r *Router) routeMessage(ctx context.Context, msg *transport.Message) {
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	word, rest, _ := strings.Cut(text[1:], " ")
	// strip "@botname" suffix used in groups
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	chat := transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	r.mu.RLock()
	cmd, ok := r.cmds[word]
	owners := append([]int64(nil), r.owners...)
	r.mu.RUnlock()
	if !ok {
		// In groups, an unknown slash word is usually meant for another bot.
		if !msg.IsGroup {
			_, _ = r.adapter.SendText(ctx, chat, "unknown command. try /help", nil)
		}
		return
	}

	if cmd.Access == AccessOwnerOnly && !isOwner(msg.FromID, owners) {
		_, _ = r.adapter.SendText(ctx, chat, "unauthorized", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Chat:    chat,
		FromID:  msg.FromID,
		Args:    strings.Fields(rest),
		ArgText: strings.TrimSpace(rest),
		ReqID:   rid,
		Adapter: r.adapter,
		Log: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name)),
	}

	select {
	case r.jobs <- func() { r.runHandler(ctx, cmd, req) }:
	default:
		_, _ = r.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}

func (r *Router) runHandler(ctx context.Context, cmd Command, req *Request) {
	defer func() {
		if rec := recover(); rec != nil {
			req.Log.Error("panic in command handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()
	if err := cmd.Handle(ctx, req); err != nil {
		req.Log.Warn("command failed", logx.Err(err))
	}
}

func isOwner(id int64, owners []int64) bool {
	for _, o := range owners {
		if o == id {
			return true
		}
	}
	return false
}

func newReqID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "req-0"
	}
	return hex.EncodeToString(b[:])
}
