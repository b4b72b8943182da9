// Package commands answers chat commands sent to the bot from the
// notification chat.
package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"hwbot/internal/notifier"
	"hwbot/internal/poller"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

// StatusSource reports the poll loop state.
type StatusSource interface {
	Status() poller.Status
}

// HistorySource reports recently delivered notifications.
type HistorySource interface {
	Snapshot() []notifier.HistoryItem
}

type Config struct {
	// ChatID is the only chat whose messages are answered.
	ChatID int64
	// Recent is how many deliveries /status lists.
	Recent int
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, msg *kit.Message) string
}

// Handler routes command messages to their replies.
type Handler struct {
	cfg     Config
	log     logx.Logger
	sender  kit.Sender
	status  StatusSource
	history HistorySource
	now     func() time.Time
	started time.Time

	cmds  map[string]command
	order []string
}

func New(cfg Config, sender kit.Sender, status StatusSource, history HistorySource, log logx.Logger) *Handler {
	if cfg.Recent <= 0 {
		cfg.Recent = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	h := &Handler{
		cfg:     cfg,
		log:     log,
		sender:  sender,
		status:  status,
		history: history,
		now:     time.Now,
		cmds:    map[string]command{},
	}
	h.started = h.now()
	h.register(command{name: "status", usage: "poller state and recent notifications", run: h.statusText})
	h.register(command{name: "help", usage: "this list", run: h.helpText})
	h.register(command{name: "start", usage: "same as /help", run: h.helpText})
	return h
}

func (h *Handler) register(c command) {
	h.cmds[c.name] = c
	h.order = append(h.order, c.name)
}

// DispatchLoop handles updates one at a time until ctx is done or updates
// is closed.
func (h *Handler) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	h.log.Info("command dispatcher started", logx.Int64("chat_id", h.cfg.ChatID))
	for {
		select {
		case <-ctx.Done():
			h.log.Info("command dispatcher stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				h.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			h.safeHandle(ctx, up)
		}
	}
}

func (h *Handler) safeHandle(ctx context.Context, up kit.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic in command handler", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	if err := h.Handle(ctx, up); err != nil {
		h.log.Warn("command reply failed", logx.Err(err))
	}
}

// Handle answers a single update. Non-command text and messages from other
// chats are ignored.
func (h *Handler) Handle(ctx context.Context, up kit.Update) error {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return nil
	}
	msg := up.Message
	word, ok := commandWord(msg.Text)
	if !ok {
		return nil
	}
	if msg.ChatID != h.cfg.ChatID {
		h.log.Debug("command from foreign chat ignored", logx.Int64("chat_id", msg.ChatID), logx.String("cmd", word))
		return nil
	}

	reply := "unknown command. try /help"
	if c, ok := h.cmds[word]; ok {
		reply = c.run(ctx, msg)
	}
	h.log.Debug("command handled", logx.String("cmd", word), logx.Int64("from", msg.FromID))
	_, err := h.sender.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}, reply, &kit.SendOptions{DisablePreview: true})
	return err
}

// commandWord extracts "status" from "/status@hwbot extra".
func commandWord(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	return word, word != ""
}

func (h *Handler) helpText(context.Context, *kit.Message) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range h.order {
		fmt.Fprintf(&b, "/%s - %s\n", name, h.cmds[name].usage)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) statusText(context.Context, *kit.Message) string {
	var b strings.Builder
	now := h.now()
	fmt.Fprintf(&b, "Uptime: %s\n", now.Sub(h.started).Round(time.Second))

	if h.status != nil {
		st := h.status.Status()
		fmt.Fprintf(&b, "Polls: %d\n", st.Iterations)
		fmt.Fprintf(&b, "Cursor: %s\n", formatUnix(st.Cursor))
		fmt.Fprintf(&b, "Last run: %s\n", formatTime(st.LastRun))
		fmt.Fprintf(&b, "Next run: %s\n", formatTime(st.NextRun))
		if st.LastMessage != "" {
			fmt.Fprintf(&b, "Last message: %s\n", st.LastMessage)
		}
		if st.LastError != "" {
			fmt.Fprintf(&b, "Last error: %s\n", st.LastError)
		}
	}

	if h.history != nil {
		items := h.history.Snapshot()
		if len(items) > h.cfg.Recent {
			items = items[len(items)-h.cfg.Recent:]
		}
		if len(items) == 0 {
			b.WriteString("Deliveries: none yet")
		} else {
			b.WriteString("Recent deliveries:")
			for _, it := range items {
				fmt.Fprintf(&b, "\n- %s %s", formatTime(it.At), it.Text)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d (%s)", ts, time.Unix(ts, 0).UTC().Format(time.RFC3339))
}
