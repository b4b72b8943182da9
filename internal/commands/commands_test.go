package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/notifier"
	"hwbot/internal/poller"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
}

type fakeSender struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeSender) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{to: to, text: text})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.out)}, nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.out...)
}

type fixedStatus poller.Status

func (s fixedStatus) Status() poller.Status { return poller.Status(s) }

type fixedHistory []notifier.HistoryItem

func (h fixedHistory) Snapshot() []notifier.HistoryItem { return h }

func msg(chat int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chat, Text: text}}
}

func TestCommandWord(t *testing.T) {
	tests := map[string]string{
		"/status":            "status",
		"  /Status@hwbot x ": "status",
		"/help":              "help",
	}
	for in, want := range tests {
		got, ok := commandWord(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "hello", "/", "status"} {
		_, ok := commandWord(in)
		assert.False(t, ok, in)
	}
}

func TestHandleStatus(t *testing.T) {
	s := &fakeSender{}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := fixedStatus{Cursor: 1700000000, Iterations: 3, LastRun: at, LastMessage: "Статус проверки не изменился.", LastError: "boom"}
	hist := fixedHistory{{At: at, Text: "first"}, {At: at, Text: "second"}}
	h := New(Config{ChatID: 10, Recent: 1}, s, st, hist, logx.Nop())

	require.NoError(t, h.Handle(context.Background(), msg(10, "/status")))
	out := s.all()
	require.Len(t, out, 1)
	assert.Equal(t, int64(10), out[0].to.ChatID)
	assert.Contains(t, out[0].text, "Polls: 3")
	assert.Contains(t, out[0].text, "Cursor: 1700000000")
	assert.Contains(t, out[0].text, "Last error: boom")
	assert.Contains(t, out[0].text, "second")
	assert.NotContains(t, out[0].text, "first")
}

func TestHandleHelpAndUnknown(t *testing.T) {
	s := &fakeSender{}
	h := New(Config{ChatID: 10}, s, fixedStatus{}, fixedHistory{}, logx.Nop())

	require.NoError(t, h.Handle(context.Background(), msg(10, "/start")))
	require.NoError(t, h.Handle(context.Background(), msg(10, "/nope")))
	out := s.all()
	require.Len(t, out, 2)
	assert.Contains(t, out[0].text, "/status")
	assert.Contains(t, out[0].text, "/help")
	assert.Equal(t, "unknown command. try /help", out[1].text)
}

func TestHandleIgnoresOtherChatsAndPlainText(t *testing.T) {
	s := &fakeSender{}
	h := New(Config{ChatID: 10}, s, fixedStatus{}, fixedHistory{}, logx.Nop())

	require.NoError(t, h.Handle(context.Background(), msg(11, "/status")))
	require.NoError(t, h.Handle(context.Background(), msg(10, "hello")))
	require.NoError(t, h.Handle(context.Background(), kit.Update{Kind: kit.UpdateMessage}))
	assert.Empty(t, s.all())
}

func TestDispatchLoop(t *testing.T) {
	s := &fakeSender{}
	h := New(Config{ChatID: 10}, s, fixedStatus{}, fixedHistory{}, logx.Nop())

	updates := make(chan kit.Update, 2)
	updates <- msg(10, "/help")
	updates <- msg(10, "/status")
	close(updates)

	require.NoError(t, h.DispatchLoop(context.Background(), updates))
	assert.Len(t, s.all(), 2)
}

func TestDispatchLoopStopsOnCancel(t *testing.T) {
	h := New(Config{ChatID: 10}, &fakeSender{}, nil, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, h.DispatchLoop(ctx, make(chan kit.Update)))
}
