package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/config"
	kit "hwbot/internal/transport"
)

type fakeAdapter struct {
	mu      sync.Mutex
	sent    []string
	targets []int64
	inbound []kit.Update
	stopped bool
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.targets = append(f.targets, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error {
	for _, up := range f.inbound {
		out <- up
	}
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) chats() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.targets...)
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fetchFunc func(ctx context.Context, from int64) ([]byte, error)

func (f fetchFunc) Fetch(ctx context.Context, from int64) ([]byte, error) { return f(ctx, from) }

func testManager(env map[string]string) *config.ConfigManager {
	return config.NewConfigManager("", config.WithDotEnv(""), config.WithLookupEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))
}

var testEnv = map[string]string{
	config.EnvPracticumToken: "p",
	config.EnvTelegramToken:  "t",
	config.EnvTelegramChatID: "42",
}

func TestAppRunsPollAndCommands(t *testing.T) {
	ad := &fakeAdapter{inbound: []kit.Update{{
		Kind:    kit.UpdateMessage,
		Message: &kit.Message{ChatID: 42, Text: "/help"},
	}}}
	froms := make(chan int64, 4)
	fetch := fetchFunc(func(ctx context.Context, from int64) ([]byte, error) {
		froms <- from
		return []byte(`{"homeworks": [{"homework_name": "hw_api", "status": "rejected"}], "current_date": 4102444800}`), nil
	})

	a, err := New(testManager(testEnv), WithAdapter(ad), WithFetcher(fetch))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	require.Eventually(t, func() bool { return len(ad.texts()) >= 2 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Stop(context.Background()))

	var status, help bool
	for _, s := range ad.texts() {
		if s == `Изменился статус проверки работы "hw_api". Работа проверена: у ревьюера есть замечания.` {
			status = true
		}
		if strings.Contains(s, "/status") {
			help = true
		}
	}
	assert.True(t, status, "status notification")
	assert.True(t, help, "help reply")
	assert.Equal(t, int64(4102444800), a.Poller().Status().Cursor)
	assert.True(t, ad.stopped)

	select {
	case <-a.Done():
	default:
		t.Fatal("done not closed after stop")
	}
}

func TestNewFailsWithoutTokens(t *testing.T) {
	_, err := New(testManager(nil), WithAdapter(&fakeAdapter{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "practicum.token")
}

func TestApplyConfigLive(t *testing.T) {
	ad := &fakeAdapter{}
	a, err := New(testManager(testEnv), WithAdapter(ad), WithFetcher(fetchFunc(func(context.Context, int64) ([]byte, error) {
		return []byte(`{}`), nil
	})))
	require.NoError(t, err)
	defer a.logs.Close()
	ctx := context.Background()

	first := a.cfgm.Get()
	second := *first
	second.Poller.Schedule = "@every 1h"
	second.Notifier.RatePerSec = 5
	second.Telegram.ChatID = 7
	assert.Equal(t, []string{"telegram", "poller", "notifier"}, changedSections(first, &second))

	a.applyConfig(first, &second)
	_, err = a.notif.Notify(ctx, "after first reload")
	require.NoError(t, err)

	// A later reload compares against the reloaded config, not the startup one.
	third := second
	third.Notifier.RatePerSec = 3
	a.applyConfig(&second, &third)
	_, err = a.notif.Notify(ctx, "after second reload")
	require.NoError(t, err)

	assert.Equal(t, []int64{42, 42}, ad.chats())

	bad := third
	bad.Poller.Schedule = "nope"
	a.applyConfig(&third, &bad)
}

func TestChangedSections(t *testing.T) {
	a := config.Default()
	b := config.Default()
	assert.Empty(t, changedSections(a, b))

	b.Logging.Level = "debug"
	b.Storage = &config.StorageConfig{Driver: "file", Path: "x"}
	assert.Equal(t, []string{"logging", "storage"}, changedSections(a, b))
	assert.Nil(t, changedSections(nil, b))
}

func TestMapStorageConfig(t *testing.T) {
	cfg := config.Default()
	_, enabled, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.False(t, enabled)

	cfg.Storage = &config.StorageConfig{Driver: "SQLite", Path: "/tmp/x.db", BusyTimeout: "3s"}
	sc, enabled, err := mapStorageConfig(cfg)
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, 3*time.Second, sc.BusyTimeout)

	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	_, _, err = mapStorageConfig(cfg)
	assert.Error(t, err)

	cfg.Storage = &config.StorageConfig{Driver: "mongo"}
	_, _, err = mapStorageConfig(cfg)
	assert.Error(t, err)
}

func TestMapNotifierConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.ChatID = 9
	cfg.Notifier.DisableDedup = true
	nc, err := mapNotifierConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(9), nc.Target.ChatID)
	assert.False(t, nc.Dedup)
	assert.Equal(t, 10*time.Second, nc.SendTimeout)

	cfg.Notifier.SendTimeout = "later"
	_, err = mapNotifierConfig(cfg)
	assert.Error(t, err)
}

func TestMapPracticumConfigZeroTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Practicum.RequestTimeout = "0s"
	pc, err := mapPracticumConfig(cfg)
	require.NoError(t, err)
	assert.Zero(t, pc.Timeout)
}
