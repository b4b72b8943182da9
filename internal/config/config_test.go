package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(kv map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := kv[k]
		return v, ok
	}
}

var fullEnv = map[string]string{
	EnvPracticumToken: "p-token",
	EnvTelegramToken:  "t-token",
	EnvTelegramChatID: "42",
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaultsFromEnvOnly(t *testing.T) {
	m := NewConfigManager("", WithDotEnv(""), WithLookupEnv(envOf(fullEnv)))
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "p-token", cfg.Practicum.Token)
	assert.Equal(t, "t-token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, DefaultEndpoint, cfg.Practicum.Endpoint)
	assert.Equal(t, DefaultSchedule, cfg.Poller.Schedule)
	assert.Equal(t, 1, cfg.Notifier.RatePerSec)
	assert.True(t, cfg.Logging.Console)
	assert.Same(t, cfg, m.Get())
}

func TestLoadMissingTokens(t *testing.T) {
	m := NewConfigManager("", WithDotEnv(""), WithLookupEnv(envOf(nil)))
	_, err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "practicum.token: required")
	assert.Contains(t, err.Error(), "telegram.token: required")
	assert.Contains(t, err.Error(), "telegram.chat_id: required")
}

func TestLoadBlankTokenIsMissing(t *testing.T) {
	env := map[string]string{EnvPracticumToken: "   ", EnvTelegramToken: "t", EnvTelegramChatID: "1"}
	_, err := NewConfigManager("", WithDotEnv(""), WithLookupEnv(envOf(env))).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "practicum.token: required")
}

func TestLoadYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := writeFile(t, dir, "bot.yaml", `
practicum:
  token: file-token
  request_timeout: 5s
telegram:
  token: file-tg
  chat_id: 7
poller:
  schedule: 1m
logging:
  level: debug
  console: false
`)
	js := writeFile(t, dir, "bot.json", `{
  "practicum": {"token": "file-token"},
  "telegram": {"token": "file-tg", "chat_id": 7},
  "poller": {"schedule": "1m"},
  "logging": {"level": "debug", "console": false}
}`)

	for _, p := range []string{yml, js} {
		cfg, err := NewConfigManager(p, WithDotEnv(""), WithLookupEnv(envOf(nil))).Load()
		require.NoError(t, err, p)
		assert.Equal(t, "file-token", cfg.Practicum.Token)
		assert.Equal(t, int64(7), cfg.Telegram.ChatID)
		assert.Equal(t, "1m", cfg.Poller.Schedule)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.False(t, cfg.Logging.Console)
		// Defaults survive a partial file.
		assert.Equal(t, DefaultEndpoint, cfg.Practicum.Endpoint)
		assert.Equal(t, "10s", cfg.Notifier.SendTimeout)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "bot.json", `{"practicum": {"token": "file"}, "telegram": {"token": "file", "chat_id": 1}}`)
	cfg, err := NewConfigManager(p, WithDotEnv(""), WithLookupEnv(envOf(fullEnv))).Load()
	require.NoError(t, err)
	assert.Equal(t, "p-token", cfg.Practicum.Token)
	assert.Equal(t, "t-token", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
}

func TestDotEnvBelowProcessEnv(t *testing.T) {
	dir := t.TempDir()
	dot := writeFile(t, dir, ".env", "PRACTICUM_TOKEN=from-dotenv\nTELEGRAM_TOKEN=from-dotenv\nTELEGRAM_CHAT_ID=5\n")
	env := map[string]string{EnvTelegramToken: "from-env"}

	cfg, err := NewConfigManager("", WithDotEnv(dot), WithLookupEnv(envOf(env))).Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Practicum.Token)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(5), cfg.Telegram.ChatID)
}

func TestMissingDotEnvIsFine(t *testing.T) {
	m := NewConfigManager("", WithDotEnv(filepath.Join(t.TempDir(), "nope.env")), WithLookupEnv(envOf(fullEnv)))
	_, err := m.Load()
	require.NoError(t, err)
}

func TestBadChatID(t *testing.T) {
	env := map[string]string{EnvPracticumToken: "p", EnvTelegramToken: "t", EnvTelegramChatID: "chat"}
	_, err := NewConfigManager("", WithDotEnv(""), WithLookupEnv(envOf(env))).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvTelegramChatID)
}

func TestUnknownKeysRejected(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.json": `{"practicum": {"token": "x", "colour": "red"}}`,
		"b.yaml": "plugins:\n  echo: {}\n",
		"c.json": `{"practicum": {}} {"again": true}`,
	} {
		p := writeFile(t, dir, name, body)
		_, err := NewConfigManager(p, WithDotEnv(""), WithLookupEnv(envOf(fullEnv))).Parse()
		assert.Error(t, err, name)
	}
}

func TestValidateFields(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.Practicum.Token = "p"
		c.Telegram.Token = "t"
		c.Telegram.ChatID = 1
		return c
	}
	require.NoError(t, Validate(base()))

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"endpoint", func(c *Config) { c.Practicum.Endpoint = "not a url" }, "practicum.endpoint"},
		{"timeout", func(c *Config) { c.Practicum.RequestTimeout = "soon" }, "practicum.request_timeout"},
		{"negative", func(c *Config) { c.Notifier.SendTimeout = "-1s" }, "notifier.send_timeout"},
		{"schedule", func(c *Config) { c.Poller.Schedule = "sometimes" }, "poller.schedule"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"rate", func(c *Config) { c.Notifier.RatePerSec = -1 }, "notifier.rate_per_sec"},
		{"driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "redis"} }, "storage.driver"},
		{"storage path", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, "storage.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := Validate(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", 3*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	d, err = ParseDurationField("x", " 2m ")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	_, err = ParseDurationField("x", "-5s")
	assert.Error(t, err)
}

func TestSubscribeKeepsLatest(t *testing.T) {
	m := NewConfigManager("")
	ch := m.Subscribe(1)
	a, b := Default(), Default()
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)
	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestWatchPublishesChanges(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bot.json", `{"poller": {"schedule": "10m"}}`)
	m := NewConfigManager(p, WithDotEnv(""), WithLookupEnv(envOf(fullEnv)), WithDebounce(20*time.Millisecond))
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(p, []byte(`{"poller": {"schedule": "5m"}}`), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "5m", cfg.Poller.Schedule)
		assert.Equal(t, "p-token", cfg.Practicum.Token)
	case <-time.After(3 * time.Second):
		t.Fatal("no config published")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatchRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bot.json", `{}`)
	m := NewConfigManager(p, WithDotEnv(""), WithLookupEnv(envOf(fullEnv)), WithDebounce(10*time.Millisecond))
	first, err := m.Load()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(p, []byte(`{"logging": {"level": "loud"}}`), 0o600))
	m.reload()
	assert.Same(t, first, m.Get())
}

func TestWatchWithoutFile(t *testing.T) {
	assert.NoError(t, NewConfigManager("").Watch(context.Background()))
}
