package config

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "hwbot/pkg/logx"
)

// ConfigManager owns the effective config: defaults, the optional file,
// the .env file and the process environment, in that order of precedence
// (later wins).
type ConfigManager struct {
	path   string
	dotenv string
	lookup LookupFunc

	mu  sync.RWMutex
	cfg *Config

	// subsMu guards subs and ensures we never send on a channel that is
	// concurrently being closed in Unsubscribe().
	subsMu sync.Mutex
	subs   []chan *Config

	log logx.Logger

	// lastHash tracks the last committed config content so editor double
	// writes do not publish twice.
	lastHash uint64

	debounce time.Duration
}

type ManagerOption func(*ConfigManager)

// WithDotEnv sets the .env path. Empty disables .env loading.
func WithDotEnv(path string) ManagerOption {
	return func(m *ConfigManager) { m.dotenv = path }
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn LookupFunc) ManagerOption {
	return func(m *ConfigManager) {
		if fn != nil {
			m.lookup = fn
		}
	}
}

// WithDebounce sets the delay between a file event and the reload.
func WithDebounce(d time.Duration) ManagerOption {
	return func(m *ConfigManager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// NewConfigManager creates a manager for the file at path. An empty path
// means defaults plus environment only.
func NewConfigManager(path string, opts ...ManagerOption) *ConfigManager {
	m := &ConfigManager{
		path:     strings.TrimSpace(path),
		dotenv:   DefaultDotEnv,
		lookup:   os.LookupEnv,
		debounce: 250 * time.Millisecond,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *ConfigManager) Path() string { return m.path }

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// Parse builds a config without validating or committing it.
func (m *ConfigManager) Parse() (*Config, error) {
	cfg := Default()
	if m.path != "" {
		if err := decodeFile(m.path, cfg); err != nil {
			return nil, err
		}
	}
	dotenv, err := readDotEnv(m.dotenv)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, layered(m.lookup, dotenv)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load parses and validates the config, then commits it.
func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *ConfigManager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

func (m *ConfigManager) Subscribe(buffer int) chan *Config {
	ch := make(chan *Config, buffer)
	m.subsMu.Lock()
	m.subs = append(m.subs, ch)
	m.subsMu.Unlock()
	return ch
}

func (m *ConfigManager) Unsubscribe(ch chan *Config) {
	if ch == nil {
		return
	}
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for i, s := range m.subs {
		if s == ch {
			last := len(m.subs) - 1
			m.subs[i] = m.subs[last]
			m.subs[last] = nil
			m.subs = m.subs[:last]
			close(ch)
			return
		}
	}
}

func (m *ConfigManager) publish(cfg *Config) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		// If the subscriber is slow, drop the oldest pending config and
		// push the newest.
		select {
		case ch <- cfg:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
			m.logger().Debug("config update dropped (subscriber slow)", logx.Int("queue_cap", cap(ch)))
		}
	}
}

func (m *ConfigManager) logger() logx.Logger {
	if m.log.IsZero() {
		return logx.Nop()
	}
	return m.log
}

// reload re-reads the config and publishes it when it changed and passes
// validation.
func (m *ConfigManager) reload() {
	log := m.logger()
	cfg, err := m.Parse()
	if err != nil {
		log.Warn("config parse failed", logx.String("path", m.path), logx.Err(err))
		return
	}

	h := hashConfig(cfg)
	m.mu.RLock()
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		return
	}

	if err := Validate(cfg); err != nil {
		log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
		return
	}

	m.Commit(cfg)
	m.publish(cfg)
	log.Info("config reloaded", logx.String("path", m.path), logx.String("hash", fmt.Sprintf("%x", h)))
}

// Watch reloads the config whenever its file changes, until ctx is done.
// It returns immediately when the manager has no file.
func (m *ConfigManager) Watch(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	log := m.logger()
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	// fsnotify can get into a bad state with some editors; recreate the
	// watcher with a jittered backoff when it breaks.
	const (
		backoffBase = 250 * time.Millisecond
		backoffMax  = 5 * time.Second
	)
	backoff := backoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sleep := func() bool {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		backoff = min(backoff*2, backoffMax)
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		log.Debug("config change detected; scheduling reload", logx.String("path", m.path))
		timer = time.AfterFunc(m.debounce, m.reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			if !sleep() {
				return nil
			}
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			log.Warn("config watch add failed", logx.Err(err), logx.String("dir", dir))
			if !sleep() {
				return nil
			}
			continue
		}
		backoff = backoffBase
		log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
					schedule()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if err == fsnotify.ErrEventOverflow {
					log.Warn("config watch overflow; forcing reload", logx.Err(err))
					schedule()
					continue
				}
				log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
			}
		}

		_ = w.Close()
		log.Warn("config watcher stopped; restarting", logx.String("dir", dir))
		if !sleep() {
			return nil
		}
	}
	return nil
}
