package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var (
	ErrEmpty    = errors.New("notifier: empty message")
	ErrNoTarget = errors.New("notifier: chat id is not set")
)

// Service sends messages through a kit.Sender.
//
// It is safe for concurrent use, though the poller calls it from a single goroutine.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	sender kit.Sender
	store  storage.Store

	cfg     Config
	limiter *rate.Limiter

	lastSent string
	history  []HistoryItem
}

// New creates a notifier. store may be nil.
func New(cfg Config, sender kit.Sender, log logx.Logger, store storage.Store) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, store: store}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	if len(s.history) > cfg.HistorySize {
		s.history = append([]HistoryItem(nil), s.history[len(s.history)-cfg.HistorySize:]...)
	}
}

// Notify delivers text to the configured chat. A send failure is logged and
// returned; it is never retried.
func (s *Service) Notify(ctx context.Context, text string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmpty
	}

	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	dup := cfg.Dedup && text == s.lastSent
	s.mu.Unlock()

	if cfg.Target.ChatID == 0 {
		return Result{}, ErrNoTarget
	}
	if dup {
		s.log.Debug("message suppressed (same as last sent)", logx.Int("len", len(text)))
		s.journal(ctx, storage.Delivery{ChatID: cfg.Target.ChatID, Outcome: storage.OutcomeDeduped, Text: text})
		return Result{Deduped: true}, nil
	}

	if err := lim.Wait(ctx); err != nil {
		return Result{}, err
	}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	ref, err := s.sender.SendText(callCtx, cfg.Target, text, &kit.SendOptions{DisablePreview: true})
	cancel()
	took := time.Since(start)

	if err != nil {
		s.log.Error("bot failed to send message", logx.Err(err), logx.Int64("chat_id", cfg.Target.ChatID), logx.Duration("took", took))
		s.journal(ctx, storage.Delivery{ChatID: cfg.Target.ChatID, Outcome: storage.OutcomeFailed, Text: text, Error: err.Error(), TookMS: took.Milliseconds()})
		return Result{}, err
	}

	s.mu.Lock()
	s.lastSent = text
	s.history = append(s.history, HistoryItem{At: time.Now(), Text: text})
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[len(s.history)-s.cfg.HistorySize:]
	}
	s.mu.Unlock()

	s.log.Info("message sent", logx.String("text", text), logx.Int("message_id", ref.MessageID), logx.Duration("took", took))
	s.journal(ctx, storage.Delivery{ChatID: cfg.Target.ChatID, MessageID: ref.MessageID, Outcome: storage.OutcomeSent, Text: text, TookMS: took.Milliseconds()})
	return Result{Sent: true, Ref: ref}, nil
}

// Snapshot returns delivered messages, oldest first.
func (s *Service) Snapshot() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

// LastSent returns the most recently delivered text.
func (s *Service) LastSent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSent
}

func (s *Service) journal(ctx context.Context, d storage.Delivery) {
	if s.store == nil {
		return
	}
	d.At = time.Now()
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.store.AppendDelivery(jctx, d); err != nil {
		s.log.Warn("delivery journal append failed", logx.Err(err))
	}
}
