package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (empty = api.telegram.org).
	APIURL string
	// PollTimeout is the long-poll timeout used when Receive is set.
	PollTimeout time.Duration
	// SendTimeout bounds one sendMessage HTTP call (default 10s).
	SendTimeout time.Duration
	// Receive enables getUpdates long polling for inbound commands.
	Receive bool
	// Offline skips the getMe call on construction.
	Offline bool
}

type Adapter struct {
	cfg Config
	log logx.Logger

	// bot long-polls updates; sender sends with its own bounded client
	// so a send cannot outlive SendTimeout.
	bot     *tele.Bot
	sender  *tele.Bot
	out     atomic.Value // stores (chan<- kit.Update)
	runMu   sync.Mutex
	running bool

	// sup owns adapter internal goroutines (poll loop, drop logger, stop watcher).
	sup *rtsup.Supervisor

	// droppedUpdates counts updates dropped because the consumer was slower than the poll loop.
	droppedUpdates uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	url := strings.TrimSpace(cfg.APIURL)
	token := strings.TrimSpace(cfg.Token)

	b, err := tele.NewBot(tele.Settings{
		URL:     url,
		Token:   token,
		Poller:  &tele.LongPoller{Timeout: timeout},
		Offline: cfg.Offline,
		// getUpdates holds the request for PollTimeout.
		Client: &http.Client{Timeout: timeout + 10*time.Second},
	})
	if err != nil {
		return nil, err
	}
	sb, err := tele.NewBot(tele.Settings{
		URL:     url,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: sendTimeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{cfg: cfg, log: log, bot: b, sender: sb}
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel. Start() may swap it.
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		msg := &kit.Message{
			ID:       m.ID,
			ChatID:   m.Chat.ID,
			ThreadID: m.ThreadID,
			Text:     m.Text,
		}
		if m.Sender != nil {
			msg.FromID = m.Sender.ID
			msg.FromUsername = m.Sender.Username
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMessage, Message: msg})
		return nil
	})
}

func (a *Adapter) sendUpdate(up kit.Update) {
	v := a.out.Load()
	out, _ := v.(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		atomic.AddUint64(&a.droppedUpdates, 1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !a.cfg.Receive {
		a.log.Debug("update polling disabled")
		return nil
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(a.log.With(logx.String("comp", "telegram.adapter"))),
		// adapter errors should not take down the whole app; treat as best-effort.
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		report := func() {
			if n := atomic.SwapUint64(&a.droppedUpdates, 0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Uint64("count", n), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-ticker.C:
				report()
			}
		}
	})

	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		// bot.Stop blocks until the poll loop acknowledges; the loop may
		// already be gone between restarts.
		done := make(chan struct{})
		go func() {
			a.bot.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})

	// telebot's Start() blocks until Stop(); restart it if it returns early.
	sup.GoRestart0("telebot.poll", func(c context.Context) {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithPublishFirstError(true),
		rtsup.WithStopOnCleanExit(false),
	)

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.Uint64("dropped_updates_pending", atomic.LoadUint64(&a.droppedUpdates)))

	sup.Cancel()

	// Keep shutdown snappy even if getUpdates long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
			return nil
		}
		a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
	}
	return nil
}

const telegramTextLimit = 4000

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries near the end of each window.
func splitTelegramText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// Avoid extremely small chunks.
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	if to.ChatID == 0 {
		return kit.MessageRef{}, errors.New("telegram: chat id is empty")
	}

	chat := &tele.Chat{ID: to.ChatID}

	var first kit.MessageRef
	for i, chunk := range splitTelegramText(text, telegramTextLimit) {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.sender.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}
