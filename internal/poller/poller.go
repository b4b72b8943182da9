package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"hwbot/internal/notifier"
	"hwbot/internal/practicum"
	logx "hwbot/pkg/logx"
)

// Fetcher returns the raw API reply for statuses changed since from.
type Fetcher interface {
	Fetch(ctx context.Context, from int64) ([]byte, error)
}

// Notifier delivers one message.
type Notifier interface {
	Notify(ctx context.Context, text string) (notifier.Result, error)
}

type Config struct {
	// Schedule is parsed by ParseSchedule.
	Schedule string
	// FromDate is the initial cursor (unix seconds). 0 means process start.
	FromDate int64
}

// Status is a point-in-time view of the loop, used by /status.
type Status struct {
	Cursor      int64
	Iterations  uint64
	LastRun     time.Time
	NextRun     time.Time
	LastMessage string
	LastError   string
	LastSent    bool
}

// Poller runs fetch -> validate -> format -> notify on a schedule.
// Iterations never overlap: the next run is computed after the previous
// one finishes.
type Poller struct {
	log    logx.Logger
	fetch  Fetcher
	notify Notifier
	now    func() time.Time

	// onIteration runs after every iteration (systemd watchdog ping).
	onIteration func()

	mu     sync.Mutex
	sched  cron.Schedule
	status Status
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

// WithIterationHook registers fn to run after each iteration.
func WithIterationHook(fn func()) Option {
	return func(p *Poller) { p.onIteration = fn }
}

func New(cfg Config, fetch Fetcher, notify Notifier, log logx.Logger, opts ...Option) (*Poller, error) {
	if fetch == nil || notify == nil {
		return nil, errors.New("poller: fetcher and notifier are required")
	}
	sched, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Poller{log: log, fetch: fetch, notify: notify, now: time.Now, sched: sched}
	for _, o := range opts {
		o(p)
	}
	p.status.Cursor = cfg.FromDate
	if p.status.Cursor <= 0 {
		p.status.Cursor = p.now().Unix()
	}
	return p, nil
}

// Apply swaps the schedule. It takes effect when the current wait ends.
func (p *Poller) Apply(schedule string) error {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.sched = sched
	p.mu.Unlock()
	return nil
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run polls until ctx is canceled. The first iteration starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller started", logx.Int64("from_date", p.Status().Cursor))
	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if p.onIteration != nil {
			p.onIteration()
		}

		p.mu.Lock()
		now := p.now()
		next := p.sched.Next(now)
		p.status.NextRun = next
		p.mu.Unlock()

		wait := next.Sub(now)
		if wait < 0 {
			wait = 0
		}
		p.log.Debug("next poll scheduled", logx.Time("at", next), logx.Duration("in", wait))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			p.log.Info("poller stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RunOnce performs a single iteration and returns the message it produced.
//
// Any fetch/validate/format error is turned into a failure message and
// notified; the returned error is that iteration error. A canceled ctx
// aborts without notifying.
func (p *Poller) RunOnce(ctx context.Context) (string, error) {
	p.mu.Lock()
	cursor := p.status.Cursor
	p.mu.Unlock()

	msg, next, err := p.poll(ctx, cursor)
	if err != nil && ctx.Err() != nil {
		return "", err
	}
	if err != nil {
		p.log.Error("poll failed", logx.Err(err), logx.Int64("from_date", cursor))
		msg = practicum.FailureMessage(err)
	}

	res, nerr := p.notify.Notify(ctx, msg)
	if nerr != nil {
		// Already logged by the notifier; nothing more to do until the next poll.
		p.log.Debug("notification not delivered", logx.Err(nerr))
	}

	p.mu.Lock()
	p.status.Iterations++
	p.status.LastRun = p.now()
	p.status.LastMessage = msg
	p.status.LastSent = res.Sent
	p.status.LastError = ""
	if err != nil {
		p.status.LastError = err.Error()
	}
	if next > p.status.Cursor {
		p.status.Cursor = next
	}
	p.mu.Unlock()

	return msg, err
}

// poll runs fetch -> validate -> format. next is the cursor to use from now
// on, or 0 to keep the current one. The cursor advances once the reply
// validates, even if formatting its record fails, so a bad record cannot
// wedge the loop.
func (p *Poller) poll(ctx context.Context, cursor int64) (msg string, next int64, err error) {
	raw, err := p.fetch.Fetch(ctx, cursor)
	if err != nil {
		return "", 0, err
	}
	resp, err := practicum.CheckResponse(raw)
	if err != nil {
		return "", 0, err
	}
	msg, err = practicum.Summarize(resp)
	if err != nil {
		return "", resp.CurrentDate, err
	}
	if hw, ok := resp.Latest(); ok {
		p.log.Info("homework status changed", logx.String("homework", hw.Name), logx.String("status", hw.Status))
	} else {
		p.log.Debug("no status changes", logx.Int64("from_date", cursor))
	}
	return msg, resp.CurrentDate, nil
}
