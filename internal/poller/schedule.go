package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule polls every ten minutes.
const DefaultSchedule = "@every 10m"

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// intervalSchedule is a constant delay measured from the end of the
// previous iteration. Unlike cron.Every it does not round to seconds.
type intervalSchedule struct {
	every time.Duration
}

func (s intervalSchedule) Next(t time.Time) time.Time { return t.Add(s.every) }

// ParseSchedule accepts a Go duration ("10m", "90s") or a cron expression
// ("*/10 * * * *", "@every 10m", "@hourly"). Empty means DefaultSchedule.
func ParseSchedule(raw string) (cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		s = DefaultSchedule
	}
	if !strings.HasPrefix(s, "@") && !strings.ContainsAny(s, " \t") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q (use a duration like '10m' or cron like '*/10 * * * *')", raw)
		}
		if d <= 0 {
			return nil, fmt.Errorf("schedule interval must be > 0")
		}
		return intervalSchedule{every: d}, nil
	}
	sched, err := parser.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return sched, nil
}
