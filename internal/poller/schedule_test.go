package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 5, 1, 12, 3, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "default", raw: "", want: base.Add(10 * time.Minute)},
		{name: "duration", raw: "90s", want: base.Add(90 * time.Second)},
		{name: "sub-second duration", raw: "250ms", want: base.Add(250 * time.Millisecond)},
		{name: "every descriptor", raw: "@every 5m", want: base.Add(5 * time.Minute)},
		{name: "cron", raw: "*/10 * * * *", want: time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)},
		{name: "hourly", raw: "@hourly", want: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := ParseSchedule(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(base).In(time.UTC))
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"soon", "-5m", "0s", "@fortnightly", "* * *"} {
		_, err := ParseSchedule(raw)
		assert.Error(t, err, raw)
	}
}
