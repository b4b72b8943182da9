package notifier

import (
	"time"

	kit "hwbot/internal/transport"
)

// Config controls delivery.
type Config struct {
	Target      kit.ChatTarget
	RatePerSec  int
	SendTimeout time.Duration
	Dedup       bool
	HistorySize int
}

type HistoryItem struct {
	At   time.Time
	Text string
}

// Result describes what Notify did with a message.
type Result struct {
	Sent    bool
	Deduped bool
	Ref     kit.MessageRef
}
