package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file next to Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome of a delivery attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeDeduped Outcome = "deduped"
)

// Delivery records one notification attempt.
type Delivery struct {
	At        time.Time `json:"at"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// Store is the persistence API used by the notifier.
type Store interface {
	AppendDelivery(ctx context.Context, d Delivery) error
	Close() error
}
