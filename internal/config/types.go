package config

// Config is the whole bot configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Tokens and the chat id are usually supplied through the environment
// (PRACTICUM_TOKEN, TELEGRAM_TOKEN, TELEGRAM_CHAT_ID), which overrides the file.
type Config struct {
	Practicum PracticumConfig `json:"practicum"`
	Telegram  TelegramConfig  `json:"telegram"`
	Poller    PollerConfig    `json:"poller"`
	Notifier  NotifierConfig  `json:"notifier"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
}

// PracticumConfig configures the homework status API client.
type PracticumConfig struct {
	Token    string `json:"token" validate:"notblank"`
	Endpoint string `json:"endpoint" validate:"omitempty,url"`
	// RequestTimeout bounds a single API call. "0s" disables it.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

type TelegramConfig struct {
	Token  string `json:"token" validate:"notblank"`
	ChatID int64  `json:"chat_id" validate:"required"`
	// APIURL overrides the Bot API base URL (default api.telegram.org).
	APIURL string `json:"api_url,omitempty" validate:"omitempty,url"`
	// PollTimeout is the getUpdates long-poll timeout used for chat commands.
	PollTimeout string `json:"poll_timeout,omitempty"`
	// DisableCommands turns off update polling; the bot then only sends.
	DisableCommands bool `json:"disable_commands,omitempty"`
}

// PollerConfig controls how often statuses are fetched.
//
// Schedule accepts a Go duration ("10m"), a descriptor ("@every 10m",
// "@hourly") or a cron expression with optional seconds.
type PollerConfig struct {
	Schedule string `json:"schedule"`
	// FromDate is the initial from_date cursor in unix seconds. 0 means now.
	FromDate int64 `json:"from_date,omitempty" validate:"gte=0"`
}

type NotifierConfig struct {
	RatePerSec   int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
	SendTimeout  string `json:"send_timeout,omitempty"`
	HistorySize  int    `json:"history_size,omitempty" validate:"gte=0"`
	DisableDedup bool   `json:"disable_dedup,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the optional delivery journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./hwbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}
