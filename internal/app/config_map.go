package app

import (
	"fmt"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/notifier"
	"hwbot/internal/practicum"
	"hwbot/internal/storage"
	kit "hwbot/internal/transport"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	timeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Target:      kit.ChatTarget{ChatID: cfg.Telegram.ChatID},
		RatePerSec:  cfg.Notifier.RatePerSec,
		SendTimeout: timeout,
		Dedup:       !cfg.Notifier.DisableDedup,
		HistorySize: cfg.Notifier.HistorySize,
	}, nil
}

func mapPracticumConfig(cfg *config.Config) (practicum.Config, error) {
	timeout, err := config.ParseDurationField("practicum.request_timeout", cfg.Practicum.RequestTimeout)
	if err != nil {
		return practicum.Config{}, err
	}
	return practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    cfg.Practicum.Token,
		Timeout:  timeout,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", cfg.Notifier.SendTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		APIURL:      cfg.Telegram.APIURL,
		PollTimeout: pollTimeout,
		SendTimeout: sendTimeout,
		Receive:     !cfg.Telegram.DisableCommands,
	}, nil
}
