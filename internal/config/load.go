package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// Environment variables read by the loader.
const (
	EnvConfigPath     = "HWBOT_CONFIG"
	EnvDotEnv         = "HWBOT_DOTENV"
	EnvPracticumToken = "PRACTICUM_TOKEN"
	EnvTelegramToken  = "TELEGRAM_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
)

const (
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"
	DefaultSchedule = "@every 10m"
	DefaultDotEnv   = ".env"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Practicum: PracticumConfig{Endpoint: DefaultEndpoint, RequestTimeout: "30s"},
		Telegram:  TelegramConfig{PollTimeout: "10s"},
		Poller:    PollerConfig{Schedule: DefaultSchedule},
		Notifier:  NotifierConfig{RatePerSec: 1, SendTimeout: "10s", HistorySize: 50},
		Logging:   LoggingConfig{Level: "info", Console: true},
	}
}

// decodeFile decodes a JSON or YAML file on top of cfg. Unknown keys and
// trailing data are rejected.
func decodeFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	format := "json"
	jb := b
	if isYAML(path) {
		format = "yaml"
		if jb, err = yamlToJSON(b); err != nil {
			return fmt.Errorf("yaml config %s: %w", path, err)
		}
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%s config %s: %w", format, path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return fmt.Errorf("%s config %s: trailing data", format, path)
		}
		return err
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// yamlToJSON re-encodes a YAML document as JSON so both formats go through
// the same strict decoder.
func yamlToJSON(b []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(stringKeys(doc))
}

// stringKeys turns map[any]any nodes into map[string]any.
func stringKeys(node any) any {
	switch n := node.(type) {
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			out[fmt.Sprint(k)] = stringKeys(v)
		}
		return out
	case map[string]any:
		for k, v := range n {
			n[k] = stringKeys(v)
		}
		return n
	case []any:
		for i, v := range n {
			n[i] = stringKeys(v)
		}
		return n
	}
	return node
}

// readDotEnv returns the variables of a .env file. A missing file yields no
// variables and no error.
func readDotEnv(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("dotenv %s: %w", path, err)
	}
	return vals, nil
}

// layered looks keys up in the process environment first, then in dotenv.
func layered(lookup LookupFunc, dotenv map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// applyEnv overrides secrets and the chat id from the environment.
func applyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvPracticumToken); ok && strings.TrimSpace(v) != "" {
		cfg.Practicum.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvTelegramChatID); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", EnvTelegramChatID, v)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}
