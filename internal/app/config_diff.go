package app

import (
	"reflect"

	"hwbot/internal/config"
)

// restartOnly lists sections whose changes are not applied live.
var restartOnly = map[string]bool{
	"practicum": true,
	"telegram":  true,
	"storage":   true,
}

// changedSections returns the top-level config sections that differ,
// in declaration order.
func changedSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	section := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	section("practicum", prev.Practicum, next.Practicum)
	section("telegram", prev.Telegram, next.Telegram)
	section("poller", prev.Poller, next.Poller)
	section("notifier", prev.Notifier, next.Notifier)
	section("logging", prev.Logging, next.Logging)
	section("storage", prev.Storage, next.Storage)
	return out
}
