package logx

import (
	"time"

	"github.com/rs/zerolog"
)

// Field adds one key to a log event. Later fields win on duplicate keys.
type Field func(e *zerolog.Event)

func String(k, v string) Field { return func(e *zerolog.Event) { e.Str(k, v) } }
func Int(k string, v int) Field { return func(e *zerolog.Event) { e.Int(k, v) } }
func Int64(k string, v int64) Field { return func(e *zerolog.Event) { e.Int64(k, v) } }
func Uint64(k string, v uint64) Field { return func(e *zerolog.Event) { e.Uint64(k, v) } }
func Bool(k string, v bool) Field { return func(e *zerolog.Event) { e.Bool(k, v) } }
func Duration(k string, v time.Duration) Field { return func(e *zerolog.Event) { e.Dur(k, v) } }
func Time(k string, v time.Time) Field { return func(e *zerolog.Event) { e.Time(k, v) } }
func Any(k string, v any) Field { return func(e *zerolog.Event) { e.Interface(k, v) } }

// Err adds the error under "err". A nil error adds nothing.
func Err(err error) Field {
	if err == nil {
		return nil
	}
	return func(e *zerolog.Event) { e.Err(err) }
}
