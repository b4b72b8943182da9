package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func init() {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat
}

// source yields the zerolog logger to write to at call time.
type source interface {
	current() zerolog.Logger
}

type static zerolog.Logger

func (s static) current() zerolog.Logger { return zerolog.Logger(s) }

// Logger is a small structured logger over zerolog.
//
// Loggers derived from a Service follow its Apply calls. The zero value
// discards everything.
type Logger struct {
	src    source
	fields []Field
}

// Nop returns a logger that never writes.
func Nop() Logger { return Logger{src: static(zerolog.Nop())} }

// NewWriter returns a standalone JSON logger writing to w. Default level is debug.
func NewWriter(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, zerolog.DebugLevel)).With().Timestamp().Logger()
	return Logger{src: static(zl)}
}

func (l Logger) IsZero() bool { return l.src == nil && len(l.fields) == 0 }

func (l Logger) zl() zerolog.Logger {
	if l.src == nil {
		return zerolog.Nop()
	}
	return l.src.current()
}

// Enabled reports whether level would be written.
func (l Logger) Enabled(level Level) bool {
	zl := l.zl()
	return zl.GetLevel() != zerolog.Disabled && level >= zl.GetLevel()
}

// With returns a child logger that adds fields to every event.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append([]Field(nil), l.fields...), fields...)
	return l
}

func (l Logger) Trace(msg string, fields ...Field) { l.emit(zerolog.TraceLevel, msg, fields) }
func (l Logger) Debug(msg string, fields ...Field) { l.emit(zerolog.DebugLevel, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.emit(zerolog.InfoLevel, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.emit(zerolog.WarnLevel, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.emit(zerolog.ErrorLevel, msg, fields) }

func (l Logger) emit(level zerolog.Level, msg string, fields []Field) {
	zl := l.zl()
	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	// emit <- Info <- caller
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	for _, set := range [][]Field{l.fields, fields} {
		for _, f := range set {
			if f != nil {
				f(e)
			}
		}
	}
	e.Msg(msg)
}

func build(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(parseLevel(level, zerolog.InfoLevel)).With().Timestamp().Logger()
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          out,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string {
			s, _ := i.(string)
			return s
		},
	}
}

var levels = map[string]zerolog.Level{
	"TRACE":   zerolog.TraceLevel,
	"DEBUG":   zerolog.DebugLevel,
	"INFO":    zerolog.InfoLevel,
	"WARN":    zerolog.WarnLevel,
	"WARNING": zerolog.WarnLevel,
	"ERROR":   zerolog.ErrorLevel,
}

// ValidLevel reports whether s names a level. Empty means the default.
func ValidLevel(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	_, ok := levels[s]
	return ok || s == ""
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	if lv, ok := levels[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return lv
	}
	return def
}
