package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"hwbot/internal/poller"
	logx "hwbot/pkg/logx"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names ("practicum.token") instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	return v
}

// Validate checks struct constraints and the fields that need parsing
// (durations, schedule, log level).
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	durations := []struct{ path, raw string }{
		{"practicum.request_timeout", cfg.Practicum.RequestTimeout},
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"notifier.send_timeout", cfg.Notifier.SendTimeout},
	}
	if cfg.Storage != nil {
		durations = append(durations, struct{ path, raw string }{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := poller.ParseSchedule(cfg.Poller.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("poller.schedule: %w", err))
	}
	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Storage != nil {
		driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		if (driver == "file" || driver == "sqlite" || driver == "sqlite3") && strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path: required when storage.driver=%s", driver))
		}
	}
	return errors.Join(errs...)
}

// fieldError renders e.g. "practicum.token: required".
func fieldError(fe validator.FieldError) error {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	switch fe.Tag() {
	case "notblank", "required":
		return fmt.Errorf("%s: required", ns)
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", ns, fe.Param())
	case "url":
		return fmt.Errorf("%s: invalid url %q", ns, fe.Value())
	default:
		if fe.Param() != "" {
			return fmt.Errorf("%s: failed %s=%s", ns, fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s: failed %s", ns, fe.Tag())
	}
}

// ParseDurationField parses a Go duration config value. Empty means 0;
// negative values are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q", path, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
