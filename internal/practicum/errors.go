package practicum

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected http status")
	ErrInvalidJSON       = errors.New("response is not valid json")
	ErrNotObject         = errors.New("response is not a json object")
	ErrHomeworksNotList  = errors.New("homeworks is not a list")
	ErrHomeworkNotObject = errors.New("homework is not a json object")
	ErrBadCurrentDate    = errors.New("current_date is not an integer")
	ErrBadField          = errors.New("homework field has the wrong type")
	ErrMissingName       = errors.New("homework_name is missing")
	ErrMissingStatus     = errors.New("status is missing")
	ErrUnknownStatus     = errors.New("unknown homework status")
)

// StatusError is returned by Fetch for any non-200 reply.
//
// Code, Message and APIError are filled from the body when it is a JSON
// object carrying them (the API uses "code"/"message" and sometimes "error").
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
	APIError   string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d", ErrUnexpectedStatus, e.StatusCode)
	for _, p := range []string{e.Code, e.Message, e.APIError} {
		if p != "" {
			b.WriteString(" ")
			b.WriteString(p)
		}
	}
	return b.String()
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }
