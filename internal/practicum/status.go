package practicum

import (
	"fmt"
	"sort"
	"strings"
)

// NoChangeMessage is sent when a poll returns no records.
const NoChangeMessage = "Статус проверки не изменился."

const failurePrefix = "Сбой в работе программы: "

// Verdicts maps a review status to the text shown to the student.
var Verdicts = map[string]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Verdict returns the display text for status.
func Verdict(status string) (string, bool) {
	v, ok := Verdicts[status]
	return v, ok
}

// KnownStatuses returns the verdict table keys in a stable order.
func KnownStatuses() []string {
	out := make([]string, 0, len(Verdicts))
	for k := range Verdicts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ParseStatus formats a status-change sentence for hw.
func ParseStatus(hw Homework) (string, error) {
	name := strings.TrimSpace(hw.Name)
	if name == "" {
		return "", ErrMissingName
	}
	status := strings.TrimSpace(hw.Status)
	if status == "" {
		return "", ErrMissingStatus
	}
	verdict, ok := Verdict(status)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", name, verdict), nil
}

// Summarize picks the message for a validated response: the latest record's
// status sentence, or NoChangeMessage when there is none.
func Summarize(resp Response) (string, error) {
	hw, ok := resp.Latest()
	if !ok {
		return NoChangeMessage, nil
	}
	return ParseStatus(hw)
}

// FailureMessage renders an iteration error for the chat.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	return failurePrefix + err.Error()
}
