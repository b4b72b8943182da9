package practicum

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CheckResponse validates the shape of a raw API reply.
//
// The body must be a JSON object. "homeworks", when present and not null,
// must be an array of objects. A missing or empty list is valid and yields a
// Response with no records.
func CheckResponse(raw []byte) (Response, error) {
	var top map[string]json.RawMessage
	if !isKind(raw, '{') {
		return Response{}, ErrNotObject
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}

	var resp Response

	if v, ok := top["current_date"]; ok && !isNull(v) {
		var ts int64
		if err := json.Unmarshal(v, &ts); err != nil {
			return Response{}, fmt.Errorf("%w: %s", ErrBadCurrentDate, truncate(string(v), 64))
		}
		resp.CurrentDate = ts
	}

	v, ok := top["homeworks"]
	if !ok || isNull(v) {
		return resp, nil
	}
	if !isKind(v, '[') {
		return Response{}, fmt.Errorf("%w: got %s", ErrHomeworksNotList, kindOf(v))
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrHomeworksNotList, err)
	}

	resp.Homeworks = make([]Homework, 0, len(items))
	for i, it := range items {
		if !isKind(it, '{') {
			return Response{}, fmt.Errorf("homeworks[%d]: %w: got %s", i, ErrHomeworkNotObject, kindOf(it))
		}
		hw, err := decodeHomework(it)
		if err != nil {
			return Response{}, fmt.Errorf("homeworks[%d]: %w", i, err)
		}
		resp.Homeworks = append(resp.Homeworks, hw)
	}
	return resp, nil
}

// decodeHomework reads one record. homework_name and status must be strings
// when present; the informational fields are kept only when their type
// matches and are otherwise left empty.
func decodeHomework(raw []byte) (Homework, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Homework{}, fmt.Errorf("%w: %v", ErrHomeworkNotObject, err)
	}

	var hw Homework
	for key, dst := range map[string]*string{"homework_name": &hw.Name, "status": &hw.Status} {
		v, ok := fields[key]
		if !ok || isNull(v) {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return Homework{}, fmt.Errorf("%w: %s is %s", ErrBadField, key, kindOf(v))
		}
	}

	optional := map[string]any{
		"id":               &hw.ID,
		"reviewer_comment": &hw.ReviewerComment,
		"date_updated":     &hw.DateUpdated,
		"lesson_name":      &hw.LessonName,
	}
	for key, dst := range optional {
		if v, ok := fields[key]; ok {
			_ = json.Unmarshal(v, dst)
		}
	}
	return hw, nil
}

func isKind(raw []byte, open byte) bool {
	b := bytes.TrimSpace(raw)
	return len(b) > 0 && b[0] == open
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func kindOf(raw []byte) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return "empty"
	}
	switch b[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
