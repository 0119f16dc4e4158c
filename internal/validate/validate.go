// Package validate checks agent-supplied JSON payloads: action intents
// before they are acted on, and perception snapshots before they are
// trusted. Validation failures are results, not errors; only the caller
// decides what to do with an invalid payload.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Result is the outcome of one validation.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func invalid(msg string) Result {
	return Result{Valid: false, Error: msg}
}

// ActionIntent validates an action request: object shape, timing
// budget, then per-action fields. Supported actions are move_mouse,
// click, press_key, and type_text.
func ActionIntent(data []byte) Result {
	obj, errResult := parseObject(data)
	if errResult != nil {
		return *errResult
	}

	if msg := checkTiming(obj); msg != "" {
		return invalid(msg)
	}

	action, ok := stringField(obj, "action")
	if !ok {
		return invalid("Missing or invalid 'action'")
	}

	switch action {
	case "move_mouse":
		if _, ok := intField(obj, "x"); !ok {
			return invalid("Missing or invalid 'x'")
		}
		if _, ok := intField(obj, "y"); !ok {
			return invalid("Missing or invalid 'y'")
		}
	case "click":
		if raw, present := obj["button"]; present {
			s, ok := raw.(string)
			if !ok || !isAllowedButton(s) {
				return invalid("Invalid 'button'")
			}
		}
		// Coordinates are optional for clicks, but come as a pair.
		_, hasX := obj["x"]
		_, hasY := obj["y"]
		if hasX || hasY {
			if _, ok := intField(obj, "x"); !ok {
				return invalid("Missing or invalid 'x'")
			}
			if _, ok := intField(obj, "y"); !ok {
				return invalid("Missing or invalid 'y'")
			}
		}
	case "press_key":
		if _, ok := stringField(obj, "key"); !ok {
			return invalid("Missing or invalid 'key'")
		}
	case "type_text":
		if _, ok := stringField(obj, "text"); !ok {
			return invalid("Missing or invalid 'text'")
		}
	default:
		return invalid(fmt.Sprintf("Unknown action: %s", action))
	}

	return Result{Valid: true}
}

// Snapshot validates a perception snapshot: required dimensions and
// timestamp, plus type checks on the optional detection fields.
func Snapshot(data []byte) Result {
	obj, errResult := parseObject(data)
	if errResult != nil {
		return *errResult
	}

	if w, ok := uintField(obj, "width"); !ok || w == 0 {
		return invalid("Missing or invalid 'width'")
	}
	if h, ok := uintField(obj, "height"); !ok || h == 0 {
		return invalid("Missing or invalid 'height'")
	}
	if _, ok := uintField(obj, "timestamp"); !ok {
		return invalid("Missing or invalid 'timestamp'")
	}

	for _, key := range []string{"yellow_count", "red_count"} {
		if raw, present := obj[key]; present && !isUint(raw) {
			return invalid(fmt.Sprintf("Invalid '%s'", key))
		}
	}

	for _, key := range []string{"arrow", "highlight"} {
		if msg := checkMarker(obj, key); msg != "" {
			return invalid(msg)
		}
	}

	if raw, present := obj["ocr_text"]; present {
		if _, ok := raw.(string); !ok {
			return invalid("Invalid 'ocr_text'")
		}
	}

	return Result{Valid: true}
}

func parseObject(data []byte) (map[string]any, *Result) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		r := invalid(fmt.Sprintf("Invalid JSON: %v", err))
		return nil, &r
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		r := invalid("Expected JSON object")
		return nil, &r
	}
	return obj, nil
}

// checkTiming enforces the optional freshness budgets. A payload past
// its deadline or older than max_age is rejected before anything else.
func checkTiming(obj map[string]any) string {
	if deadline, ok := uintField(obj, "deadline_ms"); ok {
		if nowMillis() > deadline {
			return "Deadline exceeded"
		}
	}

	ts, tsOK := uintField(obj, "timestamp_ms")
	maxAge, ageOK := uintField(obj, "max_age_ms")
	if tsOK && ageOK {
		var age uint64
		if now := nowMillis(); now > ts {
			age = now - ts
		}
		if age > maxAge {
			return "Action intent too old"
		}
	}
	return ""
}

func checkMarker(obj map[string]any, key string) string {
	raw, present := obj[key]
	if !present || raw == nil {
		return ""
	}
	marker, ok := raw.(map[string]any)
	if !ok {
		return fmt.Sprintf("Invalid '%s'", key)
	}
	_, xOK := intField(marker, "x")
	_, yOK := intField(marker, "y")
	_, confOK := floatField(marker, "confidence")
	if !xOK || !yOK || !confOK {
		return fmt.Sprintf("Invalid '%s' fields", key)
	}
	return ""
}

func isAllowedButton(s string) bool {
	switch strings.ToLower(s) {
	case "left", "right", "middle":
		return true
	}
	return false
}

// JSON numbers decode as float64; integer fields reject fractions.

func intField(obj map[string]any, key string) (int64, bool) {
	f, ok := obj[key].(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func uintField(obj map[string]any, key string) (uint64, bool) {
	f, ok := obj[key].(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return uint64(f), true
}

func floatField(obj map[string]any, key string) (float64, bool) {
	f, ok := obj[key].(float64)
	return f, ok
}

func stringField(obj map[string]any, key string) (string, bool) {
	s, ok := obj[key].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func isUint(raw any) bool {
	f, ok := raw.(float64)
	return ok && f >= 0 && f == math.Trunc(f)
}

func nowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
