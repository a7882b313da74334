// Package validate enforces the place-record invariants before anything
// is written to the store. It restores the "numeric fields are numeric"
// contract the upstream scraping API routinely violates by returning
// numbers and booleans as strings.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxStringLen is the per-column limit for plain text fields.
	// Longer values are truncated with a warning, not rejected.
	MaxStringLen = 1000

	// MaxJSONLen is the limit for serialized structured fields. Truncation
	// past this limit can produce invalid JSON; that matches the upstream
	// behavior and is accepted as lossy.
	MaxJSONLen = 10000
)

// rangeCheck bounds a float field.
type rangeCheck struct {
	min, max float64
}

// floatFields are coerced to float64 and range-checked.
var floatFields = map[string]rangeCheck{
	"latitude":  {-90, 90},
	"longitude": {-180, 180},
	"rating":    {0, 5},
}

// intFields are coerced to int64 and must be non-negative.
var intFields = []string{"reviews", "photos_count"}

// stringFields are length-limited free text columns.
var stringFields = []string{
	"name", "site", "subtypes", "category", "phone", "full_address",
	"borough", "street", "city", "postal_code", "state", "country",
	"photo", "range", "prices", "description", "typical_time_spent",
	"booking_appointment_link", "menu_link", "location_link",
	"place_id", "google_id", "cid", "kgmid", "reviews_id",
}

// jsonFields hold serialized structured data.
var jsonFields = []string{
	"reviews_per_score", "working_hours", "about",
	"reservation_links", "order_links",
}

// timeLayouts are accepted for the updated_at field, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result is the outcome of validating one mapped record. A record with
// any error is never persisted; warnings never block persistence.
type Result struct {
	Valid     bool           `json:"is_valid"`
	Errors    []string       `json:"errors"`
	Warnings  []string       `json:"warnings"`
	Sanitized map[string]any `json:"sanitized_data"`
}

// Validate checks and sanitizes a mapped place record. The input is never
// mutated; the returned Sanitized map is a fresh copy. Validating the
// sanitized output of a previous call yields an identical result.
func Validate(data map[string]any) Result {
	var errs, warns []string
	sanitized := make(map[string]any, len(data))
	for k, v := range data {
		sanitized[k] = v
	}

	// Hard requirements: without the linkage key and the enrichment
	// identity there is nothing meaningful to persist.
	if isEmpty(data["customer_id"]) {
		errs = append(errs, "customer_id is required")
	}
	if isEmpty(data["place_id"]) {
		errs = append(errs, "place_id is required")
	}

	for field, rc := range floatFields {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil || f < rc.min || f > rc.max {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", field, v))
			continue
		}
		sanitized[field] = f
	}

	for _, field := range intFields {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		n, err := toInt(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("invalid %s: %v", field, v))
			continue
		}
		sanitized[field] = n
	}

	for _, field := range stringFields {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		s := toString(v)
		if runes := []rune(s); len(runes) > MaxStringLen {
			warns = append(warns, fmt.Sprintf("%s too long (%d chars), truncated to %d", field, len(runes), MaxStringLen))
			s = string(runes[:MaxStringLen])
		}
		sanitized[field] = s
	}

	for _, field := range jsonFields {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr {
			// Already serialized upstream; accepted verbatim.
			sanitized[field] = s
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s is not serializable: %v", field, err))
			sanitized[field] = nil
			continue
		}
		s := string(encoded)
		if runes := []rune(s); len(runes) > MaxJSONLen {
			warns = append(warns, fmt.Sprintf("%s JSON too large (%d chars), truncated to %d", field, len(runes), MaxJSONLen))
			s = string(runes[:MaxJSONLen])
		}
		sanitized[field] = s
	}

	if v, ok := data["verified"]; ok && v != nil {
		b, warn := toBool(v)
		if warn != "" {
			warns = append(warns, warn)
		}
		sanitized["verified"] = b
	}

	if v, ok := data["updated_at"]; ok && !isEmpty(v) {
		ts, err := toTime(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid updated_at: %v", v))
		} else {
			sanitized["updated_at"] = ts.UTC().Format(time.RFC3339Nano)
		}
	}

	return Result{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Warnings:  warns,
		Sanitized: sanitized,
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		// "4.5" style input: truncate toward zero.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("not an integer: %T", v)
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// toBool coerces a loosely typed verified flag. Unlike the upstream
// dashboard, the strings "false" and "0" coerce to false; any other
// non-empty string is treated as true with a warning.
func toBool(v any) (bool, string) {
	switch t := v.(type) {
	case bool:
		return t, ""
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, ""
		case "false", "0", "":
			return false, ""
		default:
			return true, fmt.Sprintf("verified has unexpected value %q, treated as true", t)
		}
	case float64:
		return t != 0, ""
	case int:
		return t != 0, ""
	case int64:
		return t != 0, ""
	default:
		return true, fmt.Sprintf("verified has unexpected type %T, treated as true", v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", t)
	default:
		return time.Time{}, fmt.Errorf("not a timestamp: %T", v)
	}
}
