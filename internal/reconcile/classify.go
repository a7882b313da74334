package reconcile

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorCategory buckets store write failures so run reports can say what
// kind of data problem slipped past validation.
type ErrorCategory string

const (
	CategoryInvalidSyntax ErrorCategory = "invalid_input_syntax"
	CategoryValueTooLong  ErrorCategory = "value_too_long"
	CategoryInvalidJSON   ErrorCategory = "invalid_json"
	CategoryNotNull       ErrorCategory = "not_null_violation"
	CategoryUnique        ErrorCategory = "unique_violation"
	CategoryUnknown       ErrorCategory = "unknown"
)

var (
	syntaxValueRe = regexp.MustCompile(`invalid input syntax for type ([\w ]+): "([^"]*)"`)
	notNullColRe  = regexp.MustCompile(`null value in column "([^"]+)"`)
	uniqueConRe   = regexp.MustCompile(`unique constraint "([^"]+)"`)
)

// Classify buckets a store error by its message. Postgres surfaces these
// as plain text, so substring matching is the only portable option across
// direct pgx errors and PostgREST-style wrappers.
func Classify(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid input syntax"):
		return CategoryInvalidSyntax
	case strings.Contains(msg, "value too long"):
		return CategoryValueTooLong
	case strings.Contains(msg, "invalid json") || strings.Contains(msg, "invalid input value for enum json"):
		return CategoryInvalidJSON
	case strings.Contains(msg, "not-null constraint") || strings.Contains(msg, "violates not-null"):
		return CategoryNotNull
	case strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key"):
		return CategoryUnique
	default:
		return CategoryUnknown
	}
}

// Describe turns a store error into the one-line detail surfaced to run
// reports, naming the offending column or value when the message allows.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch Classify(err) {
	case CategoryInvalidSyntax:
		if m := syntaxValueRe.FindStringSubmatch(msg); m != nil {
			return fmt.Sprintf("a %s column rejected the value %q", m[1], m[2])
		}
		return "a column rejected a value with the wrong type"
	case CategoryValueTooLong:
		return "a value exceeded the column length limit"
	case CategoryInvalidJSON:
		return "a JSON column received malformed JSON"
	case CategoryNotNull:
		if m := notNullColRe.FindStringSubmatch(msg); m != nil {
			return fmt.Sprintf("required column %q was null", m[1])
		}
		return "a required column was null"
	case CategoryUnique:
		if m := uniqueConRe.FindStringSubmatch(msg); m != nil {
			return fmt.Sprintf("write collided with unique constraint %q", m[1])
		}
		return "write collided with a unique constraint"
	default:
		return msg
	}
}
