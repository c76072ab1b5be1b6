package rrule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRule is matched by every construction-time violation.
	ErrInvalidRule = errors.New("rrule: invalid rule")
	// ErrMalformedText is matched by every parse-time grammar violation.
	ErrMalformedText = errors.New("rrule: malformed rule text")
	// ErrUnboundedCount is returned when the size of a recurrence without
	// COUNT or UNTIL is requested.
	ErrUnboundedCount = errors.New("rrule: recurrence has neither count nor until")
)

// InvalidRuleError reports a semantic violation found while constructing a
// Rule.
type InvalidRuleError struct {
	Field  string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("rrule: invalid rule: %s", e.Reason)
	}
	return fmt.Sprintf("rrule: invalid rule: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRule) hold.
func (e *InvalidRuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

func invalid(field, format string, args ...any) error {
	return &InvalidRuleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MalformedRuleTextError reports a grammar violation in rule text. Token
// is the offending substring and Offset its byte position in the parsed
// input, or -1 when the position is not known.
type MalformedRuleTextError struct {
	Token  string
	Offset int
	Reason string
	Err    error
}

func (e *MalformedRuleTextError) Error() string {
	msg := fmt.Sprintf("rrule: malformed rule text: %s %q", e.Reason, e.Token)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrMalformedText) hold.
func (e *MalformedRuleTextError) Is(target error) bool {
	return target == ErrMalformedText
}

func (e *MalformedRuleTextError) Unwrap() error {
	return e.Err
}

func malformed(token string, offset int, reason string) error {
	return &MalformedRuleTextError{Token: token, Offset: offset, Reason: reason}
}
