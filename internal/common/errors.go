// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Failure kinds. Every stage error wraps exactly one of these.
var (
	// ErrParseFailure means a source export could not be read or parsed.
	ErrParseFailure = errors.New("parse failure")
	// ErrLookupFailure means an exchange rate could not be fetched.
	ErrLookupFailure = errors.New("rate lookup failure")
	// ErrConfigurationFailure means the run cannot proceed with the given settings.
	ErrConfigurationFailure = errors.New("configuration failure")
)

// ParseError reports a source export that yielded no rows.
type ParseError struct {
	Err    error
	Source string
	Path   string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s: %v", ErrParseFailure, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s): %v", ErrParseFailure, e.Source, e.Path, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParseFailure, e.Err}
}

// LookupError reports a failed rate lookup for one calendar date.
type LookupError struct {
	Date time.Time
	Err  error
	From string
	To   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s->%s on %s: %v", ErrLookupFailure, e.From, e.To, e.Date.Format("2006-01-02"), e.Err)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrLookupFailure, e.Err}
}

// ConfigError reports missing or invalid settings. Missing holds the names of
// every absent required setting.
type ConfigError struct {
	Reason  string
	Missing []string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing %s", ErrConfigurationFailure, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrConfigurationFailure, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigurationFailure
}

// NewConfigError creates a configuration error with a free-form reason.
func NewConfigError(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// IsDegraded reports whether err allows the run to continue with a reduced
// result. Configuration failures must stop the run.
func IsDegraded(err error) bool {
	if err == nil || errors.Is(err, ErrConfigurationFailure) {
		return false
	}
	return errors.Is(err, ErrParseFailure) || errors.Is(err, ErrLookupFailure)
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
