// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEntry    = errors.New("duplicate entry")
	ErrDatabaseCorrupted = errors.New("database corrupted")

	// Input errors.
	ErrEmptyInput       = errors.New("input table has no rows")
	ErrUnsupportedInput = errors.New("unsupported input format")
	ErrRowParse         = errors.New("row parse failure")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigurationError reports an invalid mapping, threshold or weight. It is
// fatal and always raised before any matching happens.
type ConfigurationError struct {
	Section string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid configuration in %s: %s", e.Section, e.Reason)
	}
	return fmt.Sprintf("invalid configuration %s.%s: %s", e.Section, e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(section, field, reason string) error {
	return &ConfigurationError{Section: section, Field: field, Reason: reason}
}

// RowParseError describes a single row that could not be normalized. The
// normalizer records these in the excluded-row report instead of failing.
type RowParseError struct {
	Err       error
	RecordSet string
	Field     string
	Value     string
	Reason    string
	Row       int
}

func (e *RowParseError) Error() string {
	msg := fmt.Sprintf("%s row %d: %s %q: %s", e.RecordSet, e.Row, e.Field, e.Value, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RowParseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrRowParse.
func (e *RowParseError) Is(target error) bool {
	return target == ErrRowParse
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
