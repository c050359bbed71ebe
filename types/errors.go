package types

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError means the process cannot extract anything: a credential
// or the schema document is missing.
type ConfigurationError struct {
	What  string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("configuration error: %s", e.What)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.What, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

// ModelCallError wraps any failure of a single model call: transport, non-2xx
// status, or a body that is not a JSON object.
type ModelCallError struct {
	Model string
	Cause error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("model call to %q failed: %v", e.Model, e.Cause)
}

func (e *ModelCallError) Unwrap() error { return e.Cause }

type UnknownDataClassError struct {
	Name  string
	Valid []string
}

func (e *UnknownDataClassError) Error() string {
	return fmt.Sprintf("invalid data class: %s. Must be one of: [%s]", e.Name, strings.Join(e.Valid, ", "))
}

type EmptyInputError struct{}

func (e *EmptyInputError) Error() string {
	return "medical note text is required and cannot be empty"
}

var ErrNotJSONObject = errors.New("response is not a JSON object")

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	var unknown *UnknownDataClassError
	var empty *EmptyInputError
	return errors.As(err, &unknown) || errors.As(err, &empty)
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// CheckNote rejects blank notes before any model call is made.
func CheckNote(note string) error {
	if strings.TrimSpace(note) == "" {
		return &EmptyInputError{}
	}
	return nil
}
