package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid matches every ValidationError via errors.Is.
var ErrInvalid = errors.New("invalid config")

// FieldError is one problem with one setting.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every problem found by [Config.Validate].
type ValidationError struct {
	Items []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Items) == 0 {
		return "invalid config"
	}
	var b strings.Builder
	b.WriteString("invalid config:")
	for _, item := range e.Items {
		b.WriteString("\n - ")
		b.WriteString(item.Error())
	}
	return b.String()
}

// Add records a problem with field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Items = append(e.Items, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// HasAny reports whether any problem was recorded.
func (e ValidationError) HasAny() bool {
	return len(e.Items) > 0
}
