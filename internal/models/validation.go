package models

import (
	"sort"
	"strings"
)

// ValidationError carries per-field messages for rejected input. Handlers render it as a
// 400 with fieldErrors.
type ValidationError struct {
	Subject     string
	FieldErrors map[string][]string
}

func NewValidationError(subject string, fieldErrors map[string][]string) *ValidationError {
	return &ValidationError{Subject: subject, FieldErrors: fieldErrors}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid " + e.Subject + ": " + strings.Join(fields, ", ")
}
