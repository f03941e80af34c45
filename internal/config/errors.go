package config

import (
	"fmt"
	"strings"
)

// ValidationError is a single accumulated validation failure, scoped to the
// section and entry id it was found in.
type ValidationError struct {
	Section string // "providers", "groups", "batch", ...
	EntryID string // provider/group id, empty for document-level errors
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.EntryID != "" {
		return fmt.Sprintf("[%s/%s] %s: %s", e.Section, e.EntryID, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Section, e.Field, e.Message)
}

// ValidationErrors collects every validation failure found in one pass over
// a Config, so operators see the whole list rather than fixing errors one
// reload at a time.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Add(section, entryID, field, message string) {
	v.Errors = append(v.Errors, ValidationError{Section: section, EntryID: entryID, Field: field, Message: message})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "no configuration errors"
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d configuration errors:\n  %s", len(v.Errors), strings.Join(msgs, "\n  "))
}
