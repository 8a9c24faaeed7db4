package config

import (
	"fmt"
	"strings"
)

// ValidationError is a single field violation.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors holds every violation found by Validate.
type ValidationErrors struct {
	Errors []ValidationError
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Has reports whether field has a violation.
func (v *ValidationErrors) Has(field string) bool {
	for _, e := range v.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
