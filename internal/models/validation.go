package models

import "strings"

// ValidationError is returned when form input fails local validation. It never reaches the backend.
type ValidationError struct {
	// Field is the form field that failed validation if a single one is to blame.
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// normalizeSet trims, drops blanks and de-duplicates values preserving their first occurrence order.
func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
