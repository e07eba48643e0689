package repository

import (
	"fmt"
	"strings"
)

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient reports false: retrying will not make the resource appear
func (e *NotFoundError) IsTransient() bool {
	return false
}

// AmbiguousError is returned when a partial name matches several developers
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("developer name %q is ambiguous: matches %s", e.Query, strings.Join(e.Candidates, ", "))
}

// IsTransient reports false
func (e *AmbiguousError) IsTransient() bool {
	return false
}
