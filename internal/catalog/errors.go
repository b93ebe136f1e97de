package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for unknown service ids.
var ErrNotFound = errors.New("service not found")

// Problem is a single catalog consistency failure.
type Problem struct {
	// Subject is the service, profile or environment the problem refers to.
	Subject string
	// Message describes the failure.
	Message string
}

func (p Problem) String() string {
	if p.Subject == "" {
		return p.Message
	}
	return fmt.Sprintf("%s: %s", p.Subject, p.Message)
}

// ValidationError is returned when a catalog fails its load-time checks.
// The engine must not start with an invalid catalog.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid catalog"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "invalid catalog: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is a catalog ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
