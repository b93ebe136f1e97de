package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Reason classifies a rejected operation.
type Reason string

const (
	// ReasonUnknownService is used for ids missing from the catalog.
	ReasonUnknownService Reason = "unknown-service"
	// ReasonRequired is used when disabling a required service.
	ReasonRequired Reason = "required"
	// ReasonRequiredDependent is used when a disable would cascade into a required service.
	ReasonRequiredDependent Reason = "required-dependent"
	// ReasonUnknownCategory is used for bulk toggles of an unknown category.
	ReasonUnknownCategory Reason = "unknown-category"
	// ReasonUnknownProfile is used when selecting a profile the catalog does not define.
	ReasonUnknownProfile Reason = "unknown-profile"
	// ReasonUnknownEnvironment is used when selecting an environment the catalog does not define.
	ReasonUnknownEnvironment Reason = "unknown-environment"
)

// RejectedError reports an operation that was refused without changing any state.
type RejectedError struct {
	// Subject is the service, category, profile or environment the operation targeted.
	Subject string
	// Reason classifies the rejection.
	Reason Reason
	// Affected lists the services that caused the rejection, if any.
	Affected []string
}

func (e *RejectedError) Error() string {
	if e == nil {
		return "operation rejected"
	}
	switch e.Reason {
	case ReasonUnknownService:
		return fmt.Sprintf("unknown service %q", e.Subject)
	case ReasonRequired:
		return fmt.Sprintf("service %q is required and cannot be disabled", e.Subject)
	case ReasonRequiredDependent:
		return fmt.Sprintf("cannot disable %q: required services depend on it (%s)", e.Subject, strings.Join(e.Affected, ", "))
	case ReasonUnknownCategory:
		return fmt.Sprintf("unknown category %q", e.Subject)
	case ReasonUnknownProfile:
		return fmt.Sprintf("unknown profile %q", e.Subject)
	case ReasonUnknownEnvironment:
		return fmt.Sprintf("unknown environment %q", e.Subject)
	default:
		return fmt.Sprintf("operation on %q rejected: %s", e.Subject, e.Reason)
	}
}

// IsRejected reports whether err is a RejectedError.
func IsRejected(err error) bool {
	var target *RejectedError
	return errors.As(err, &target)
}

// IsUnknown reports whether err rejects an id or name the catalog does not know.
func IsUnknown(err error) bool {
	var target *RejectedError
	if !errors.As(err, &target) {
		return false
	}
	switch target.Reason {
	case ReasonUnknownService, ReasonUnknownCategory, ReasonUnknownProfile, ReasonUnknownEnvironment:
		return true
	}
	return false
}
