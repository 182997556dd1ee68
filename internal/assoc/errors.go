package assoc

import "fmt"

type ValidationReason string

const (
	ReasonInvalidEventType          ValidationReason = "invalid-event-type"
	ReasonMissingDistributionRef    ValidationReason = "missing-distribution-reference"
	ReasonIncompleteDistributionRef ValidationReason = "incomplete-distribution-reference"
	ReasonWrongResourceType         ValidationReason = "wrong-resource-type"
)

// ValidationError rejects one function's edge-binding annex. Validation is
// fatal for the whole pass; no backend call happens after one is returned.
type ValidationError struct {
	Function string
	Reason   ValidationReason
	Detail   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("function %q: %s: %s", e.Function, e.Reason, e.Detail)
}
