package planner

import (
	"errors"
	"fmt"

	"github.com/fentz26/tempora/internal/models"
)

// Sentinel errors for planner operations.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrAlreadyConfirmed  = errors.New("already confirmed")
	ErrCategoryOwnership = errors.New("category does not belong to owner")
)

// MissingFieldError reports a required field absent on an entity being
// confirmed. Each field is distinguishable for actionable messages.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// TimeRangeError reports a start/end ordering violation or a completion
// attempt on a commitment that has not ended yet.
type TimeRangeError struct {
	Reason string
}

func (e *TimeRangeError) Error() string {
	return "invalid time range: " + e.Reason
}

// ConflictError carries the commitment the candidate range collides with,
// for caller display.
type ConflictError struct {
	With *models.Commitment
}

func (e *ConflictError) Error() string {
	name := "commitment"
	if e.With != nil && e.With.Name != nil {
		name = fmt.Sprintf("commitment %q", *e.With.Name)
	}
	return fmt.Sprintf("scheduling conflict with %s", name)
}
