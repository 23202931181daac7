package errs

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrTicketClosed          = errors.New("ticket is closed")
	ErrVersionConflict       = errors.New("ticket was modified concurrently")
	ErrFieldNotEditable      = errors.New("field is not editable for this role")
	ErrUnsupportedBulkAction = errors.New("unsupported bulk action")
	ErrValidation            = errors.New("validation failed")
)

// ValidationError описывает отсутствующее или некорректное поле запроса.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is: errors.Is(err, ErrValidation) срабатывает для любой ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Required: ValidationError для отсутствующего поля.
func Required(field string) error {
	return &ValidationError{Field: field}
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FieldError: роль пытается изменить поле, которое ей менять нельзя.
type FieldError struct {
	Field string
	Role  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("role %s may not edit %s", e.Role, e.Field)
}

func (e *FieldError) Unwrap() error { return ErrFieldNotEditable }
