package occupancy

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the occupancy service.
var (
	ErrUnitNotFound         = errors.New("unit not found")
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrFacilityNotFound     = errors.New("facility not found")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrRentalNotFound       = errors.New("rental not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnitOccupied         = errors.New("unit already rented")
	ErrUnitNotHeldByTenant  = errors.New("unit not held by tenant")
	ErrUnitHasTenant        = errors.New("unit still has a tenant")
	ErrTenantHasUnits       = errors.New("tenant still holds units")
	ErrFacilityOccupied     = errors.New("facility has occupied units")
	ErrCompanyHasFacilities = errors.New("company still has facilities")
	ErrDuplicateName        = errors.New("name is already taken")
	ErrInvalidCompanyID     = errors.New("invalid company id")
	ErrInvalidFacilityID    = errors.New("invalid facility id")
	ErrInvalidUnitID        = errors.New("invalid unit id")
	ErrInvalidTenantID      = errors.New("invalid tenant id")
	ErrInvalidAmountCents   = errors.New("invalid amount cents")
	ErrInvalidUnitStatus    = errors.New("invalid unit status")
	ErrInvalidTenantStatus  = errors.New("invalid tenant status")
	ErrInvalidTenantInput   = errors.New("invalid tenant input")
	ErrInvalidEventType     = errors.New("invalid event type")
	ErrInvalidEventName     = errors.New("invalid event name")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
