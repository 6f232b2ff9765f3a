package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Business-rule failures. Callers match these with errors.Is.
	ErrNotFound            = errors.New("entity not found")
	ErrForbidden           = errors.New("actor does not own the resource")
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrSoldOut             = errors.New("coupon template sold out")
	ErrTemplateExpired     = errors.New("coupon template is no longer available")
	ErrExpired             = errors.New("coupon has expired")
	ErrAlreadyUsed         = errors.New("coupon already used")
	ErrValidation          = errors.New("validation failed")
	ErrBusy                = errors.New("store is busy, retry later")

	// ErrCanceled means the caller went away before the store answered.
	ErrCanceled = errors.New("request canceled by caller")

	// Infrastructure failures.
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrOperationFailed    = errors.New("database operation failed")
)

// AlreadyUsedError carries the original write-off time of a used coupon.
type AlreadyUsedError struct {
	UsedAt time.Time
}

func (e *AlreadyUsedError) Error() string {
	if e.UsedAt.IsZero() {
		return ErrAlreadyUsed.Error()
	}
	return fmt.Sprintf("%s at %s", ErrAlreadyUsed, e.UsedAt.UTC().Format(time.RFC3339))
}

func (e *AlreadyUsedError) Is(target error) bool { return target == ErrAlreadyUsed }

// ExpiredError reports how many whole days have passed since the template's end date.
type ExpiredError struct {
	EndDate     time.Time
	DaysOverdue int
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s (%d days overdue)", ErrExpired, e.DaysOverdue)
}

func (e *ExpiredError) Is(target error) bool { return target == ErrExpired }

// NewExpiredError computes the overdue day count relative to now.
func NewExpiredError(endDate, now time.Time) *ExpiredError {
	days := int(now.Sub(endDate) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return &ExpiredError{EndDate: endDate, DaysOverdue: days}
}

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsBusiness reports whether err is one of the typed business outcomes
// rather than an infrastructure fault.
func IsBusiness(err error) bool {
	for _, k := range []error{
		ErrNotFound, ErrForbidden, ErrInsufficientBalance, ErrSoldOut,
		ErrTemplateExpired, ErrExpired, ErrAlreadyUsed, ErrValidation, ErrBusy,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
