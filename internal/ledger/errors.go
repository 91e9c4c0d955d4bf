package ledger

import (
	"errors"
	"fmt"
)

// ValidationError represents a malformed or unusable input for a specific
// field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError represents a missing member, item, or inventory entry.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientFundsError represents a debit larger than the member's
// balance. The operation did not change any state.
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d, have %d", e.Required, e.Available)
}

// NewInsufficientFundsError creates a new insufficient funds error.
func NewInsufficientFundsError(required, available int64) *InsufficientFundsError {
	return &InsufficientFundsError{Required: required, Available: available}
}

// AlreadyClaimedError represents a second daily claim on the same UTC day.
type AlreadyClaimedError struct {
	Date string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("daily reward already claimed on %s", e.Date)
}

// NewAlreadyClaimedError creates a new already claimed error.
func NewAlreadyClaimedError(date string) *AlreadyClaimedError {
	return &AlreadyClaimedError{Date: date}
}

// ConflictError represents an operation that lost to existing state, such
// as activating a booster while one of the same class is still running.
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Message)
}

// NewConflictError creates a new conflict error.
func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{Resource: resource, Message: message}
}

// InvalidAmountError represents an amount outside the operation's allowed
// range, including adjustments that would drive a balance negative.
type InvalidAmountError struct {
	Amount  int64
	Message string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %d: %s", e.Amount, e.Message)
}

// NewInvalidAmountError creates a new invalid amount error.
func NewInvalidAmountError(amount int64, message string) *InvalidAmountError {
	return &InvalidAmountError{Amount: amount, Message: message}
}

// PersistenceError represents a failed local durability write. Mutations
// surface it instead of applying partially.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError creates a new persistence error.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// SyncError represents a failed mirror write. It is contained within the
// replication layer and never fails a local mutation.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("mirror sync failed during %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// NewSyncError creates a new sync error.
func NewSyncError(op string, err error) *SyncError {
	return &SyncError{Op: op, Err: err}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsNotFoundError checks if an error is a not found error.
func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// IsInsufficientFundsError checks if an error is an insufficient funds error.
func IsInsufficientFundsError(err error) bool {
	var fundsErr *InsufficientFundsError
	return errors.As(err, &fundsErr)
}

// IsAlreadyClaimedError checks if an error is an already claimed error.
func IsAlreadyClaimedError(err error) bool {
	var claimedErr *AlreadyClaimedError
	return errors.As(err, &claimedErr)
}

// IsConflictError checks if an error is a conflict error.
func IsConflictError(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// IsInvalidAmountError checks if an error is an invalid amount error.
func IsInvalidAmountError(err error) bool {
	var amountErr *InvalidAmountError
	return errors.As(err, &amountErr)
}

// IsPersistenceError checks if an error is a persistence error.
func IsPersistenceError(err error) bool {
	var persistenceErr *PersistenceError
	return errors.As(err, &persistenceErr)
}

// IsSyncError checks if an error is a sync error.
func IsSyncError(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr)
}
