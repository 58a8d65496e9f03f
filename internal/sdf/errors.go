package sdf

import (
	"errors"
	"fmt"
)

// BuildError represents a validation failure while assembling a system.
//
// Build errors are always local and recoverable: the graph is left
// unchanged and the caller may correct the input and retry. No operation
// panics across package boundaries.
type BuildError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Entity names the entity the error relates to, if any.
	Entity string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes build errors.
type ErrorCode string

const (
	// ErrCodeDuplicateName indicates a PD or MR name already registered.
	ErrCodeDuplicateName ErrorCode = "DUPLICATE_NAME"

	// ErrCodeDuplicateClient indicates a client PD (or its uniqueness key,
	// such as a MAC address) already added to a subsystem.
	ErrCodeDuplicateClient ErrorCode = "DUPLICATE_CLIENT"

	// ErrCodeInvalidClient indicates a PD that cannot serve as a client,
	// e.g. the subsystem's own driver or virtualiser.
	ErrCodeInvalidClient ErrorCode = "INVALID_CLIENT"

	// ErrCodeInvalidAddress indicates an address or MAC failed its
	// format or alignment constraint.
	ErrCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"

	// ErrCodeStructuralCycle indicates a child or VM relation that would
	// create a cycle, or a PD with two virtual machines.
	ErrCodeStructuralCycle ErrorCode = "STRUCTURAL_CYCLE"

	// ErrCodeIDExhausted indicates no unused local id remains.
	ErrCodeIDExhausted ErrorCode = "ID_EXHAUSTED"

	// ErrCodeInvalidState indicates an operation attempted out of
	// lifecycle order.
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"

	// ErrCodeIOFailure indicates an output location could not be written.
	ErrCodeIOFailure ErrorCode = "IO_FAILURE"
)

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from an error chain.
// Returns "" if the error is not a BuildError.
func CodeOf(err error) ErrorCode {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsDuplicateName reports whether err is a DuplicateName build error.
func IsDuplicateName(err error) bool { return CodeOf(err) == ErrCodeDuplicateName }

// IsDuplicateClient reports whether err is a DuplicateClient build error.
func IsDuplicateClient(err error) bool { return CodeOf(err) == ErrCodeDuplicateClient }

// IsInvalidClient reports whether err is an InvalidClient build error.
func IsInvalidClient(err error) bool { return CodeOf(err) == ErrCodeInvalidClient }

// IsInvalidState reports whether err is an InvalidState build error.
func IsInvalidState(err error) bool { return CodeOf(err) == ErrCodeInvalidState }

// IsIDExhausted reports whether err is an IdExhausted build error.
func IsIDExhausted(err error) bool { return CodeOf(err) == ErrCodeIDExhausted }

// IsStructuralCycle reports whether err is a StructuralCycle build error.
func IsStructuralCycle(err error) bool { return CodeOf(err) == ErrCodeStructuralCycle }

// NewDuplicateNameError creates a BuildError for a name collision.
func NewDuplicateNameError(kind, name string) *BuildError {
	return &BuildError{
		Code:    ErrCodeDuplicateName,
		Message: fmt.Sprintf("%s with name %q already registered", kind, name),
		Entity:  name,
	}
}

// NewDuplicateClientError creates a BuildError for a repeated client.
func NewDuplicateClientError(name, key string) *BuildError {
	be := &BuildError{
		Code:    ErrCodeDuplicateClient,
		Message: fmt.Sprintf("client %q already added", name),
		Entity:  name,
	}
	if key != "" {
		be.Message = fmt.Sprintf("client %q duplicates %s", name, key)
		be.Details = map[string]string{"key": key}
	}
	return be
}

// NewInvalidClientError creates a BuildError for an unusable client PD.
func NewInvalidClientError(name, reason string) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidClient,
		Message: reason,
		Entity:  name,
	}
}

// NewInvalidAddressError creates a BuildError for a malformed address.
func NewInvalidAddressError(entity, reason string) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidAddress,
		Message: reason,
		Entity:  entity,
	}
}

// NewStructuralCycleError creates a BuildError for an illegal relation.
func NewStructuralCycleError(entity, reason string) *BuildError {
	return &BuildError{
		Code:    ErrCodeStructuralCycle,
		Message: reason,
		Entity:  entity,
	}
}

// NewIDExhaustedError creates a BuildError for a full id space.
func NewIDExhaustedError(entity, space string) *BuildError {
	return &BuildError{
		Code:    ErrCodeIDExhausted,
		Message: fmt.Sprintf("no unused id remains in %s id space", space),
		Entity:  entity,
	}
}

// NewInvalidStateError creates a BuildError for an out-of-order operation.
func NewInvalidStateError(entity, reason string) *BuildError {
	return &BuildError{
		Code:    ErrCodeInvalidState,
		Message: reason,
		Entity:  entity,
	}
}

// NewIOFailureError creates a BuildError for a failed write.
func NewIOFailureError(path string, err error) *BuildError {
	return &BuildError{
		Code:    ErrCodeIOFailure,
		Message: fmt.Sprintf("writing %s: %v", path, err),
		Entity:  path,
	}
}
