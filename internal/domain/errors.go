package domain

import (
	"errors"
	"fmt"
)

// Error kinds. They travel inside the typed errors below so callers can use
// either errors.Is(err, ErrX) or the Is* helpers.
var (
	ErrActiveTripExists = errors.New("active trip exists")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCompleted = errors.New("trip already completed")
	ErrPendingWork      = errors.New("trip has unsynced records")
	ErrOriginUnresolved = errors.New("origin stop unresolved")
	ErrInvalidItinerary = errors.New("invalid itinerary")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrFareNotFound     = errors.New("fare not found")
	ErrAlreadyCancelled = errors.New("ticket already cancelled")
	ErrUploadFailed     = errors.New("upload failed")
	ErrTimeout          = errors.New("upload timed out")
)

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error {
	if e.Err == nil {
		return ErrNotFound
	}
	return e.Err
}

// Is lets a NotFoundError wrapping a more specific kind still match ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

// UploadError reports a batch the remote did not acknowledge. It always
// matches ErrUploadFailed; a timeout additionally matches ErrTimeout.
type UploadError struct {
	RecordType string
	Status     int
	Err        error
}

func (e UploadError) Error() string {
	msg := "upload failed"
	if e.RecordType != "" {
		msg = fmt.Sprintf("upload %s failed", e.RecordType)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e UploadError) Unwrap() error { return e.Err }

func (e UploadError) Is(target error) bool { return target == ErrUploadFailed }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

// Code returns a stable snake_case code for API responses.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrActiveTripExists):
		return "active_trip_exists"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrPendingWork):
		return "pending_work"
	case errors.Is(err, ErrOriginUnresolved):
		return "origin_unresolved"
	case errors.Is(err, ErrInvalidItinerary):
		return "invalid_itinerary"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrFareNotFound):
		return "fare_not_found"
	case errors.Is(err, ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUploadFailed):
		return "upload_failed"
	case IsNotFound(err):
		return "not_found"
	case IsValidation(err):
		return "validation_error"
	case IsConflict(err):
		return "conflict"
	default:
		return "internal_error"
	}
}
