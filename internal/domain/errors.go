// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrLyricsNotFound is returned when the backend has no lyrics for a track.
	ErrLyricsNotFound = errors.New("lyrics not found")

	// ErrNoTrackSelected is returned when an operation requires a selected track.
	ErrNoTrackSelected = errors.New("no track selected")

	// ErrNotTranscribable is returned when transcription is requested for a local track.
	ErrNotTranscribable = errors.New("track has no remote audio source")

	// ErrRetryNotAllowed is returned when a retry is requested outside a retryable state.
	ErrRetryNotAllowed = errors.New("retry not allowed in current state")

	// ErrTranscriptionFailed is returned when the backend reports a failed transcription.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrInvalidIndex is returned when a lyric line index is out of bounds.
	ErrInvalidIndex = errors.New("invalid line index")

	// ErrInvalidBarCount is returned when an animator is created with fewer than one bar.
	ErrInvalidBarCount = errors.New("bar count must be at least 1")

	// ErrUnknownVariant is returned when a visualizer variant name is not recognised.
	ErrUnknownVariant = errors.New("unknown visualizer variant")

	// ErrClosed is returned when a component is used after Close.
	ErrClosed = errors.New("component closed")

	// ErrQueueEmpty is returned when queue navigation is attempted on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrEndOfQueue is returned when trying to navigate past the end of the queue.
	ErrEndOfQueue = errors.New("end of queue reached")

	// ErrStartOfQueue is returned when trying to navigate before the start of the queue.
	ErrStartOfQueue = errors.New("start of queue reached")

	// ErrInvalidPosition is returned when seeking to an invalid position.
	ErrInvalidPosition = errors.New("invalid playback position")

	// ErrUnsupportedFormat is returned when an audio file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound is returned when a file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrNoAudioFiles is returned when a folder holds no playable files.
	ErrNoAudioFiles = errors.New("no audio files found")
)

// APIError represents a failed call to the backend REST API.
type APIError struct {
	Op      string // Operation that failed (e.g., "get_lyrics", "transcribe")
	Status  int    // HTTP status code (0 if the request never completed)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("backend %s failed: %s (status: %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("backend %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}

// NewAPIError creates a new APIError.
func NewAPIError(op string, status int, message string, err error) *APIError {
	return &APIError{
		Op:      op,
		Status:  status,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   any    // Value that failed validation
	Message string // Error message
	Err     error  // Sentinel this error refines (optional)
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap returns the sentinel error, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ServiceError represents an error from a service layer operation.
type ServiceError struct {
	Service string // Service name (e.g., "LyricsService")
	Op      string // Operation that failed
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s.%s failed: %s", e.Service, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a new ServiceError.
func NewServiceError(service, op, message string, err error) *ServiceError {
	return &ServiceError{
		Service: service,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
