// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package dispatcher

import (
	"errors"
	"fmt"

	"github.com/tomtom215/rescuenet/internal/models"
	"github.com/tomtom215/rescuenet/internal/validation"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFoundOrStopped is returned by Update when the session is absent
	// or no longer sharing.
	ErrNotFoundOrStopped = errors.New("Location session not found or stopped") //nolint:staticcheck // client-facing text

	// ErrSessionNotFound is returned when the target session does not exist.
	ErrSessionNotFound = errors.New("Location session not found") //nolint:staticcheck // client-facing text

	// errStopped aborts an append inside the store when sharing has ended.
	errStopped = errors.New("session stopped")
)

// missingCoordinatesMessage is reported when latitude or longitude is absent.
const missingCoordinatesMessage = "Latitude and longitude are required"

// ValidationError reports a rejected inbound payload. It never corresponds
// to a state change.
type ValidationError struct {
	Message string
	cause   *validation.RequestValidationError
}

func newValidationError(ve *validation.RequestValidationError) *ValidationError {
	msg := ve.Error()
	for _, fe := range ve.Errors() {
		if fe.Tag == "required" && (fe.Field == "latitude" || fe.Field == "longitude") {
			msg = missingCoordinatesMessage
			break
		}
	}
	return &ValidationError{Message: msg, cause: ve}
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Fields returns the names of the fields that failed validation.
func (e *ValidationError) Fields() []string {
	if e.cause == nil {
		return nil
	}
	return e.cause.Fields()
}

// APIError converts the error to the REST error body.
func (e *ValidationError) APIError() *models.APIError {
	if e.cause == nil {
		return &models.APIError{Code: "VALIDATION_ERROR", Message: e.Message}
	}
	apiErr := e.cause.ToAPIError()
	apiErr.Message = e.Message
	return apiErr
}

// InternalError wraps a store failure. Its message is deliberately generic
// because it is shown to clients; the cause is available through Unwrap.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("failed to %s", e.Op)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Kind classifies dispatcher errors for transports.
type Kind string

// Error kinds.
const (
	KindNone       Kind = "ok"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

// Classify maps err to a Kind. Unknown errors are internal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFoundOrStopped), errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
