// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError reports missing or malformed client input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// ConfigurationError reports a missing secret or credential. Requests fail closed.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is not set", e.Setting)
}

// SignatureMismatchError reports an HMAC that does not match the expected value.
type SignatureMismatchError struct {
	Source string // "checkout" or "webhook"
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("%s signature mismatch", e.Source)
}

// GatewayError carries the upstream payment provider failure.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway error (status %d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("payment gateway error (status %d): %s", e.StatusCode, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError reports a failed database write after a valid payment event.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError reports a booking that could not be correlated.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

// Constructors

func Validation(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

func Configuration(setting string) error { return &ConfigurationError{Setting: setting} }

func SignatureMismatch(source string) error { return &SignatureMismatchError{Source: source} }

func Persistence(op string, err error) error { return &PersistenceError{Op: op, Err: err} }

func NotFound(resource, key string) error { return &NotFoundError{Resource: resource, Key: key} }

// Predicates

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

func IsSignatureMismatch(err error) bool {
	var target *SignatureMismatchError
	return errors.As(err, &target)
}

func IsGateway(err error) bool {
	var target *GatewayError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// Kind returns a short machine-readable label for logs and error payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case IsConfiguration(err):
		return "configuration_error"
	case IsSignatureMismatch(err):
		return "signature_mismatch"
	case IsGateway(err):
		return "gateway_error"
	case IsPersistence(err):
		return "persistence_error"
	case IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code returned to the caller.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err), IsSignatureMismatch(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsGateway(err):
		var gw *GatewayError
		errors.As(err, &gw)
		if gw.StatusCode >= 400 && gw.StatusCode <= 599 {
			return gw.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
