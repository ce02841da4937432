// internal/services/errors.go
package services

import (
	"errors"
	"fmt"

	"github.com/nyasabox/nyasabox-api/internal/models"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrGatewayUnavailable = errors.New("payment service is temporarily unavailable")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

// ValidationError is bad caller input. It is never retried.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError is a state machine move outside the adjacency table.
type InvalidTransitionError struct {
	From models.DistributionStatus
	To   models.DistributionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move distribution request from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// GatewayRejectionError is a well-formed refusal from the payment gateway.
type GatewayRejectionError struct {
	StatusCode int
	Message    string
}

func (e *GatewayRejectionError) Error() string {
	if e.Message == "" {
		return "payment was rejected by the gateway"
	}
	return "payment was rejected by the gateway: " + e.Message
}
